package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/josephlewis42/lxfsh/core/history"
	"github.com/spf13/cobra"
)

var (
	historyHere  bool
	historyCount int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print stored commands, newest first.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		if historyCount < 0 {
			return fmt.Errorf("invalid count %d", historyCount)
		}
		cmd.SilenceUsage = true

		config, err := loadConfig()
		if err != nil {
			return err
		}

		store, err := history.Open(config.HistoryPath())
		if err != nil {
			return err
		}
		defer store.Close()

		var dir string
		if historyHere {
			if dir, err = os.Getwd(); err != nil {
				return err
			}
		}

		entries, err := store.List(cmd.Context(), historyCount, dir)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 8, 8, 2, ' ', 0)
		defer tw.Flush()

		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", e.CreatedAt.Local().Format(time.DateTime), e.Location, e.Command)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().BoolVar(&historyHere, "here", false, "only show commands run in the working directory")
	historyCmd.Flags().IntVarP(&historyCount, "count", "n", 0, "show at most this many commands, 0 for all")
}
