package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/josephlewis42/lxfsh/core/extension"
	"github.com/spf13/cobra"
)

var extensionsCmd = &cobra.Command{
	Use:   "extensions",
	Short: "Show the built-in extensions and what they provide.",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		enabled := make(map[string]bool)
		if config, err := loadConfig(); err == nil {
			for _, name := range config.Extensions {
				enabled[name] = true
			}
		}

		registry := extension.NewRegistry(&extension.Env{})
		if err := registry.Load(extension.BuiltinNames()...); err != nil {
			return err
		}
		defer registry.Close()

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 8, 8, 2, ' ', 0)
		defer tw.Flush()

		for _, info := range registry.Capabilities() {
			state := "disabled"
			if enabled[info.Name] {
				state = "enabled"
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\n", info.Name, strings.Join(info.Capabilities, ","), state)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(extensionsCmd)
}
