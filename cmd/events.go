package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/josephlewis42/lxfsh/core/logger"
	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"
)

var (
	eventsSession string
	eventsFormat  string
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect the log of commands run by the shell.",
}

var eventsReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Summarize logged commands, exit codes and redirection failures.",
	Long: `Reads lxfsh.log from the config path and counts the sessions, the
programs run, pipelines, non-zero exit codes, failed redirections and lines
handled by extensions.`,
	Args: cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		if eventsFormat != "yaml" && eventsFormat != "json" {
			return fmt.Errorf("unknown format %q, want yaml or json", eventsFormat)
		}
		cmd.SilenceUsage = true

		configuration, err := loadConfig()
		if err != nil {
			return err
		}

		fd, err := configuration.ReadAppLog()
		if err != nil {
			return err
		}
		defer fd.Close()

		report, err := buildReport(fd, eventsSession)
		if err != nil {
			return err
		}

		var out []byte
		if eventsFormat == "json" {
			out, err = json.MarshalIndent(report, "", "  ")
		} else {
			out, err = yaml.Marshal(report)
		}
		if err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

// buildReport summarizes the log, only the given session if it's set.
func buildReport(r io.Reader, session string) (*logger.Report, error) {
	var report logger.Report
	err := logger.ReadJSONLinesLog(r, func(le *logger.LogEntry) {
		if session == "" || le.SessionID == session {
			report.Update(le)
		}
	})
	return &report, err
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsReportCmd)
	eventsReportCmd.Flags().StringVar(&eventsSession, "session", "", "only count events of this session ID")
	eventsReportCmd.Flags().StringVarP(&eventsFormat, "format", "o", "yaml", "output format, yaml or json")
}
