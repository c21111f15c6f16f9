package cmd

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"os"
	"os/signal"
	"path/filepath"

	"github.com/josephlewis42/lxfsh/core"
	"github.com/josephlewis42/lxfsh/core/config"
	"github.com/josephlewis42/lxfsh/core/logger"
	"github.com/spf13/cobra"
)

var (
	cfgPath   string
	command   string
	noHistory bool

	// exitStatus is the status of the command run with -c.
	exitStatus int
)

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "lxfsh")
}

func loadConfig() (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)

	if errors.Is(err, fs.ErrNotExist) {
		log.Println("Couldn't load config: did you run init?")
	}

	return configuration, err
}

// loadOrInitConfig writes the default configuration on first use.
func loadOrInitConfig(logger *log.Logger) (*config.Configuration, error) {
	configuration, err := config.Load(cfgPath)
	if !errors.Is(err, fs.ErrNotExist) {
		return configuration, err
	}

	if err := config.Initialize(cfgPath, logger); err != nil {
		return nil, err
	}
	return config.Load(cfgPath)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "lxfsh",
	Short: "A small interactive shell",
	Long: `A small interactive shell with pipelines, output and input redirection,
per-directory command history and prompt extensions.`,
	Args: cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		configuration, err := loadOrInitConfig(log.New(cmd.ErrOrStderr(), "", 0))
		if err != nil {
			return err
		}

		logFd, err := configuration.OpenAppLog()
		if err != nil {
			return err
		}
		defer logFd.Close()

		shell, err := core.NewShell(configuration, core.Options{
			NoHistory: noHistory,
			Log:       logger.NewJsonLinesLogRecorder(logFd),
		})
		if err != nil {
			return err
		}
		defer shell.Close()

		if cmd.Flags().Changed("command") {
			exitStatus = shell.RunCommand(cmd.Context(), command)
			return nil
		}

		return shell.Run(cmd.Context())
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	// Interrupts belong to the foreground children, the line editor sees
	// Ctrl-C as a key press.
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, os.Interrupt)
	go func() {
		for range interrupts {
		}
	}()

	cobra.CheckErr(rootCmd.ExecuteContext(context.Background()))
	os.Exit(exitStatus)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", defaultConfigPath(), "config path")
	rootCmd.Flags().StringVarP(&command, "command", "c", "", "run a single command line and exit")
	rootCmd.Flags().BoolVar(&noHistory, "no-history", false, "don't read or write the history database")
}
