package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"ember/internal/logging"
)

var (
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string
)

// NewRootCmd creates the root cobra command for the ember CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "ember",
		Short:        "ember - a cooperative multitasking kernel core",
		Long:         "ember loads a set of apps as tasks, schedules them round-robin and serves their syscalls.",
		SilenceUsage: true,
	}

	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newAppsCmd(),
		newAcctCmd(),
		newVersionCmd(),
	)
	return root
}

// cliLogger is the logger of commands that do not boot the kernel.
func cliLogger(cmd *cobra.Command) *slog.Logger {
	level := flagLogLevel
	if flagDebug {
		level = "debug"
	}
	return logging.NewLoggerWithWriter(logging.ParseLevel(level), flagLogFormat, cmd.ErrOrStderr())
}
