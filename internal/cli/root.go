package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"pollsched/internal/logging"
	"pollsched/internal/sched"
)

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	cfg    sched.Config
	logger *slog.Logger
)

// NewRootCmd creates the root cobra command for the pollsched CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "pollsched",
		Short: "Polling server scheduling simulator",
		Long: `pollsched checks a set of periodic and aperiodic tasks served by a polling
server for schedulability and replays the schedule tick by tick.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			var cfgErr error
			cfg, cfgErr = sched.Load(flagConfig)
			if cmd.Flags().Changed("log-level") {
				cfg.LogLevel = flagLogLevel
			}
			if cmd.Flags().Changed("log-format") {
				cfg.LogFormat = flagLogFormat
			}
			if flagDebug {
				cfg.LogLevel = "debug"
			}
			logger = logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, cmd.ErrOrStderr())
			if cfgErr != nil {
				logger.Warn("config file ignored", "path", flagConfig, "error", cfgErr)
			}
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "YAML config file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging (traces every tick)")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newRunCmd(),
		newAnalyzeCmd(),
		newHyperperiodCmd(),
		newRunsCmd(),
		newShowCmd(),
	)

	return root
}
