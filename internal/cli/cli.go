package cli

import (
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vk/substepgrid/internal/app"
)

// Exit codes used by the command-line entrypoint.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

const longHelp = `substepgrid runs agent-based simulations described as a pipeline of
substeps. Each substep observes the state, decides on actions and applies
them as a transition.

Configuration paths may be .hcl, .yaml or .yml files, or directories
containing them. Paths may be given with --config or as arguments.`

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")

	var (
		cfg    app.Config
		seed   int64
		parsed bool
	)

	cmd := &cobra.Command{
		Use:           "substepgrid [flags] [CONFIG_PATH...]",
		Short:         "Run a substep pipeline simulation",
		Long:          longHelp,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, positional []string) error {
			cfg.ConfigPaths = append(cfg.ConfigPaths, positional...)
			if cmd.Flags().Changed("seed") {
				cfg.Seed = &seed
			}
			parsed = true
			return nil
		},
	}
	if args == nil {
		// cobra falls back to os.Args for a nil slice.
		args = []string{}
	}
	cmd.SetArgs(args)
	cmd.SetOut(output)
	cmd.SetErr(output)

	flags := cmd.Flags()
	flags.StringSliceVarP(&cfg.ConfigPaths, "config", "c", nil, "Configuration file or directory. May be repeated.")
	flags.StringVar(&cfg.LogLevel, "log-level", "info", "Logging level: 'debug', 'info', 'warn' or 'error'.")
	flags.StringVar(&cfg.LogFormat, "log-format", "text", "Log output format: 'text', 'json' or 'pretty'.")
	flags.IntVar(&cfg.HealthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	flags.IntVar(&cfg.Workers, "workers", 0, "Maximum concurrent per-agent workers inside a stage. 0 uses GOMAXPROCS.")
	flags.Int64Var(&seed, "seed", 0, "Random seed. Overrides simulation_metadata.seed.")
	flags.BoolVar(&cfg.AtomicSteps, "atomic-steps", false, "Roll the state back when a step fails.")
	flags.StringVar(&cfg.CheckpointPath, "checkpoint", "", "SQLite database that receives state checkpoints.")
	flags.IntVar(&cfg.CheckpointInterval, "checkpoint-interval", 1, "Save a checkpoint every N steps.")
	flags.StringVar(&cfg.TelemetryURL, "telemetry-url", "", "Socket.IO server that receives step events.")
	flags.StringVar(&cfg.TelemetryNamespace, "telemetry-namespace", "/", "Socket.IO namespace for step events.")
	flags.BoolVar(&cfg.TelemetryAgents, "telemetry-agents", false, "Include agent properties in telemetry events.")
	flags.BoolVar(&cfg.TelemetryInsecure, "telemetry-insecure", false, "Skip TLS certificate verification for the telemetry server.")

	if err := cmd.Execute(); err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	if !parsed {
		// --help was handled by cobra.
		return nil, true, nil
	}
	slog.Debug("Arguments parsed successfully.")

	if len(cfg.ConfigPaths) == 0 {
		slog.Debug("No configuration path provided, printing usage and exiting.")
		_ = cmd.Usage()
		return nil, true, nil
	}

	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)

	config, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: ExitUsage, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
