package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/specialistvlad/stepgrid/internal/app"
	"github.com/specialistvlad/stepgrid/internal/hcl_adapter"
	"github.com/specialistvlad/stepgrid/internal/registry"
	"github.com/spf13/cobra"
)

// Exit codes returned through ExitError.
const (
	ExitFailure   = 1
	ExitUsage     = 2
	ExitCancelled = 130
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

func usageError(format string, args ...any) error {
	return &ExitError{Code: ExitUsage, Message: fmt.Sprintf(format, args...)}
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPaths     []string
	logFormat       string
	logLevel        string
	workers         int
	healthcheckPort int

	// modules overrides the compiled-in modules; tests set it.
	modules []registry.Module
}

// newApp validates the flags and builds the application from paths plus
// any --config paths.
func (f *globalFlags) newApp(ctx context.Context, outW io.Writer, paths []string, paramsFile string) (*app.App, error) {
	all := append(append([]string{}, f.configPaths...), paths...)
	if len(all) == 0 {
		return nil, usageError("no configuration path given: pass a .hcl file or directory")
	}

	cfg, err := app.NewConfig(app.Config{
		Paths:           all,
		ParamsFile:      paramsFile,
		LogFormat:       f.logFormat,
		LogLevel:        f.logLevel,
		HealthcheckPort: f.healthcheckPort,
		Workers:         f.workers,
	})
	if err != nil {
		return nil, &ExitError{Code: ExitUsage, Message: err.Error()}
	}
	slog.Debug("CLI parameter validation complete.", "paths", all)

	a, err := app.NewApp(ctx, outW, cfg, hcl_adapter.NewLoader(), f.modules...)
	if err != nil {
		return nil, &ExitError{Code: ExitFailure, Message: fmt.Sprintf("failed to start: %v", err)}
	}
	return a, nil
}

// NewRootCommand assembles the stepgrid command tree writing to outW.
func NewRootCommand(outW io.Writer) *cobra.Command {
	return newRootCommand(outW, &globalFlags{})
}

func newRootCommand(outW io.Writer, flags *globalFlags) *cobra.Command {
	runOpts := &runOptions{}
	root := &cobra.Command{
		Use:   "stepgrid [CONFIG_PATH...]",
		Short: "Run cached, dependency-ordered data pipelines.",
		Long: `stepgrid runs the steps declared in .hcl files in dependency order,
concurrently where possible, caching every step's outputs.

Without a subcommand, the given configuration is run once.`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && len(flags.configPaths) == 0 {
				return cmd.Help()
			}
			return runPipeline(cmd.Context(), outW, flags, runOpts, args)
		},
	}
	root.SetOut(outW)
	root.SetErr(outW)

	pf := root.PersistentFlags()
	pf.StringSliceVarP(&flags.configPaths, "config", "c", nil, "Path to a .hcl file or a directory of .hcl files. Repeatable.")
	pf.StringVar(&flags.logFormat, "log-format", "", "Log output format. Options: 'text' or 'json'. Overrides the pipeline block (default text).")
	pf.StringVar(&flags.logLevel, "log-level", "", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'. Overrides the pipeline block (default info).")
	pf.IntVar(&flags.workers, "workers", 0, "Number of concurrent workers. 0 uses the configured value or the CPU count.")
	pf.IntVar(&flags.healthcheckPort, "healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	runOpts.bind(root)

	root.AddCommand(
		newRunCommand(outW, flags),
		newGraphCommand(outW, flags),
		newCacheCommand(outW, flags),
	)
	return root
}

// Execute runs the command tree with args and maps failures onto
// ExitErrors: flag and argument errors exit with ExitUsage.
func Execute(ctx context.Context, outW io.Writer, args []string) error {
	return execute(ctx, outW, args, &globalFlags{})
}

func execute(ctx context.Context, outW io.Writer, args []string, flags *globalFlags) error {
	slog.Debug("CLI parser started.")
	root := newRootCommand(outW, flags)
	root.SetArgs(args)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &ExitError{Code: ExitUsage, Message: err.Error()}
	})

	err := root.ExecuteContext(ctx)
	if err == nil {
		return nil
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr
	}
	return &ExitError{Code: ExitUsage, Message: err.Error()}
}
