package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type runOptions struct {
	set        []string
	paramsFile string
}

func (o *runOptions) bind(cmd *cobra.Command) {
	cmd.Flags().StringArrayVar(&o.set, "set", nil, "Override a parameter for this run as key=value. Values are parsed as YAML scalars.")
	cmd.Flags().StringVar(&o.paramsFile, "params-file", "", "Path to an .hcl or .yaml file of base parameters.")
}

func newRunCommand(outW io.Writer, flags *globalFlags) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run [CONFIG_PATH...]",
		Short: "Run the pipeline once.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(cmd.Context(), outW, flags, opts, args)
		},
	}
	opts.bind(cmd)
	return cmd
}

func runPipeline(ctx context.Context, outW io.Writer, flags *globalFlags, opts *runOptions, paths []string) error {
	overrides, err := parseSet(opts.set)
	if err != nil {
		return err
	}

	a, err := flags.newApp(ctx, outW, paths, opts.paramsFile)
	if err != nil {
		return err
	}
	defer a.Close()

	run, err := a.Run(ctx, overrides)
	if run != nil {
		renderRun(outW, run)
	}
	if err != nil {
		return &ExitError{Code: ExitFailure, Message: err.Error()}
	}

	switch {
	case run.Cancelled:
		return &ExitError{Code: ExitCancelled, Message: fmt.Sprintf("pipeline '%s' was cancelled", run.Pipeline)}
	case !run.Success:
		return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("pipeline '%s' failed", run.Pipeline)}
	}
	return nil
}

// parseSet turns key=value pairs into parameter overrides. Values are
// decoded as YAML so numbers, booleans and lists keep their type.
func parseSet(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, usageError("invalid --set value %q: expected key=value", pair)
		}
		var v any
		if err := yaml.Unmarshal([]byte(raw), &v); err != nil {
			return nil, usageError("invalid --set value for '%s': %v", key, err)
		}
		if v == nil {
			v = raw
		}
		out[key] = v
	}
	return out, nil
}
