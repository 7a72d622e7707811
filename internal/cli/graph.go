package cli

import (
	"io"

	"github.com/spf13/cobra"
)

func newGraphCommand(outW io.Writer, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "graph [CONFIG_PATH...]",
		Short: "Print the steps in execution order with the assets they exchange.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.newApp(cmd.Context(), outW, args, "")
			if err != nil {
				return err
			}
			defer a.Close()

			order, err := a.Order(cmd.Context())
			if err != nil {
				return &ExitError{Code: ExitFailure, Message: err.Error()}
			}
			renderGraph(outW, a.Pipeline().Name(), order)
			return nil
		},
	}
}
