package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/specialistvlad/stepgrid/internal/app"
	"github.com/spf13/cobra"
)

func newCacheCommand(outW io.Writer, flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and invalidate cached step outputs.",
	}
	cmd.AddCommand(newCacheClearCommand(outW, flags), newCacheStatsCommand(outW, flags))
	return cmd
}

func newCacheClearCommand(outW io.Writer, flags *globalFlags) *cobra.Command {
	var (
		stepName   string
		downstream bool
		olderThan  time.Duration
		tag        string
	)
	cmd := &cobra.Command{
		Use:   "clear [CONFIG_PATH...]",
		Short: "Remove cached outputs. Without filters every entry is removed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if downstream && stepName == "" {
				return usageError("--downstream requires --step")
			}
			a, err := flags.newApp(cmd.Context(), outW, args, "")
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.InvalidateCache(cmd.Context(), app.InvalidateOptions{
				Step:       stepName,
				Downstream: downstream,
				OlderThan:  olderThan,
				Tag:        tag,
			})
			if err != nil {
				return &ExitError{Code: ExitFailure, Message: err.Error()}
			}
			fmt.Fprintf(outW, "Removed %d cache entries.\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&stepName, "step", "", "Only remove entries produced by this step.")
	cmd.Flags().BoolVar(&downstream, "downstream", false, "Also remove entries of every step depending on --step.")
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Only remove entries older than this duration.")
	cmd.Flags().StringVar(&tag, "tag", "", "Only remove entries of steps carrying this tag.")
	return cmd
}

func newCacheStatsCommand(outW io.Writer, flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "stats [CONFIG_PATH...]",
		Short: "Count the cached entries of every step.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := flags.newApp(cmd.Context(), outW, args, "")
			if err != nil {
				return err
			}
			defer a.Close()

			counts, err := a.CacheEntries(cmd.Context())
			if err != nil {
				return &ExitError{Code: ExitFailure, Message: err.Error()}
			}
			if counts == nil {
				fmt.Fprintln(outW, "Caching is disabled.")
				return nil
			}
			renderCacheEntries(outW, counts)
			return nil
		},
	}
}
