package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/radiusdt/vidpulse/internal/analytics"
)

func recomputeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "recompute <campaign-id>...",
		Short: "Recompute and store analytics for the given campaigns",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")

			var failed int
			for _, id := range args {
				res, err := a.pipeline.Recompute(ctx, id, analytics.TriggerOnDemand)
				if err != nil {
					failed++
					fmt.Fprintf(os.Stderr, "%s: %v\n", id, err)
					continue
				}
				if err := enc.Encode(res); err != nil {
					return err
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d campaigns failed", failed, len(args))
			}
			return nil
		},
	}
}
