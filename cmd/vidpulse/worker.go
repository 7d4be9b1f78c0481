package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radiusdt/vidpulse/internal/scheduler"
)

func workerCommand() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run scheduled analytics recomputation without the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			sched := scheduler.New(a.pipeline, a.campaigns, a.cfg.Worker.Concurrency, a.cfg.Worker.RunTimeout, a.logger, a.metrics)

			if once {
				summary, err := sched.RunOnce(ctx)
				if err != nil {
					return err
				}
				a.logger.Info("single cycle finished",
					zap.Int("succeeded", summary.Succeeded),
					zap.Int("failed", summary.Failed),
				)
				return nil
			}

			if err := sched.Start(ctx, a.cfg.Worker.Schedule); err != nil {
				return err
			}
			<-ctx.Done()
			sched.Stop()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run one cycle over every campaign and exit")
	return cmd
}
