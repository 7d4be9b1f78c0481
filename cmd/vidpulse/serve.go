package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/radiusdt/vidpulse/internal/scheduler"
)

func serveCommand() *cobra.Command {
	var withWorker bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			a.logger.Info("starting vidpulse",
				zap.String("env", a.cfg.Server.Env),
				zap.String("addr", a.cfg.Server.Addr),
			)

			rateLimitMW, handler := a.handler()
			srv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           http.TimeoutHandler(handler, a.cfg.Server.RequestTimeout, `{"error":"request timed out"}`),
				ReadHeaderTimeout: 2 * time.Second,
				ReadTimeout:       5 * time.Second,
				WriteTimeout:      a.cfg.Server.RequestTimeout + 5*time.Second,
				IdleTimeout:       120 * time.Second,
				MaxHeaderBytes:    1 << 20,
			}

			if withWorker && a.cfg.Worker.Enabled {
				sched := scheduler.New(a.pipeline, a.campaigns, a.cfg.Worker.Concurrency, a.cfg.Worker.RunTimeout, a.logger, a.metrics)
				if err := sched.Start(ctx, a.cfg.Worker.Schedule); err != nil {
					return err
				}
				defer sched.Stop()
			}

			go func() {
				ticker := time.NewTicker(time.Hour)
				defer ticker.Stop()
				for {
					select {
					case <-ticker.C:
						rateLimitMW.CleanupIPLimiters(time.Hour)
					case <-ctx.Done():
						return
					}
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				a.logger.Info("HTTP server starting", zap.String("addr", a.cfg.Server.Addr))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					return err
				}
			case <-ctx.Done():
			}

			a.logger.Info("shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				a.logger.Error("server forced to shutdown", zap.Error(err))
			}
			a.logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().BoolVar(&withWorker, "with-worker", true, "also run scheduled recomputation in this process")
	return cmd
}
