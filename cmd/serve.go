package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sitedesc/llmstxt/internal/api"
	"github.com/sitedesc/llmstxt/internal/runstore"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Runs the HTTP API service",
		Long: `Starts the generator as an HTTP service. Runs are submitted via
POST /v1/runs and polled via the status and document endpoints; Prometheus
metrics are served on /metrics.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			svc, err := buildServices(ctx, cfgFile)
			if err != nil {
				return err
			}
			defer svc.Close()

			apiCfg := api.Config{}
			if svc.cfg.Auth.Enabled {
				apiCfg.APIKey = svc.cfg.Auth.APIKey
			}
			server := api.NewServer(svc.pipeline, svc.checker, runstore.New(), apiCfg, svc.logger)

			srv := &http.Server{
				Addr:              fmt.Sprintf(":%d", svc.cfg.Server.Port),
				Handler:           server.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}

			go func() {
				svc.logger.Info("http server started", zap.Int("port", svc.cfg.Server.Port))
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					svc.logger.Error("http server error", zap.Error(err))
					stop()
				}
			}()

			<-ctx.Done()
			svc.logger.Info("shutdown initiated")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				svc.logger.Error("server shutdown error", zap.Error(err))
			}
			svc.logger.Info("shutdown complete")
			return nil
		},
	}
	return cmd
}
