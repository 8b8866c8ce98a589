package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/S1riyS/vifs/internal/app"
	"github.com/S1riyS/vifs/internal/handler"
	"github.com/S1riyS/vifs/internal/middleware"
	"github.com/S1riyS/vifs/internal/service"
	"github.com/S1riyS/vifs/pkg/logging"
	"github.com/S1riyS/vifs/pkg/logging/slogext"
)

var syncInterval time.Duration

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the mounted tree over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return withProcApp(cmd, func(_ context.Context, a *app.App) error {
			return serve(ctx, a)
		})
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().DurationVar(&syncInterval, "sync-interval", 5*time.Second, "how often dirty cache entries are flushed, 0 disables")
}

func serve(ctx context.Context, a *app.App) error {
	const op = "main.serve"

	logger := logging.GetLoggerFromContextWithOp(ctx, op)

	mux := http.NewServeMux()
	handler.NewHandler(service.NewFileSystemService(a.VFS)).RegisterRoutes(mux)

	var h http.Handler = mux
	h = middleware.WithTimeout(a.Config.App.DefaultTimeout)(h)
	h = middleware.RequestIDMiddleware(h)
	h = middleware.LoggerMiddleware(logging.GetLoggerFromContext(ctx))(h)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.App.Port),
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.Config.App.DefaultTimeout)
		defer cancel()

		logger.Info("Shutting down HTTP server")
		return srv.Shutdown(shutdownCtx)
	})

	if syncInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(syncInterval)
			defer ticker.Stop()

			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					if err := a.VFS.Sync(gctx); err != nil {
						logger.Error("Periodic sync failed", slogext.Err(err))
					}
				}
			}
		})
	}

	return g.Wait()
}
