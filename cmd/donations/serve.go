package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/goliatone/go-donation-cache/pkg/di"
)

const shutdownTimeout = 15 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var runNow bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the scheduled jobs and the metrics and health endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return opts.withContainer(ctx, func(ctx context.Context, c *di.Container) error {
				return serve(ctx, c, runNow)
			})
		},
	}
	cmd.Flags().BoolVar(&runNow, "run-now", false, "run every job once at startup")
	return cmd
}

func serve(ctx context.Context, c *di.Container, runNow bool) error {
	logger := c.Logger()

	scheduler, err := c.Scheduler()
	if err != nil {
		return err
	}

	srv := &http.Server{
		Addr:              c.Config().App.HTTPAddr,
		Handler:           newRouter(c),
		ReadHeaderTimeout: 5 * time.Second,
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error {
		if runNow {
			if c.ProviderEnabled() {
				scheduler.RunNow(di.JobReconcile, c.Config().Reconcile.LockTTL, c.ReconcileJob)
			}
			scheduler.RunNow(di.JobCloseExpired, c.Config().Reconcile.LockTTL, c.ExpiredCloser().Run)
		}
		scheduler.Start()
		<-ctx.Done()

		logger.Info("shutting down scheduler")
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		scheduler.Stop(stopCtx)
		return nil
	})

	group.Go(func() error {
		logger.Info("running listener", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		logger.Info("shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("gracefully stopped")
	return nil
}

func newRouter(c *di.Container) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.GetHead)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Handle("/metrics", c.Metrics().Handler())
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := c.Ping(r.Context()); err != nil {
			c.Logger().Warn("health check failed", zap.Error(err))
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return r
}

