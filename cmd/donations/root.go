package main

import (
	"context"

	pkgerrors "github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-donation-cache/internal/config"
	"github.com/goliatone/go-donation-cache/internal/logging"
	"github.com/goliatone/go-donation-cache/pkg/di"
)

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "donations",
		Short:         "Donation collects backend",
		Long:          "Serves the donation collects backend and runs its maintenance jobs.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to the config file (env DONATIONS_* overrides it)")

	cmd.AddCommand(
		newServeCmd(opts),
		newReconcileCmd(opts),
		newCloseExpiredCmd(opts),
		newMigrateCmd(opts),
	)
	return cmd
}

// bootstrap loads the config, builds the logger and wires the container.
// The caller closes the container and syncs the logger.
func (o *rootOptions) bootstrap(ctx context.Context) (*di.Container, *zap.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "load config")
	}

	logger, err := logging.New(cfg.App.Env, cfg.App.LogLevel)
	if err != nil {
		return nil, nil, pkgerrors.Wrap(err, "build logger")
	}
	logger.Info("starting donations",
		zap.String("version", version),
		zap.String("commit", commit),
		zap.String("date", date),
	)

	container, err := di.NewContainer(ctx, cfg, di.WithLogger(logger))
	if err != nil {
		_ = logger.Sync()
		return nil, nil, pkgerrors.Wrap(err, "wire application")
	}
	return container, logger, nil
}

// withContainer runs fn against a freshly wired container and releases it.
func (o *rootOptions) withContainer(ctx context.Context, fn func(context.Context, *di.Container) error) error {
	container, logger, err := o.bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	defer func() {
		if err := container.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("shutdown incomplete", zap.Error(err))
		}
	}()
	return fn(ctx, container)
}
