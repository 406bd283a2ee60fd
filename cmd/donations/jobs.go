package main

import (
	"context"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/goliatone/go-donation-cache/pkg/di"
)

func newReconcileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one payment reconciliation against the provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *di.Container) error {
				if !c.ProviderEnabled() {
					c.Logger().Warn("payment provider not configured, nothing to reconcile")
					return nil
				}
				report, err := c.Reconciler().Run(ctx)
				if err != nil {
					return err
				}
				cmd.Printf("pages=%d seen=%d captured=%d changed=%d skipped=%d invalidated=%d\n",
					report.Pages, report.Seen, report.Captured, report.Changed, report.Skipped, report.Invalidated)
				return nil
			})
		},
	}
}

func newCloseExpiredCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "close-expired",
		Short: "Deactivate collects whose close date has passed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *di.Container) error {
				return c.ExpiredCloser().Run(ctx)
			})
		},
	}
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the database schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withContainer(cmd.Context(), func(ctx context.Context, c *di.Container) error {
				if err := c.Migrate(ctx); err != nil {
					return err
				}
				c.Logger().Info("schema ready", zap.String("driver", c.Config().Database.Driver))
				return nil
			})
		},
	}
}
