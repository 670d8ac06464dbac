/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/shopcat/apiserver/config"
	"github.com/shopcat/apiserver/internal/mq"
	"github.com/shopcat/apiserver/types"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var tailPattern string

// eventsCmd groups catalog event tooling.
var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Inspect catalog change events",
}

var eventsTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print catalog events as they are published",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := newLogger(cfg)
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		broker, err := mq.Open(ctx, cfg.Events)
		if err != nil {
			return err
		}
		events := mq.NewCatalogEvents(broker)
		defer events.Close()

		logger.Info("tailing catalog events",
			zap.String("backend", cfg.Events.Backend),
			zap.String("channel", cfg.Events.Channel),
			zap.String("pattern", tailPattern),
		)
		err = events.SubscribeCatalogEvents(ctx, tailPattern, func(ctx context.Context, event types.CatalogEvent) error {
			logger.Info("catalog event",
				zap.String("type", string(event.Type)),
				zap.Int("product_id", event.ProductID),
				zap.String("image_url", event.ImageURL),
				zap.Time("occurred_at", event.OccurredAt),
			)
			return nil
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.AddCommand(eventsTailCmd)
	eventsTailCmd.Flags().StringVarP(&tailPattern, "type", "t", "#", `event type pattern, e.g. "product.*" or "image.uploaded"`)
}
