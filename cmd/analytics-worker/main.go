package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/retailhive/retailhive-backend/internal/analytics"
	"github.com/retailhive/retailhive-backend/pkg/bigquery"
	"github.com/retailhive/retailhive-backend/pkg/config"
	"github.com/retailhive/retailhive-backend/pkg/instance"
	"github.com/retailhive/retailhive-backend/pkg/logger"
	"github.com/retailhive/retailhive-backend/pkg/metrics"
	"github.com/retailhive/retailhive-backend/pkg/outbox/idempotency"
	"github.com/retailhive/retailhive-backend/pkg/pubsub"
	"github.com/retailhive/retailhive-backend/pkg/redis"
)

const serviceKind = "analytics-worker"

type closer interface {
	Close() error
}

func main() {
	ctx := context.Background()
	logg := logger.New(logger.Options{ServiceName: serviceKind})

	_ = godotenv.Load()

	cfg, err := config.Load()
	requireResource(ctx, logg, "config", err)
	cfg.Service.Kind = serviceKind

	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	var closers []closer
	defer func() {
		if err := closeAll(closers); err != nil {
			logg.Error(ctx, "failed to close clients", err)
		}
	}()

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	requireResource(ctx, logg, "redis", err)
	closers = append(closers, redisClient)

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, logg, cfg.PubSub.AnalyticsSubscription)
	requireResource(ctx, logg, "pubsub", err)
	closers = append(closers, pubsubClient)

	bqClient, err := bigquery.NewClient(ctx, cfg.GCP, cfg.BigQuery, logg)
	requireResource(ctx, logg, "bigquery client", err)
	closers = append(closers, bqClient)

	subscription := pubsubClient.Subscription(cfg.PubSub.AnalyticsSubscription)
	if subscription == nil {
		requireResource(ctx, logg, "analytics subscription", errors.New("subscription not configured"))
	}

	manager, err := idempotency.NewManager(redisClient, cfg.Eventing.ConsumerIdempotencyTTL)
	requireResource(ctx, logg, "idempotency manager", err)

	writer, err := analytics.NewWriter(bqClient, cfg.BigQuery.OrderEventsTable, analytics.RetryPolicy{})
	requireResource(ctx, logg, "analytics bigquery writer", err)

	consumer, err := analytics.NewConsumer(writer, manager, metrics.NewConsumerMetrics(prometheus.DefaultRegisterer), logg)
	requireResource(ctx, logg, "analytics consumer", err)

	runCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	runCtx = logg.WithFields(runCtx, map[string]any{
		"env":          cfg.App.Env,
		"serviceKind":  serviceKind,
		"instance":     instance.GetID(serviceKind),
		"subscription": cfg.PubSub.AnalyticsSubscription,
		"table":        cfg.BigQuery.OrderEventsTable,
	})
	logg.Info(runCtx, "analytics worker ready")

	if err := consumer.Run(runCtx, subscription); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(runCtx, "analytics worker failed", err)
		os.Exit(1)
	}
}

// closeAll closes in reverse order of construction.
func closeAll(closers []closer) error {
	var errs error
	for i := len(closers) - 1; i >= 0; i-- {
		errs = multierr.Append(errs, closers[i].Close())
	}
	return errs
}

func requireResource(ctx context.Context, logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, fmt.Sprintf("resource not working: %s", resource), err)
	os.Exit(1)
}
