package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/pubsub/v2"

	"github.com/retailhive/retailhive-backend/pkg/logger"
)

const heartbeatInterval = time.Minute

type pinger interface {
	Ping(context.Context) error
}

type notificationRunner interface {
	Run(ctx context.Context, subscriptions ...*pubsub.Subscriber) error
}

type ServiceParams struct {
	Logger        *logger.Logger
	Redis         pinger
	PubSub        pinger
	Notifications notificationRunner
	Subscriptions []*pubsub.Subscriber
}

// Service hosts the notification consumer for order and catalog events.
type Service struct {
	logg          *logger.Logger
	redis         pinger
	pubsub        pinger
	notifications notificationRunner
	subscriptions []*pubsub.Subscriber
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Notifications == nil {
		return nil, errors.New("notification consumer is required")
	}
	if len(params.Subscriptions) == 0 {
		return nil, errors.New("at least one subscription is required")
	}
	return &Service{
		logg:          params.Logger,
		redis:         params.Redis,
		pubsub:        params.PubSub,
		notifications: params.Notifications,
		subscriptions: params.Subscriptions,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// Run blocks until ctx is canceled or the consumer exits.
func (s *Service) Run(ctx context.Context) error {
	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- s.notifications.Run(ctx, s.subscriptions...)
	}()

	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			<-errCh
			return ctx.Err()
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "notification consumer stopped unexpectedly", err)
				return err
			}
			if err == nil {
				err = ctx.Err()
			}
			return err
		case <-ticker.C:
			s.logg.Debug(ctx, "worker heartbeat")
		}
	}
}
