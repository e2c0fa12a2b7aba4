// Package refresh consumes transactions-changed notifications from Pub/Sub
// and invalidates the analytics cache.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/angelmondragon/stockcast/pkg/logger"
)

const (
	consumerName   = "refresh"
	idempotencyTTL = 24 * time.Hour
)

// Invalidator drops cached analytics.
type Invalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *gcppubsub.Message)) error
}

type idempotencyStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	IdempotencyKey(consumer, eventID string) string
}

// Service invalidates the cache once per notification.
type Service struct {
	subscription receiver
	invalidator  Invalidator
	store        idempotencyStore
	logg         *logger.Logger
}

// NewService builds the worker. store may be nil, in which case redelivered
// notifications invalidate again.
func NewService(subscription receiver, invalidator Invalidator, store idempotencyStore, logg *logger.Logger) (*Service, error) {
	if subscription == nil {
		return nil, errors.New("transactions subscription is required")
	}
	if invalidator == nil {
		return nil, errors.New("invalidator is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &Service{
		subscription: subscription,
		invalidator:  invalidator,
		store:        store,
		logg:         logg,
	}, nil
}

type processResult struct {
	nack bool
}

// Run consumes notifications until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	return s.subscription.Receive(ctx, func(innerCtx context.Context, msg *gcppubsub.Message) {
		if s.process(innerCtx, msg).nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

func (s *Service) process(ctx context.Context, msg *gcppubsub.Message) processResult {
	fields := map[string]any{"message_id": msg.ID}
	logCtx := s.logg.WithFields(ctx, fields)

	n, err := decode(msg)
	if err != nil {
		s.logg.Warn(s.logg.WithField(logCtx, "error", err.Error()), "invalid transactions notification")
		return processResult{}
	}
	fields["event_id"] = n.EventID
	fields["source"] = n.Source
	fields["rows"] = n.Rows
	fields["occurred_at"] = n.OccurredAt.Format(time.RFC3339Nano)
	logCtx = s.logg.WithFields(ctx, fields)

	first, key, err := s.markProcessed(logCtx, n.EventID)
	if err != nil {
		s.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if !first {
		s.logg.Info(logCtx, "notification already processed")
		return processResult{}
	}

	token, err := s.invalidator.Invalidate(logCtx)
	if err != nil {
		s.logg.Error(logCtx, "cache invalidation failed", err)
		if key != "" {
			_ = s.store.Del(logCtx, key)
		}
		return processResult{nack: true}
	}

	s.logg.Info(s.logg.WithField(logCtx, "freshness_token", token), "analytics cache invalidated")
	return processResult{}
}

func (s *Service) markProcessed(ctx context.Context, eventID string) (bool, string, error) {
	if s.store == nil {
		return true, "", nil
	}
	key := s.store.IdempotencyKey(consumerName, eventID)
	ok, err := s.store.SetNX(ctx, key, "1", idempotencyTTL)
	if err != nil {
		return false, "", fmt.Errorf("mark processed: %w", err)
	}
	return ok, key, nil
}
