package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/craftlearn/academy-billing-api/internal/models"
	appErrors "github.com/craftlearn/academy-billing-api/pkg/errors"
)

// VerificationStore debounces verification attempts across workers using
// Redis. It is a best-effort guard only; the unique payment reference in the
// record store remains the durable idempotency key, so every method degrades
// to a no-op when Redis is unavailable.
type VerificationStore struct {
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

// NewVerificationStore constructs the store.
func NewVerificationStore(client *redis.Client, ttl time.Duration, logger *zap.Logger) *VerificationStore {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationStore{client: client, ttl: ttl, logger: logger}
}

func (s *VerificationStore) key(reference string) string {
	return "verify:" + reference
}

// Begin claims the in-flight slot for a reference. It returns true when this
// caller is the first to process the reference within the TTL.
func (s *VerificationStore) Begin(ctx context.Context, reference string) (bool, error) {
	if s.client == nil {
		return true, nil
	}
	claimed, err := s.client.SetNX(ctx, s.key(reference), []byte(`{"state":"PROCESSING"}`), s.ttl).Result()
	if err != nil {
		s.logger.Warn("verification debounce unavailable", zap.Error(err))
		return true, nil
	}
	return claimed, nil
}

// Complete stores the terminal outcome so replays within the TTL can
// short-circuit without touching the record store.
func (s *VerificationStore) Complete(ctx context.Context, reference string, result *models.VerificationResult) error {
	if s.client == nil {
		return nil
	}
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal verification result: %w", err)
	}
	if err := s.client.Set(ctx, s.key(reference), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("store verification result: %w", err)
	}
	return nil
}

// Get returns the stored outcome for a reference, or ErrCacheMiss.
func (s *VerificationStore) Get(ctx context.Context, reference string) (*models.VerificationResult, error) {
	if s.client == nil {
		return nil, appErrors.ErrCacheMiss
	}
	raw, err := s.client.Get(ctx, s.key(reference)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", s.key(reference), err)
	}
	var result models.VerificationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("unmarshal verification result: %w", err)
	}
	return &result, nil
}

// Release drops the in-flight claim, letting a later attempt retry after a
// transient failure.
func (s *VerificationStore) Release(ctx context.Context, reference string) {
	if s.client == nil {
		return
	}
	if err := s.client.Del(ctx, s.key(reference)).Err(); err != nil {
		s.logger.Warn("release verification claim", zap.String("reference", reference), zap.Error(err))
	}
}
