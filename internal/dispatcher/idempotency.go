package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/calvora/sales-gateway/pkg/logger"
	"github.com/calvora/sales-gateway/pkg/redis"
)

var (
	ErrAlreadyDispatched  = errors.New("message already dispatched")
	ErrLockAcquireFailed  = errors.New("failed to acquire dispatch lock")
	ErrMaxRetriesExceeded = errors.New("maximum retries exceeded")
)

// IdempotencyConfig controls the Redis keys that guard against double
// sends: a short processing lock, a long-lived dispatched marker and a
// retry counter shared across redeliveries.
type IdempotencyConfig struct {
	LockTTL time.Duration

	DispatchedTTL time.Duration

	MaxRetries int

	RetryKeyPrefix string

	LockKeyPrefix string

	DispatchedKeyPrefix string
}

func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		LockTTL:             30 * time.Second,
		DispatchedTTL:       24 * time.Hour,
		MaxRetries:          3,
		RetryKeyPrefix:      "dispatch:retry:",
		LockKeyPrefix:       "dispatch:lock:",
		DispatchedKeyPrefix: "dispatch:done:",
	}
}

type IdempotencyService struct {
	redis  redis.RedisAdapter
	config IdempotencyConfig
}

func NewIdempotencyService(redisAdapter redis.RedisAdapter, config IdempotencyConfig) *IdempotencyService {
	return &IdempotencyService{
		redis:  redisAdapter,
		config: config,
	}
}

type DispatchContext struct {
	MessageID    string
	RetryCount   int
	IsRetry      bool
	lockAcquired bool
	service      *IdempotencyService
}

// AcquireDispatchLock checks the dispatched marker and retry budget,
// then takes the short-term lock so only one consumer sends a given
// message at a time.
func (s *IdempotencyService) AcquireDispatchLock(ctx context.Context, messageID string) (*DispatchContext, error) {
	dispatchedKey := s.config.DispatchedKeyPrefix + messageID
	exists, err := s.redis.Exist(dispatchedKey)
	if err != nil {
		logger.Warn("Failed to check dispatched status", "message_id", messageID, "error", err)
		// Risk a duplicate send rather than stalling the stream.
	} else if exists > 0 {
		logger.Info("Message already dispatched, skipping", "message_id", messageID)
		return nil, ErrAlreadyDispatched
	}

	retryKey := s.config.RetryKeyPrefix + messageID
	retryCountBytes, err := s.redis.Get(retryKey)
	retryCount := 0
	if err == nil && len(retryCountBytes) > 0 {
		fmt.Sscanf(string(retryCountBytes), "%d", &retryCount)
	}

	if retryCount >= s.config.MaxRetries {
		logger.Error("Max retries exceeded for message", "message_id", messageID, "retry_count", retryCount)
		return nil, fmt.Errorf("%w: message_id=%s, retries=%d", ErrMaxRetriesExceeded, messageID, retryCount)
	}

	lockKey := s.config.LockKeyPrefix + messageID
	lockValue := []byte(fmt.Sprintf("%d", time.Now().UnixNano()))

	acquired, err := s.redis.SetNX(lockKey, lockValue, s.config.LockTTL)
	if err != nil {
		logger.Error("Failed to acquire lock", "message_id", messageID, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrLockAcquireFailed, err)
	}

	if !acquired {
		logger.Info("Lock already held by another consumer", "message_id", messageID)
		return nil, ErrLockAcquireFailed
	}

	logger.Debug("Dispatch lock acquired",
		"message_id", messageID,
		"retry_count", retryCount,
		"lock_ttl", s.config.LockTTL)

	return &DispatchContext{
		MessageID:    messageID,
		RetryCount:   retryCount,
		IsRetry:      retryCount > 0,
		lockAcquired: true,
		service:      s,
	}, nil
}

// MarkSuccess sets the long-lived dispatched marker and clears the
// lock and retry counter.
func (s *IdempotencyService) MarkSuccess(ctx context.Context, dc *DispatchContext) error {
	messageID := dc.MessageID

	dispatchedKey := s.config.DispatchedKeyPrefix + messageID
	err := s.redis.Set(dispatchedKey, []byte("1"), s.config.DispatchedTTL)
	if err != nil {
		logger.Error("Failed to mark message as dispatched", "message_id", messageID, "error", err)
		return fmt.Errorf("failed to mark as dispatched: %w", err)
	}

	s.cleanup(ctx, dc)

	logger.Info("Message marked as dispatched",
		"message_id", messageID,
		"retry_count", dc.RetryCount)

	return nil
}

// MarkFailure bumps the retry counter and frees the lock so a later
// redelivery can try again.
func (s *IdempotencyService) MarkFailure(ctx context.Context, dc *DispatchContext, reason error) error {
	messageID := dc.MessageID

	retryKey := s.config.RetryKeyPrefix + messageID
	newRetryCount := dc.RetryCount + 1
	retryValue := []byte(fmt.Sprintf("%d", newRetryCount))

	// Counter outlives the lock so the budget holds across redeliveries.
	err := s.redis.Set(retryKey, retryValue, s.config.DispatchedTTL)
	if err != nil {
		logger.Error("Failed to increment retry counter", "message_id", messageID, "error", err)
	}

	lockKey := s.config.LockKeyPrefix + messageID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("Failed to remove lock", "message_id", messageID, "error", err)
	}

	logger.Warn("Message dispatch failed, will retry",
		"message_id", messageID,
		"retry_count", newRetryCount,
		"max_retries", s.config.MaxRetries,
		"reason", reason)

	return nil
}

func (s *IdempotencyService) ReleaseLock(ctx context.Context, dc *DispatchContext) error {
	if dc == nil || !dc.lockAcquired {
		return nil
	}

	lockKey := s.config.LockKeyPrefix + dc.MessageID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("Failed to release lock", "message_id", dc.MessageID, "error", err)
		return err
	}

	dc.lockAcquired = false
	logger.Debug("Dispatch lock released", "message_id", dc.MessageID)
	return nil
}

func (s *IdempotencyService) cleanup(ctx context.Context, dc *DispatchContext) {
	messageID := dc.MessageID

	lockKey := s.config.LockKeyPrefix + messageID
	if err := s.redis.Del(lockKey); err != nil {
		logger.Warn("Failed to cleanup lock", "message_id", messageID, "error", err)
	}

	retryKey := s.config.RetryKeyPrefix + messageID
	if err := s.redis.Del(retryKey); err != nil {
		logger.Warn("Failed to cleanup retry counter", "message_id", messageID, "error", err)
	}

	dc.lockAcquired = false
}

func (s *IdempotencyService) GetRetryCount(ctx context.Context, messageID string) (int, error) {
	retryKey := s.config.RetryKeyPrefix + messageID
	retryCountBytes, err := s.redis.Get(retryKey)
	if err != nil {
		if err == redis.NilError {
			return 0, nil
		}
		return 0, err
	}

	retryCount := 0
	fmt.Sscanf(string(retryCountBytes), "%d", &retryCount)
	return retryCount, nil
}

func (s *IdempotencyService) IsDispatched(ctx context.Context, messageID string) (bool, error) {
	dispatchedKey := s.config.DispatchedKeyPrefix + messageID
	exists, err := s.redis.Exist(dispatchedKey)
	if err != nil {
		return false, err
	}
	return exists > 0, nil
}
