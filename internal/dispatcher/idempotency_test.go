package dispatcher

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calvora/sales-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
)

// Mock Redis adapter for testing
type mockRedisAdapter struct {
	data map[string][]byte
	ttls map[string]time.Time
}

func newMockRedisAdapter() *mockRedisAdapter {
	return &mockRedisAdapter{
		data: make(map[string][]byte),
		ttls: make(map[string]time.Time),
	}
}

func (m *mockRedisAdapter) SetNX(key string, value []byte, ttl time.Duration) (bool, error) {
	if _, exists := m.data[key]; exists {
		return false, nil
	}
	m.data[key] = value
	if ttl > 0 {
		m.ttls[key] = time.Now().Add(ttl)
	}
	return true, nil
}

func (m *mockRedisAdapter) Set(key string, value []byte, ttl time.Duration) error {
	m.data[key] = value
	if ttl > 0 {
		m.ttls[key] = time.Now().Add(ttl)
	}
	return nil
}

func (m *mockRedisAdapter) Get(key string) ([]byte, error) {
	if ttl, ok := m.ttls[key]; ok && time.Now().After(ttl) {
		delete(m.data, key)
		delete(m.ttls, key)
		return nil, redis.NilError
	}
	if value, ok := m.data[key]; ok {
		return value, nil
	}
	return nil, redis.NilError
}

func (m *mockRedisAdapter) Del(key string) error {
	delete(m.data, key)
	delete(m.ttls, key)
	return nil
}

func (m *mockRedisAdapter) Exist(key string) (int64, error) {
	if ttl, ok := m.ttls[key]; ok && time.Now().After(ttl) {
		delete(m.data, key)
		delete(m.ttls, key)
		return 0, nil
	}
	if _, ok := m.data[key]; ok {
		return 1, nil
	}
	return 0, nil
}

// Stub implementations for unused methods
func (m *mockRedisAdapter) Client() goredis.UniversalClient { return nil }
func (m *mockRedisAdapter) XAdd(key string, values map[string]interface{}) (string, error) {
	return "", nil
}
func (m *mockRedisAdapter) XAddWithID(key string, id string, values map[string]interface{}) (string, error) {
	return "", nil
}
func (m *mockRedisAdapter) XReadGroup(group, consumer, key, id string, count int64) ([]redis.StreamMessage, error) {
	return nil, nil
}
func (m *mockRedisAdapter) XAck(key, group string, ids ...string) error         { return nil }
func (m *mockRedisAdapter) XGroupCreateMkStream(key, group, start string) error { return nil }
func (m *mockRedisAdapter) XLen(key string) (int64, error)                      { return 0, nil }
func (m *mockRedisAdapter) XDel(key string, ids ...string) error                { return nil }
func (m *mockRedisAdapter) XTrimApprox(key string, maxLen int64) error          { return nil }
func (m *mockRedisAdapter) XPending(key, group string) (*goredis.XPending, error) {
	return nil, nil
}
func (m *mockRedisAdapter) XPendingExt(key, group string, start, end string, count int64) ([]goredis.XPendingExt, error) {
	return nil, nil
}
func (m *mockRedisAdapter) XClaim(key, group, consumer string, minIdle time.Duration, ids ...string) ([]redis.StreamMessage, error) {
	return nil, nil
}

func TestIdempotencyService_AcquireDispatchLock_FirstAttempt(t *testing.T) {
	mockRedis := newMockRedisAdapter()
	config := DefaultIdempotencyConfig()
	service := NewIdempotencyService(mockRedis, config)

	ctx := context.Background()
	messageID := "test-message-1"

	dispCtx, err := service.AcquireDispatchLock(ctx, messageID)
	if err != nil {
		t.Fatalf("Expected no error, got: %v", err)
	}

	if dispCtx == nil {
		t.Fatal("Expected dispatch context, got nil")
	}

	if dispCtx.MessageID != messageID {
		t.Errorf("Expected message ID %s, got %s", messageID, dispCtx.MessageID)
	}

	if dispCtx.RetryCount != 0 {
		t.Errorf("Expected retry count 0, got %d", dispCtx.RetryCount)
	}

	if dispCtx.IsRetry {
		t.Error("Expected IsRetry to be false")
	}

	if !dispCtx.lockAcquired {
		t.Error("Expected lock to be acquired")
	}
}

func TestIdempotencyService_AcquireDispatchLock_Concurrent(t *testing.T) {
	mockRedis := newMockRedisAdapter()
	config := DefaultIdempotencyConfig()
	service := NewIdempotencyService(mockRedis, config)

	ctx := context.Background()
	messageID := "test-message-2"

	dispCtx1, err := service.AcquireDispatchLock(ctx, messageID)
	if err != nil {
		t.Fatalf("First lock acquisition failed: %v", err)
	}

	dispCtx2, err := service.AcquireDispatchLock(ctx, messageID)
	if err != ErrLockAcquireFailed {
		t.Errorf("Expected ErrLockAcquireFailed, got: %v", err)
	}

	if dispCtx2 != nil {
		t.Error("Expected nil context for second consumer")
	}

	if !dispCtx1.lockAcquired {
		t.Error("First consumer should still have lock")
	}
}

func TestIdempotencyService_MarkSuccess(t *testing.T) {
	mockRedis := newMockRedisAdapter()
	config := DefaultIdempotencyConfig()
	service := NewIdempotencyService(mockRedis, config)

	ctx := context.Background()
	messageID := "test-message-3"

	dispCtx, err := service.AcquireDispatchLock(ctx, messageID)
	if err != nil {
		t.Fatalf("Lock acquisition failed: %v", err)
	}

	err = service.MarkSuccess(ctx, dispCtx)
	if err != nil {
		t.Fatalf("MarkSuccess failed: %v", err)
	}

	dispatched, err := service.IsDispatched(ctx, messageID)
	if err != nil {
		t.Fatalf("IsDispatched check failed: %v", err)
	}

	if !dispatched {
		t.Error("Message should be marked as dispatched")
	}

	dispCtx2, err := service.AcquireDispatchLock(ctx, messageID)
	if err != ErrAlreadyDispatched {
		t.Errorf("Expected ErrAlreadyDispatched, got: %v", err)
	}

	if dispCtx2 != nil {
		t.Error("Expected nil context for already dispatched message")
	}
}

func TestIdempotencyService_MarkFailure_WithRetry(t *testing.T) {
	mockRedis := newMockRedisAdapter()
	config := DefaultIdempotencyConfig()
	config.MaxRetries = 3
	service := NewIdempotencyService(mockRedis, config)

	ctx := context.Background()
	messageID := "test-message-4"

	dispCtx1, err := service.AcquireDispatchLock(ctx, messageID)
	if err != nil {
		t.Fatalf("First lock acquisition failed: %v", err)
	}

	if dispCtx1.RetryCount != 0 {
		t.Errorf("Expected retry count 0, got %d", dispCtx1.RetryCount)
	}

	err = service.MarkFailure(ctx, dispCtx1, nil)
	if err != nil {
		t.Fatalf("MarkFailure failed: %v", err)
	}

	dispCtx2, err := service.AcquireDispatchLock(ctx, messageID)
	if err != nil {
		t.Fatalf("Second lock acquisition failed: %v", err)
	}

	if dispCtx2.RetryCount != 1 {
		t.Errorf("Expected retry count 1, got %d", dispCtx2.RetryCount)
	}

	if !dispCtx2.IsRetry {
		t.Error("Expected IsRetry to be true")
	}
}

func TestIdempotencyService_MaxRetriesExceeded(t *testing.T) {
	mockRedis := newMockRedisAdapter()
	config := DefaultIdempotencyConfig()
	config.MaxRetries = 2
	service := NewIdempotencyService(mockRedis, config)

	ctx := context.Background()
	messageID := "test-message-5"

	for i := 0; i < config.MaxRetries; i++ {
		dispCtx, err := service.AcquireDispatchLock(ctx, messageID)
		if err != nil {
			t.Fatalf("Lock acquisition %d failed: %v", i, err)
		}
		err = service.MarkFailure(ctx, dispCtx, nil)
		if err != nil {
			t.Fatalf("MarkFailure %d failed: %v", i, err)
		}
	}

	dispCtx, err := service.AcquireDispatchLock(ctx, messageID)
	if !errors.Is(err, ErrMaxRetriesExceeded) {
		t.Errorf("Expected ErrMaxRetriesExceeded, got: %v", err)
	}

	if dispCtx != nil {
		t.Error("Expected nil context after max retries")
	}
}

func TestIdempotencyService_ReleaseLock(t *testing.T) {
	mockRedis := newMockRedisAdapter()
	config := DefaultIdempotencyConfig()
	service := NewIdempotencyService(mockRedis, config)

	ctx := context.Background()
	messageID := "test-message-6"

	dispCtx, err := service.AcquireDispatchLock(ctx, messageID)
	if err != nil {
		t.Fatalf("Lock acquisition failed: %v", err)
	}

	err = service.ReleaseLock(ctx, dispCtx)
	if err != nil {
		t.Fatalf("ReleaseLock failed: %v", err)
	}

	if dispCtx.lockAcquired {
		t.Error("Lock should be marked as released")
	}

	dispCtx2, err := service.AcquireDispatchLock(ctx, messageID)
	if err != nil {
		t.Fatalf("Second lock acquisition failed: %v", err)
	}

	if dispCtx2 == nil {
		t.Fatal("Expected dispatch context, got nil")
	}
}

func TestIdempotencyService_GetRetryCount(t *testing.T) {
	mockRedis := newMockRedisAdapter()
	config := DefaultIdempotencyConfig()
	service := NewIdempotencyService(mockRedis, config)

	ctx := context.Background()
	messageID := "test-message-7"

	count, err := service.GetRetryCount(ctx, messageID)
	if err != nil {
		t.Fatalf("GetRetryCount failed: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected retry count 0, got %d", count)
	}

	dispCtx, _ := service.AcquireDispatchLock(ctx, messageID)
	service.MarkFailure(ctx, dispCtx, nil)

	count, err = service.GetRetryCount(ctx, messageID)
	if err != nil {
		t.Fatalf("GetRetryCount failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected retry count 1, got %d", count)
	}
}
