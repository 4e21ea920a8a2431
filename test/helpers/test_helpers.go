package helpers

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/repository"
	"github.com/calvora/sales-gateway/pkg/pg"
	"github.com/calvora/sales-gateway/pkg/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func SetupTestDB(t *testing.T) *pg.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.UserEntity{},
		&repository.ContactEntity{},
		&repository.CallEntity{},
		&repository.ThreadEntity{},
		&repository.MessageEntity{},
		&repository.CrmIntegrationEntity{},
	)
	require.NoError(t, err)

	pgDB := &pg.DB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	return pgDB
}

func SetupTestRedis(t *testing.T) (*miniredis.Miniredis, redis.RedisAdapter) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	adapter, err := redis.NewRedisAdapter("test", "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return mr, adapter
}

func CreateTestUser(t *testing.T, db *pg.DB, email, phone string) *repository.UserEntity {
	ctx := context.Background()
	user := &repository.UserEntity{
		Name:         "Test User",
		Email:        email,
		Phone:        phone,
		PasswordHash: "$2a$10$test.hash.not.a.real.one",
	}
	err := db.Write(ctx).Create(user).Error
	require.NoError(t, err)
	return user
}

func CreateTestContact(t *testing.T, db *pg.DB, userID *int64, name, phone string) *repository.ContactEntity {
	ctx := context.Background()
	contact := &repository.ContactEntity{
		UserID: userID,
		Name:   name,
		Phone:  model.NormalizePhone(phone),
		Source: model.ContactSourceManual,
		Status: string(model.ContactStatusNew),
	}
	err := db.Write(ctx).Create(contact).Error
	require.NoError(t, err)
	return contact
}

func CreateTestCall(t *testing.T, db *pg.DB, sessionID string, contactID *int64, direction string, status string) *repository.CallEntity {
	ctx := context.Background()
	call := &repository.CallEntity{
		SessionID: sessionID,
		ContactID: contactID,
		Direction: direction,
		Status:    status,
	}
	err := db.Write(ctx).Create(call).Error
	require.NoError(t, err)
	return call
}

func CreateTestThread(t *testing.T, db *pg.DB, contactID int64) *repository.ThreadEntity {
	ctx := context.Background()
	thread := &repository.ThreadEntity{
		ContactID: contactID,
	}
	err := db.Write(ctx).Create(thread).Error
	require.NoError(t, err)
	return thread
}

func CreateTestMessage(t *testing.T, db *pg.DB, threadID int64, channel, direction, status, body string) *repository.MessageEntity {
	ctx := context.Background()
	msg := &repository.MessageEntity{
		ThreadID:  threadID,
		Channel:   channel,
		Direction: direction,
		Status:    status,
		Body:      body,
		CreatedAt: time.Now(),
	}
	err := db.Write(ctx).Create(msg).Error
	require.NoError(t, err)
	return msg
}

func WaitForCondition(t *testing.T, timeout time.Duration, condition func() bool) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	return false
}

func AssertEventually(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	if !WaitForCondition(t, timeout, condition) {
		t.Fatal(msg)
	}
}

func ContextWithTimeout(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

func Ptr[T any](v T) *T {
	return &v
}
