package services

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	gateway "github.com/calvora/sales-gateway/internal/gateways"
	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockOwnedContactRepo struct {
	mock.Mock
}

func (m *MockOwnedContactRepo) GetOwnedByUser(ctx context.Context, id, userID int64) (*model.Contact, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Contact), args.Error(1)
}

func (m *MockOwnedContactRepo) List(ctx context.Context, f model.ContactFilter) ([]*model.Contact, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Contact), args.Get(1).(int64), args.Error(2)
}

type MockCallStore struct {
	mock.Mock
}

func (m *MockCallStore) Create(ctx context.Context, c *model.Call) (*model.Call, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	created := *c
	created.ID = args.Get(0).(*model.Call).ID
	return &created, args.Error(1)
}

func (m *MockCallStore) GetOwnedByUser(ctx context.Context, id, userID int64) (*model.Call, error) {
	args := m.Called(ctx, id, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Call), args.Error(1)
}

func (m *MockCallStore) UpdateBySessionID(ctx context.Context, sessionID string, update model.CallUpdate) (*model.Call, error) {
	args := m.Called(ctx, sessionID, update)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Call), args.Error(1)
}

func (m *MockCallStore) List(ctx context.Context, f model.CallFilter) ([]*model.Call, int64, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Get(1).(int64), args.Error(2)
	}
	return args.Get(0).([]*model.Call), args.Get(1).(int64), args.Error(2)
}

// stubVoiceGateway counts concurrent provider calls so the bounded
// pool behavior is observable.
type stubVoiceGateway struct {
	delay      time.Duration
	failFor    map[string]bool
	logEntries []gateway.ProviderCall
	logErr     error
	logCalls   atomic.Int64
	calls      atomic.Int64
	inFlight   atomic.Int64
	maxInFlght atomic.Int64
}

func (g *stubVoiceGateway) CreateCall(ctx context.Context, req *gateway.CreateCallRequest) (*gateway.CreateCallResponse, error) {
	n := g.inFlight.Add(1)
	defer g.inFlight.Add(-1)
	for {
		prev := g.maxInFlght.Load()
		if n <= prev || g.maxInFlght.CompareAndSwap(prev, n) {
			break
		}
	}

	if g.delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.delay):
		}
	}

	g.calls.Add(1)
	if g.failFor != nil && g.failFor[req.ToNumber] {
		return nil, errors.New("provider rejected call")
	}
	return &gateway.CreateCallResponse{
		SessionID: req.ToNumber + "-session",
		CallID:    req.ToNumber + "-call",
	}, nil
}

func (g *stubVoiceGateway) ListCalls(ctx context.Context, fromNumber string) ([]gateway.ProviderCall, error) {
	g.logCalls.Add(1)
	return g.logEntries, g.logErr
}

func TestCallService_Initiate(t *testing.T) {
	contactRepo := new(MockOwnedContactRepo)
	callRepo := new(MockCallStore)
	voice := &stubVoiceGateway{}
	svc := NewCallService(contactRepo, callRepo, voice, CallServiceConfig{AgentNumber: "+15550000000"})
	ctx := context.Background()

	contact := &model.Contact{ID: 1, Phone: "15551234567", Category: "solar panels"}
	contactRepo.On("GetOwnedByUser", ctx, int64(1), int64(10)).Return(contact, nil)
	callRepo.On("Create", ctx, mock.MatchedBy(func(c *model.Call) bool {
		return c.Status == model.CallStatusScheduled &&
			c.Direction == model.CallDirectionOutbound &&
			c.SessionID == "+15551234567-session"
	})).Return(&model.Call{ID: 55}, nil)

	call, err := svc.Initiate(ctx, 10, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(55), call.ID)
	assert.Equal(t, "+15551234567-session", call.SessionID)
}

func TestCallService_InitiateNotOwned(t *testing.T) {
	contactRepo := new(MockOwnedContactRepo)
	callRepo := new(MockCallStore)
	svc := NewCallService(contactRepo, callRepo, &stubVoiceGateway{}, CallServiceConfig{})
	ctx := context.Background()

	contactRepo.On("GetOwnedByUser", ctx, int64(2), int64(10)).Return(nil, repository.ErrContactNotFound)

	_, err := svc.Initiate(ctx, 10, 2)
	assert.ErrorIs(t, err, ErrContactNotFound)
}

func TestCallService_QualificationHint(t *testing.T) {
	assert.Equal(t, "Interested in solar panels", QualificationHint(&model.Contact{Category: "solar panels"}))
	assert.Equal(t, "General inquiry", QualificationHint(&model.Contact{}))
}

func TestCallService_InitiateAllCollectsPartialFailures(t *testing.T) {
	contactRepo := new(MockOwnedContactRepo)
	callRepo := new(MockCallStore)
	voice := &stubVoiceGateway{failFor: map[string]bool{"+2": true}}
	svc := NewCallService(contactRepo, callRepo, voice, CallServiceConfig{BatchWorkers: 2})
	ctx := context.Background()

	contacts := []*model.Contact{
		{ID: 1, Phone: "1"},
		{ID: 2, Phone: "2"},
		{ID: 3, Phone: "3"},
	}
	contactRepo.On("List", ctx, mock.Anything).Return(contacts, int64(3), nil)
	callRepo.On("Create", ctx, mock.Anything).Return(&model.Call{ID: 1}, nil)

	result, err := svc.InitiateAll(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 1, result.Failed)

	var failedIDs []int64
	for _, r := range result.Results {
		if r.Error != "" {
			failedIDs = append(failedIDs, r.ContactID)
		}
	}
	assert.Equal(t, []int64{2}, failedIDs)
}

func TestCallService_InitiateAllBoundsConcurrency(t *testing.T) {
	contactRepo := new(MockOwnedContactRepo)
	callRepo := new(MockCallStore)
	voice := &stubVoiceGateway{delay: 20 * time.Millisecond}
	svc := NewCallService(contactRepo, callRepo, voice, CallServiceConfig{BatchWorkers: 2})
	ctx := context.Background()

	contacts := make([]*model.Contact, 8)
	for i := range contacts {
		contacts[i] = &model.Contact{ID: int64(i + 1), Phone: "555"}
	}
	contactRepo.On("List", ctx, mock.Anything).Return(contacts, int64(8), nil)
	callRepo.On("Create", ctx, mock.Anything).Return(&model.Call{ID: 1}, nil)

	result, err := svc.InitiateAll(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 8, result.Succeeded)
	assert.LessOrEqual(t, voice.maxInFlght.Load(), int64(2))
}

func TestCallService_PerCallTimeout(t *testing.T) {
	contactRepo := new(MockOwnedContactRepo)
	callRepo := new(MockCallStore)
	voice := &stubVoiceGateway{delay: time.Second}
	svc := NewCallService(contactRepo, callRepo, voice, CallServiceConfig{
		BatchWorkers: 2,
		CallTimeout:  20 * time.Millisecond,
	})
	ctx := context.Background()

	contacts := []*model.Contact{{ID: 1, Phone: "555"}}
	contactRepo.On("List", ctx, mock.Anything).Return(contacts, int64(1), nil)

	result, err := svc.InitiateAll(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Contains(t, result.Results[0].Error, "context deadline exceeded")
}

func TestCallService_DetailBackfillsFromProviderLog(t *testing.T) {
	contactRepo := new(MockOwnedContactRepo)
	callRepo := new(MockCallStore)
	recording := "https://provider.example/rec/1.wav"
	voice := &stubVoiceGateway{logEntries: []gateway.ProviderCall{
		{SessionID: "sess-other"},
		{
			SessionID:    "sess-1",
			EndTimestamp: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC).UnixMilli(),
			RecordingURL: recording,
			TranscriptObject: []gateway.TranscriptSegment{
				{Role: "agent", Content: "Hello"},
				{Role: "user", Content: "Hi"},
			},
			CallAnalysis: gateway.CallAnalysis{CallSummary: "Short intro call", UserSentiment: "positive"},
			CallCost:     gateway.CallCost{TotalDurationSeconds: 95, CombinedCost: 0.19},
		},
	}}
	svc := NewCallService(contactRepo, callRepo, voice, CallServiceConfig{AgentNumber: "+15550000000"})
	ctx := context.Background()

	stored := &model.Call{ID: 7, SessionID: "sess-1", Status: model.CallStatusCompleted}
	callRepo.On("GetOwnedByUser", ctx, int64(7), int64(10)).Return(stored, nil)
	callRepo.On("UpdateBySessionID", ctx, "sess-1", mock.MatchedBy(func(u model.CallUpdate) bool {
		return u.RecordingURL != nil && *u.RecordingURL == recording &&
			u.Duration != nil && *u.Duration == 95 &&
			u.Cost != nil && *u.Cost == 0.19 &&
			u.Summary != nil && *u.Summary == "Short intro call" &&
			u.Transcript != nil && *u.Transcript == "agent: Hello\nuser: Hi" &&
			u.Status == ""
	})).Return(&model.Call{ID: 7, SessionID: "sess-1", RecordingURL: &recording}, nil)

	call, err := svc.Detail(ctx, 10, 7)
	require.NoError(t, err)
	require.NotNil(t, call.RecordingURL)
	assert.Equal(t, recording, *call.RecordingURL)
	callRepo.AssertExpectations(t)
}

func TestCallService_DetailSkipsCompleteRows(t *testing.T) {
	contactRepo := new(MockOwnedContactRepo)
	callRepo := new(MockCallStore)
	voice := &stubVoiceGateway{}
	svc := NewCallService(contactRepo, callRepo, voice, CallServiceConfig{})
	ctx := context.Background()

	recording := "https://provider.example/rec/2.wav"
	stored := &model.Call{ID: 8, SessionID: "sess-2", RecordingURL: &recording}
	callRepo.On("GetOwnedByUser", ctx, int64(8), int64(10)).Return(stored, nil)

	call, err := svc.Detail(ctx, 10, 8)
	require.NoError(t, err)
	assert.Equal(t, stored, call)
	assert.Equal(t, int64(0), voice.logCalls.Load())
	callRepo.AssertNotCalled(t, "UpdateBySessionID", mock.Anything, mock.Anything, mock.Anything)
}

func TestCallService_DetailToleratesProviderFailure(t *testing.T) {
	contactRepo := new(MockOwnedContactRepo)
	callRepo := new(MockCallStore)
	voice := &stubVoiceGateway{logErr: errors.New("provider down")}
	svc := NewCallService(contactRepo, callRepo, voice, CallServiceConfig{})
	ctx := context.Background()

	stored := &model.Call{ID: 9, SessionID: "sess-3", Status: model.CallStatusInProgress}
	callRepo.On("GetOwnedByUser", ctx, int64(9), int64(10)).Return(stored, nil)

	call, err := svc.Detail(ctx, 10, 9)
	require.NoError(t, err)
	assert.Equal(t, stored, call)
	callRepo.AssertNotCalled(t, "UpdateBySessionID", mock.Anything, mock.Anything, mock.Anything)
}

func TestCallService_InitiateAllPagesThroughContacts(t *testing.T) {
	contactRepo := new(MockOwnedContactRepo)
	callRepo := new(MockCallStore)
	voice := &stubVoiceGateway{}
	svc := NewCallService(contactRepo, callRepo, voice, CallServiceConfig{BatchWorkers: 4})
	ctx := context.Background()

	firstPage := make([]*model.Contact, batchPageSize)
	for i := range firstPage {
		firstPage[i] = &model.Contact{ID: int64(i + 1), Phone: fmt.Sprintf("+1555%07d", i+1)}
	}
	secondPage := []*model.Contact{{ID: int64(batchPageSize + 1), Phone: "+15559999999"}}

	contactRepo.On("List", ctx, mock.MatchedBy(func(f model.ContactFilter) bool {
		return f.Offset == 0 && f.Limit == batchPageSize
	})).Return(firstPage, int64(batchPageSize+1), nil)
	contactRepo.On("List", ctx, mock.MatchedBy(func(f model.ContactFilter) bool {
		return f.Offset == batchPageSize && f.Limit == batchPageSize
	})).Return(secondPage, int64(batchPageSize+1), nil)
	callRepo.On("Create", mock.Anything, mock.Anything).Return(&model.Call{ID: 1}, nil)

	result, err := svc.InitiateAll(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, batchPageSize+1, result.Total)
	assert.Equal(t, batchPageSize+1, result.Succeeded)
	contactRepo.AssertExpectations(t)
}
