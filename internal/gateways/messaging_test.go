package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMessagingGateway_Send(t *testing.T) {
	var received MessageSendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(MessageSendResponse{MessageSid: "SM123", Status: "sent"})
	}))
	defer srv.Close()

	g := NewMessagingGateway(MessagingConfig{BaseURL: srv.URL, Timeout: 2 * time.Second})

	resp, err := g.Send(context.Background(), &MessageSendRequest{
		From:    "+15550001111",
		To:      "+15552223333",
		Body:    "hello",
		Channel: model.MessageChannelSMS,
	})
	require.NoError(t, err)
	assert.Equal(t, "SM123", resp.MessageSid)
	assert.Equal(t, "+15552223333", received.To)
}

func TestMessagingGateway_SendRetriesOnFailure(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(MessageSendResponse{MessageSid: "SM456", Status: "sent"})
	}))
	defer srv.Close()

	g := NewMessagingGateway(MessagingConfig{
		BaseURL:    srv.URL,
		Timeout:    2 * time.Second,
		MaxRetries: 2,
		RetryDelay: 10 * time.Millisecond,
	})

	resp, err := g.Send(context.Background(), &MessageSendRequest{To: "+15552223333", Body: "hi", Channel: model.MessageChannelSMS})
	require.NoError(t, err)
	assert.Equal(t, "SM456", resp.MessageSid)
	assert.Equal(t, int32(2), calls.Load())
}

func TestMessagingGateway_CircuitBreakerOpens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	g := NewMessagingGateway(MessagingConfig{
		BaseURL:                 srv.URL,
		Timeout:                 2 * time.Second,
		MaxRetries:              1,
		RetryDelay:              time.Millisecond,
		CircuitBreakerThreshold: 2,
		CircuitBreakerTimeout:   time.Minute,
	})

	_, err := g.Send(context.Background(), &MessageSendRequest{To: "+1555", Body: "x", Channel: model.MessageChannelSMS})
	require.Error(t, err)

	// Threshold reached during the retries above, later calls short-circuit.
	_, err = g.ListHistory(context.Background(), "+1555")
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	mg := g.(*messagingGateway)
	assert.True(t, mg.Stats().CircuitOpen)
}

func TestMessagingGateway_ListHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "+15552223333", r.URL.Query().Get("phone"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"messages": []ProviderMessage{
				{Sid: "SM1", Body: "first", Status: "delivered", DateCreated: time.Now().Add(-time.Hour)},
				{Sid: "SM2", Body: "second", Status: "sent", DateCreated: time.Now()},
			},
		})
	}))
	defer srv.Close()

	g := NewMessagingGateway(MessagingConfig{BaseURL: srv.URL, Timeout: 2 * time.Second})

	history, err := g.ListHistory(context.Background(), "+15552223333")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "SM1", history[0].Sid)
}

func TestProviderMetrics_RecordSuccess(t *testing.T) {
	var metrics ProviderMetrics

	metrics.RecordSuccess(100)
	metrics.RecordSuccess(200)

	assert.Equal(t, int64(2), metrics.TotalRequests.Load())
	assert.Equal(t, int64(2), metrics.SuccessfulReqs.Load())
	assert.Equal(t, int64(0), metrics.FailedReqs.Load())
	assert.Equal(t, float64(1.0), metrics.SuccessRate())
	assert.Equal(t, int64(150), metrics.AvgLatencyMs())
}

func TestProviderMetrics_RecordFailure(t *testing.T) {
	var metrics ProviderMetrics

	metrics.RecordSuccess(100)
	metrics.RecordFailure()
	metrics.RecordFailure()

	assert.Equal(t, int64(3), metrics.TotalRequests.Load())
	assert.Equal(t, int64(1), metrics.SuccessfulReqs.Load())
	assert.Equal(t, int64(2), metrics.FailedReqs.Load())
	assert.InDelta(t, 0.333, metrics.SuccessRate(), 0.01)
	assert.Equal(t, int32(2), metrics.ConsecutiveFails.Load())
}
