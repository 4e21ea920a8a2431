package gateway

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/calvora/sales-gateway/pkg/logger"
)

var ErrProviderUnavailable = errors.New("messaging provider unavailable")

// MessagingGateway wraps the SMS/WhatsApp provider: outbound sends and
// the provider-side message log used by the history merger.
type MessagingGateway interface {
	Send(ctx context.Context, req *MessageSendRequest) (*MessageSendResponse, error)
	ListHistory(ctx context.Context, phone string) ([]ProviderMessage, error)
}

type MessageSendRequest struct {
	From    string               `json:"from"`
	To      string               `json:"to"`
	Body    string               `json:"body"`
	Channel model.MessageChannel `json:"channel"`
}

type MessageSendResponse struct {
	MessageSid string `json:"message_sid"`
	Status     string `json:"status"`
}

// ProviderMessage is one entry of the provider's own message log.
type ProviderMessage struct {
	Sid         string    `json:"sid"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Body        string    `json:"body"`
	Status      string    `json:"status"`
	DateCreated time.Time `json:"date_created"`
}

// ProviderMetrics tracks request outcomes for the upstream messaging
// provider; the circuit breaker keys off ConsecutiveFails.
type ProviderMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	LastLatencyMs    atomic.Int64
	ConsecutiveFails atomic.Int32
	LastErrorTime    atomic.Int64
	LastSuccessTime  atomic.Int64
}

func (m *ProviderMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.LastLatencyMs.Store(latencyMs)
	m.ConsecutiveFails.Store(0)
	m.LastSuccessTime.Store(time.Now().Unix())
}

func (m *ProviderMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
	m.LastErrorTime.Store(time.Now().Unix())
}

func (m *ProviderMetrics) AvgLatencyMs() int64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / total
}

func (m *ProviderMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

type MessagingConfig struct {
	BaseURL                 string
	APIKey                  string
	Timeout                 time.Duration
	MaxRetries              int
	RetryDelay              time.Duration
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

type messagingGateway struct {
	config MessagingConfig
	api    *apiClient

	metrics          ProviderMetrics
	circuitOpenUntil atomic.Int64
}

func NewMessagingGateway(config MessagingConfig) MessagingGateway {
	if config.MaxRetries <= 0 {
		config.MaxRetries = 2
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = 200 * time.Millisecond
	}
	if config.CircuitBreakerThreshold <= 0 {
		config.CircuitBreakerThreshold = 5
	}
	if config.CircuitBreakerTimeout <= 0 {
		config.CircuitBreakerTimeout = 30 * time.Second
	}
	return &messagingGateway{
		config: config,
		api:    newAPIClient(config.BaseURL, config.APIKey, config.Timeout),
	}
}

func (g *messagingGateway) available() bool {
	return time.Now().Unix() > g.circuitOpenUntil.Load()
}

func (g *messagingGateway) recordFailure() {
	g.metrics.RecordFailure()
	fails := g.metrics.ConsecutiveFails.Load()
	if fails >= int32(g.config.CircuitBreakerThreshold) {
		openUntil := time.Now().Add(g.config.CircuitBreakerTimeout).Unix()
		g.circuitOpenUntil.Store(openUntil)
		logger.Warn("messaging circuit breaker opened", "consecutive_fails", fails, "timeout", g.config.CircuitBreakerTimeout)
	}
}

func (g *messagingGateway) Send(ctx context.Context, req *MessageSendRequest) (*MessageSendResponse, error) {
	var lastErr error
	for attempt := 0; attempt <= g.config.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(g.config.RetryDelay):
			}
		}

		if !g.available() {
			lastErr = ErrProviderUnavailable
			continue
		}

		startTime := time.Now()
		var resp MessageSendResponse
		err := g.api.doJSON(ctx, "POST", "/v1/messages", req, &resp)
		latency := time.Since(startTime).Milliseconds()

		if err != nil {
			g.recordFailure()
			logger.Warn("message send failed, retrying", "error", err, "attempt", attempt+1)
			lastErr = err
			continue
		}

		g.metrics.RecordSuccess(latency)
		logger.Info("message sent to provider", "sid", resp.MessageSid, "channel", string(req.Channel), "latency_ms", latency)
		return &resp, nil
	}

	return nil, fmt.Errorf("failed after %d attempts: %w", g.config.MaxRetries+1, lastErr)
}

func (g *messagingGateway) ListHistory(ctx context.Context, phone string) ([]ProviderMessage, error) {
	if !g.available() {
		return nil, ErrProviderUnavailable
	}

	startTime := time.Now()
	var resp struct {
		Messages []ProviderMessage `json:"messages"`
	}
	err := g.api.doJSON(ctx, "GET", "/v1/messages?phone="+phone, nil, &resp)
	latency := time.Since(startTime).Milliseconds()

	if err != nil {
		g.recordFailure()
		return nil, err
	}

	g.metrics.RecordSuccess(latency)
	return resp.Messages, nil
}

// Stats returns a point-in-time snapshot of the provider metrics,
// circuit state included.
func (g *messagingGateway) Stats() ProviderStats {
	return ProviderStats{
		TotalRequests:    g.metrics.TotalRequests.Load(),
		SuccessfulReqs:   g.metrics.SuccessfulReqs.Load(),
		FailedReqs:       g.metrics.FailedReqs.Load(),
		SuccessRate:      g.metrics.SuccessRate(),
		AvgLatencyMs:     g.metrics.AvgLatencyMs(),
		LastLatencyMs:    g.metrics.LastLatencyMs.Load(),
		ConsecutiveFails: g.metrics.ConsecutiveFails.Load(),
		CircuitOpen:      !g.available(),
	}
}

type ProviderStats struct {
	TotalRequests    int64   `json:"total_requests"`
	SuccessfulReqs   int64   `json:"successful_requests"`
	FailedReqs       int64   `json:"failed_requests"`
	SuccessRate      float64 `json:"success_rate"`
	AvgLatencyMs     int64   `json:"avg_latency_ms"`
	LastLatencyMs    int64   `json:"last_latency_ms"`
	ConsecutiveFails int32   `json:"consecutive_fails"`
	CircuitOpen      bool    `json:"circuit_open"`
}
