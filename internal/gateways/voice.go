package gateway

import (
	"context"
	"time"

	"github.com/calvora/sales-gateway/pkg/logger"
)

// VoiceGateway wraps the external voice-AI provider. Calls created
// here come back later as webhook events correlated by session id.
type VoiceGateway interface {
	CreateCall(ctx context.Context, req *CreateCallRequest) (*CreateCallResponse, error)
	ListCalls(ctx context.Context, fromNumber string) ([]ProviderCall, error)
}

type CreateCallRequest struct {
	FromNumber    string            `json:"from_number"`
	ToNumber      string            `json:"to_number"`
	AgentNumber   string            `json:"agent_number,omitempty"`
	Qualification string            `json:"qualification,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

type CreateCallResponse struct {
	SessionID string `json:"session_id"`
	CallID    string `json:"call_id"`
}

// ProviderCall is one entry of the provider's own call log.
type ProviderCall struct {
	SessionID        string              `json:"session_id"`
	CallID           string              `json:"call_id"`
	FromNumber       string              `json:"from_number"`
	ToNumber         string              `json:"to_number"`
	StartTimestamp   int64               `json:"start_timestamp"`
	EndTimestamp     int64               `json:"end_timestamp"`
	RecordingURL     string              `json:"recording_url"`
	PublicLogURL     string              `json:"public_log_url"`
	TranscriptObject []TranscriptSegment `json:"transcript_object"`
	CallAnalysis     CallAnalysis        `json:"call_analysis"`
	CallCost         CallCost            `json:"call_cost"`
}

type TranscriptSegment struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type CallAnalysis struct {
	CallSummary    string `json:"call_summary"`
	CallSuccessful bool   `json:"call_successful"`
	UserSentiment  string `json:"user_sentiment"`
}

type CallCost struct {
	TotalDurationSeconds int     `json:"total_duration_seconds"`
	CombinedCost         float64 `json:"combined_cost"`
}

type voiceGateway struct {
	api *apiClient
}

func NewVoiceGateway(baseURL, apiKey string, timeout time.Duration) VoiceGateway {
	return &voiceGateway{api: newAPIClient(baseURL, apiKey, timeout)}
}

func (g *voiceGateway) CreateCall(ctx context.Context, req *CreateCallRequest) (*CreateCallResponse, error) {
	var resp CreateCallResponse
	if err := g.api.doJSON(ctx, "POST", "/v2/create-phone-call", req, &resp); err != nil {
		return nil, err
	}
	logger.Info("voice call created", "session_id", resp.SessionID, "to", req.ToNumber)
	return &resp, nil
}

func (g *voiceGateway) ListCalls(ctx context.Context, fromNumber string) ([]ProviderCall, error) {
	body := map[string]interface{}{
		"filter_criteria": map[string]interface{}{
			"from_number": []string{fromNumber},
		},
	}
	var calls []ProviderCall
	if err := g.api.doJSON(ctx, "POST", "/v2/list-calls", body, &calls); err != nil {
		return nil, err
	}
	return calls, nil
}
