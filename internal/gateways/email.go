package gateway

import (
	"context"
	"time"

	"github.com/calvora/sales-gateway/pkg/logger"
)

// EmailGateway wraps the transactional email provider. Delivery
// outcomes arrive later through the email webhook keyed by EmailID.
type EmailGateway interface {
	Send(ctx context.Context, req *EmailSendRequest) (*EmailSendResponse, error)
}

type EmailSendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text,omitempty"`
	HTML    string `json:"html,omitempty"`
}

type EmailSendResponse struct {
	EmailID string `json:"id"`
}

type emailGateway struct {
	api *apiClient
}

func NewEmailGateway(baseURL, apiKey string, timeout time.Duration) EmailGateway {
	return &emailGateway{api: newAPIClient(baseURL, apiKey, timeout)}
}

func (g *emailGateway) Send(ctx context.Context, req *EmailSendRequest) (*EmailSendResponse, error) {
	var resp EmailSendResponse
	if err := g.api.doJSON(ctx, "POST", "/emails", req, &resp); err != nil {
		return nil, err
	}
	logger.Info("email sent to provider", "email_id", resp.EmailID, "to", req.To)
	return &resp, nil
}
