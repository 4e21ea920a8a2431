package gateway

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/calvora/sales-gateway/internal/model"
	"github.com/pkg/errors"
)

// CrmContact is the platform-neutral shape both CRM clients map to.
type CrmContact struct {
	ExternalID string
	Name       string
	Phone      string
	Email      string
}

// CrmGateway fetches and pushes contacts for one CRM platform using a
// per-user access token stored in CrmIntegration.
type CrmGateway interface {
	FetchContacts(ctx context.Context, accessToken string) ([]CrmContact, error)
	PushContact(ctx context.Context, accessToken string, contact *CrmContact) error
}

// NewCrmGateway returns the client for the given platform.
func NewCrmGateway(platform model.CrmPlatform, hubspotBaseURL, pipedriveBaseURL string, timeout time.Duration) (CrmGateway, error) {
	switch platform {
	case model.CrmPlatformHubSpot:
		return &hubspotGateway{api: newAPIClient(hubspotBaseURL, "", timeout)}, nil
	case model.CrmPlatformPipedrive:
		return &pipedriveGateway{api: newAPIClient(pipedriveBaseURL, "", timeout)}, nil
	}
	return nil, errors.Errorf("unsupported crm platform: %s", platform)
}

/* ===================== HUBSPOT ===================== */

type hubspotGateway struct {
	api *apiClient
}

type hubspotContact struct {
	ID         string `json:"id"`
	Properties struct {
		FirstName string `json:"firstname"`
		LastName  string `json:"lastname"`
		Phone     string `json:"phone"`
		Email     string `json:"email"`
	} `json:"properties"`
}

func (g *hubspotGateway) FetchContacts(ctx context.Context, accessToken string) ([]CrmContact, error) {
	var resp struct {
		Results []hubspotContact `json:"results"`
	}
	path := "/crm/v3/objects/contacts?limit=100&properties=firstname,lastname,phone,email"
	if err := g.api.doJSONWithAuth(ctx, "GET", path, accessToken, nil, &resp); err != nil {
		return nil, err
	}

	contacts := make([]CrmContact, 0, len(resp.Results))
	for _, hc := range resp.Results {
		name := hc.Properties.FirstName
		if hc.Properties.LastName != "" {
			if name != "" {
				name += " "
			}
			name += hc.Properties.LastName
		}
		contacts = append(contacts, CrmContact{
			ExternalID: hc.ID,
			Name:       name,
			Phone:      hc.Properties.Phone,
			Email:      hc.Properties.Email,
		})
	}
	return contacts, nil
}

func (g *hubspotGateway) PushContact(ctx context.Context, accessToken string, contact *CrmContact) error {
	body := map[string]interface{}{
		"properties": map[string]string{
			"firstname": contact.Name,
			"phone":     contact.Phone,
			"email":     contact.Email,
		},
	}
	return g.api.doJSONWithAuth(ctx, "POST", "/crm/v3/objects/contacts", accessToken, body, nil)
}

/* ===================== PIPEDRIVE ===================== */

type pipedriveGateway struct {
	api *apiClient
}

type pipedrivePerson struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Phone []struct {
		Value string `json:"value"`
	} `json:"phone"`
	Email []struct {
		Value string `json:"value"`
	} `json:"email"`
}

func (g *pipedriveGateway) FetchContacts(ctx context.Context, accessToken string) ([]CrmContact, error) {
	var resp struct {
		Data []pipedrivePerson `json:"data"`
	}
	path := fmt.Sprintf("/persons?limit=100&api_token=%s", accessToken)
	if err := g.api.doJSON(ctx, "GET", path, nil, &resp); err != nil {
		return nil, err
	}

	contacts := make([]CrmContact, 0, len(resp.Data))
	for _, p := range resp.Data {
		c := CrmContact{
			ExternalID: strconv.FormatInt(p.ID, 10),
			Name:       p.Name,
		}
		if len(p.Phone) > 0 {
			c.Phone = p.Phone[0].Value
		}
		if len(p.Email) > 0 {
			c.Email = p.Email[0].Value
		}
		contacts = append(contacts, c)
	}
	return contacts, nil
}

func (g *pipedriveGateway) PushContact(ctx context.Context, accessToken string, contact *CrmContact) error {
	body := map[string]interface{}{
		"name":  contact.Name,
		"phone": contact.Phone,
		"email": contact.Email,
	}
	path := fmt.Sprintf("/persons?api_token=%s", accessToken)
	return g.api.doJSON(ctx, "POST", path, body, nil)
}
