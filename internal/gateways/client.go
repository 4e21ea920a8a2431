package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/valyala/fasthttp"
)

const defaultTimeout = 10 * time.Second

// apiClient is a thin JSON client over fasthttp shared by the provider
// gateways. Each gateway owns one instance per upstream host.
type apiClient struct {
	baseURL string
	apiKey  string
	timeout time.Duration
	client  *fasthttp.Client
}

func newAPIClient(baseURL, apiKey string, timeout time.Duration) *apiClient {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &apiClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		timeout: timeout,
		client: &fasthttp.Client{
			ReadTimeout:         timeout,
			WriteTimeout:        timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}
}

// doJSON performs a JSON request and decodes the response into out.
// Pass a nil body for body-less methods and a nil out to discard the
// response payload.
func (c *apiClient) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	return c.doJSONWithAuth(ctx, method, path, c.apiKey, body, out)
}

// doJSONWithAuth is doJSON with a per-request bearer token, for
// upstreams where credentials vary by caller rather than by host.
func (c *apiClient) doJSONWithAuth(ctx context.Context, method, path, bearer string, body interface{}, out interface{}) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.SetContentType("application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		req.SetBody(raw)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode < fasthttp.StatusOK || statusCode >= fasthttp.StatusMultipleChoices {
		return fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}

	if out != nil {
		if err := json.Unmarshal(resp.Body(), out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
