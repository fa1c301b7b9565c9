// HTTP transport shared by the source and target clients
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// maxErrorBody caps how much of a failed response body is kept on an [APIError].
const maxErrorBody = 2048

// APIService performs raw JSON requests against a base URL.
type APIService struct {
	baseURL    string
	httpClient *http.Client
}

// NewAPIService creates a new API service for baseURL. A nil client means [http.DefaultClient].
func NewAPIService(baseURL string, client *http.Client) *APIService {
	if client == nil {
		client = http.DefaultClient
	}

	return &APIService{
		baseURL:    baseURL,
		httpClient: client,
	}
}

// NewTokenClient returns an [http.Client] that sends token as a bearer Authorization header on every request.
func NewTokenClient(ctx context.Context, token string, timeout time.Duration) *http.Client {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token, TokenType: "Bearer"}))
	client.Timeout = timeout
	return client
}

// APIResponse represents a raw API response with status and body.
type APIResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
	IsJSON     bool
}

// OK reports a 2xx status.
func (r *APIResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body into v.
func (r *APIResponse) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// APIError is returned for non-2xx responses. It wraps the sentinel of the failing side
// ([shared.ErrSourceRequest] or [shared.ErrTargetRequest]).
type APIError struct {
	Service    string
	StatusCode int
	Body       string
	Kind       error
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%v: %s returned status %d", e.Kind, e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%v: %s returned status %d: %s", e.Kind, e.Service, e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error { return e.Kind }

// Temporary reports whether retrying the whole sync later may succeed.
func (e *APIError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

func newAPIError(service string, kind error, resp *APIResponse) *APIError {
	body := resp.Body
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody]
	}
	return &APIError{Service: service, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body)), Kind: kind}
}

// Get performs a GET request to the specified path and returns the raw response.
func (a *APIService) Get(ctx context.Context, path string) (*APIResponse, error) {
	return a.do(ctx, http.MethodGet, path, nil)
}

// Post performs a POST request with the given JSON body and returns the raw response.
func (a *APIService) Post(ctx context.Context, path string, data []byte) (*APIResponse, error) {
	return a.do(ctx, http.MethodPost, path, data)
}

// PostJSON marshals v and posts it.
func (a *APIService) PostJSON(ctx context.Context, path string, v any) (*APIResponse, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}
	return a.Post(ctx, path, data)
}

func (a *APIService) do(ctx context.Context, method, path string, data []byte) (*APIResponse, error) {
	var body io.Reader
	if data != nil {
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &APIResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
		IsJSON:     json.Valid(respBody),
	}, nil
}
