package services

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/desertthunder/hoardsync/internal/models"
	"github.com/desertthunder/hoardsync/internal/shared"
	tu "github.com/desertthunder/hoardsync/internal/testing"
)

func TestAPIService(t *testing.T) {
	t.Run("Nil Client Uses Default", func(t *testing.T) {
		srv := NewAPIService("http://example.com", nil)
		if srv.httpClient != http.DefaultClient {
			t.Error("expected http.DefaultClient to be used")
		}
	})

	t.Run("Get", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				t.Errorf("expected GET method, got %s", r.Method)
			}
			if r.URL.Path != "/test" {
				t.Errorf("expected path '/test', got %s", r.URL.Path)
			}
			if got := r.Header.Get("Accept"); got != "application/json" {
				t.Errorf("expected JSON accept header, got %q", got)
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]string{"status": "success"})
		}))
		defer server.Close()

		resp, err := NewAPIService(server.URL, nil).Get(context.Background(), "/test")
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !resp.OK() {
			t.Errorf("expected 2xx, got %d", resp.StatusCode)
		}
		if !resp.IsJSON {
			t.Error("expected response to be JSON")
		}

		var body map[string]string
		if err := resp.Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body["status"] != "success" {
			t.Errorf("unexpected body %v", body)
		}
	})

	t.Run("PostJSON", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Content-Type") != "application/json" {
				t.Errorf("expected JSON content type, got %q", r.Header.Get("Content-Type"))
			}
			data, _ := io.ReadAll(r.Body)
			w.Write(data)
		}))
		defer server.Close()

		resp, err := NewAPIService(server.URL, nil).PostJSON(context.Background(), "", map[string]int{"n": 1})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if string(resp.Body) != `{"n":1}` {
			t.Errorf("expected echoed body, got %s", resp.Body)
		}
	})

	t.Run("PostJSON Unencodable", func(t *testing.T) {
		_, err := NewAPIService("http://example.com", nil).PostJSON(context.Background(), "", make(chan int))
		if err == nil {
			t.Fatal("expected encode error")
		}
	})

	t.Run("Transport Error", func(t *testing.T) {
		client := &http.Client{Transport: tu.NewMockRoundTripper(nil, errors.New("connection refused"))}
		_, err := NewAPIService("http://example.com", client).Get(context.Background(), "/x")
		if err == nil || !strings.Contains(err.Error(), "connection refused") {
			t.Errorf("expected transport error, got %v", err)
		}
	})

	t.Run("Body Read Error", func(t *testing.T) {
		resp := &http.Response{StatusCode: http.StatusOK, Body: &tu.FCloser{}, Header: http.Header{}}
		client := &http.Client{Transport: tu.NewMockRoundTripper(resp, nil)}
		_, err := NewAPIService("http://example.com", client).Get(context.Background(), "/x")
		if err == nil || !strings.Contains(err.Error(), "failed to read response") {
			t.Errorf("expected read error, got %v", err)
		}
	})
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		temporary bool
	}{
		{"Bad Request", http.StatusBadRequest, false},
		{"Unauthorized", http.StatusUnauthorized, false},
		{"Rate Limited", http.StatusTooManyRequests, true},
		{"Server Error", http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newAPIError("Tana", shared.ErrTargetRequest, &APIResponse{StatusCode: tt.status, Body: []byte(" nope \n")})
			if !errors.Is(err, shared.ErrTargetRequest) {
				t.Error("expected error to wrap ErrTargetRequest")
			}
			if err.Temporary() != tt.temporary {
				t.Errorf("expected Temporary() = %v", tt.temporary)
			}
			if !strings.HasSuffix(err.Error(), ": nope") {
				t.Errorf("expected trimmed body in message, got %q", err.Error())
			}
		})
	}

	t.Run("Body Truncated", func(t *testing.T) {
		err := newAPIError("Hoarder", shared.ErrSourceRequest, &APIResponse{StatusCode: 500, Body: []byte(strings.Repeat("x", 5000))})
		if len(err.Body) != maxErrorBody {
			t.Errorf("expected body of %d bytes, got %d", maxErrorBody, len(err.Body))
		}
	})
}

func TestNewTokenClient(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewTokenClient(context.Background(), "secret", 5*time.Second)
	if client.Timeout != 5*time.Second {
		t.Errorf("expected timeout to be set, got %v", client.Timeout)
	}
	if _, err := NewAPIService(server.URL, client).Get(context.Background(), "/"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if auth != "Bearer secret" {
		t.Errorf("expected bearer header, got %q", auth)
	}
}

func TestHoarderService(t *testing.T) {
	t.Run("New", func(t *testing.T) {
		tests := []struct {
			name    string
			baseURL string
			wantErr bool
		}{
			{"Valid", "http://localhost:3000", false},
			{"Trailing Slash", "http://localhost:3000/", false},
			{"Empty", "", true},
			{"Relative", "localhost", true},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				h, err := NewHoarderService(tt.baseURL, nil)
				if tt.wantErr {
					if !errors.Is(err, shared.ErrInvalidConfig) {
						t.Errorf("expected ErrInvalidConfig, got %v", err)
					}
					return
				}
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if h.baseURL != "http://localhost:3000" {
					t.Errorf("expected trailing slash stripped, got %s", h.baseURL)
				}
			})
		}
	})

	t.Run("ArchiveURL", func(t *testing.T) {
		h, _ := NewHoarderService("https://hoarder.example.com/", nil)
		if got := h.ArchiveURL("asset-1"); got != "https://hoarder.example.com/archive/asset-1" {
			t.Errorf("unexpected archive URL %s", got)
		}
	})

	t.Run("FetchPage", func(t *testing.T) {
		var query string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/v1/bookmarks" {
				t.Errorf("unexpected path %s", r.URL.Path)
			}
			query = r.URL.RawQuery
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"bookmarks": [{"id": "b1", "createdAt": "2024-01-01T00:00:00Z", "title": null,
					"content": {"type": "link", "url": "https://example.com", "title": "Example"},
					"tags": [{"id": "t1", "name": "go", "attachedBy": "ai"}]}],
				"nextCursor": "c2"
			}`))
		}))
		defer server.Close()

		h, _ := NewHoarderService(server.URL, nil)
		page, err := h.FetchPage(context.Background(), "c1", 50)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if query != "cursor=c1&limit=50" {
			t.Errorf("unexpected query %q", query)
		}
		if len(page.Bookmarks) != 1 || page.Bookmarks[0].Content.Title != "Example" {
			t.Errorf("unexpected page %+v", page)
		}
		if page.NextCursor != "c2" || !page.HasMore() {
			t.Errorf("expected next cursor c2, got %q", page.NextCursor)
		}
	})

	t.Run("FetchPage Without Cursor", func(t *testing.T) {
		var query string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			query = r.URL.RawQuery
			w.Write([]byte(`{"bookmarks": [], "nextCursor": null}`))
		}))
		defer server.Close()

		h, _ := NewHoarderService(server.URL, nil)
		page, err := h.FetchPage(context.Background(), "", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if query != "limit=5" {
			t.Errorf("expected cursor to be omitted, got %q", query)
		}
		if page.HasMore() {
			t.Error("expected a null cursor to end pagination")
		}
	})

	t.Run("FetchPage Errors", func(t *testing.T) {
		tests := []struct {
			name   string
			status int
			body   string
		}{
			{"Unauthorized", http.StatusUnauthorized, `{"code":"UNAUTHORIZED"}`},
			{"Server Error", http.StatusInternalServerError, `oops`},
			{"Malformed Body", http.StatusOK, `{"bookmarks":`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					w.WriteHeader(tt.status)
					w.Write([]byte(tt.body))
				}))
				defer server.Close()

				h, _ := NewHoarderService(server.URL, nil)
				if _, err := h.FetchPage(context.Background(), "", 10); !errors.Is(err, shared.ErrSourceRequest) {
					t.Errorf("expected ErrSourceRequest, got %v", err)
				}
			})
		}
	})
}

func testDocument(t *testing.T) *models.PlainNode {
	t.Helper()
	field, err := models.NewField("1IJSCbcJ-4x6", models.Text("b1"))
	if err != nil {
		t.Fatalf("field: %v", err)
	}
	doc, err := models.NewDocument("Example", []string{"Jv6WSsH6CO7u"}, field)
	if err != nil {
		t.Fatalf("document: %v", err)
	}
	return doc
}

func TestTanaService(t *testing.T) {
	t.Run("Default Endpoint", func(t *testing.T) {
		svc := NewTanaService(TanaOpts{})
		if svc.api.baseURL != DefaultTanaEndpoint {
			t.Errorf("expected default endpoint, got %s", svc.api.baseURL)
		}
	})

	t.Run("Submit", func(t *testing.T) {
		var payload struct {
			TargetNodeID string            `json:"targetNodeId"`
			Nodes        []json.RawMessage `json:"nodes"`
		}
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				t.Errorf("expected POST, got %s", r.Method)
			}
			if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
				t.Errorf("decode: %v", err)
			}
			w.Write([]byte(`{"children":[{"nodeId":"abc"}]}`))
		}))
		defer server.Close()

		svc := NewTanaService(TanaOpts{Endpoint: server.URL, TargetNodeID: "INBOX"})
		if err := svc.Submit(context.Background(), testDocument(t)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if payload.TargetNodeID != "INBOX" {
			t.Errorf("expected INBOX target, got %q", payload.TargetNodeID)
		}
		if len(payload.Nodes) != 1 || !strings.Contains(string(payload.Nodes[0]), `"name":"Example"`) {
			t.Errorf("unexpected nodes %s", payload.Nodes)
		}
	})

	t.Run("Invalid Document Is Not Sent", func(t *testing.T) {
		var calls atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
		}))
		defer server.Close()

		svc := NewTanaService(TanaOpts{Endpoint: server.URL})
		bad := &models.PlainNode{Name: "bad", Supertags: []models.Supertag{{ID: "!"}}}
		if err := svc.Submit(context.Background(), bad); !errors.Is(err, shared.ErrInvalidNode) {
			t.Errorf("expected ErrInvalidNode, got %v", err)
		}
		if err := svc.Submit(context.Background(), nil); !errors.Is(err, shared.ErrInvalidNode) {
			t.Errorf("expected ErrInvalidNode for nil, got %v", err)
		}
		if calls.Load() != 0 {
			t.Errorf("expected no requests, got %d", calls.Load())
		}
	})

	t.Run("Rejected", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"invalid attribute"}`))
		}))
		defer server.Close()

		err := NewTanaService(TanaOpts{Endpoint: server.URL}).Submit(context.Background(), testDocument(t))
		if !errors.Is(err, shared.ErrTargetRequest) {
			t.Fatalf("expected ErrTargetRequest, got %v", err)
		}
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadRequest {
			t.Errorf("expected APIError with status 400, got %v", err)
		}
	})

	t.Run("Cancelled While Waiting For Limiter", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		defer server.Close()

		svc := NewTanaService(TanaOpts{Endpoint: server.URL, RequestsPerSecond: 0.001})
		if err := svc.Submit(context.Background(), testDocument(t)); err != nil {
			t.Fatalf("first submit should use the burst: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		if err := svc.Submit(ctx, testDocument(t)); !errors.Is(err, shared.ErrTargetRequest) {
			t.Errorf("expected ErrTargetRequest, got %v", err)
		}
	})
}
