package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/hoardsync/internal/models"
	"github.com/desertthunder/hoardsync/internal/shared"
)

type stubProvider struct {
	status *Status
	err    error
}

func (s *stubProvider) Status(ctx context.Context) (*Status, error) {
	return s.status, s.err
}

func TestBasicRouter(t *testing.T) {
	t.Run("Method Filtering", func(t *testing.T) {
		router := NewBasicRouter()
		router.Handle("get", "/ping", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("pong"))
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
		if rec.Code != http.StatusOK || rec.Body.String() != "pong" {
			t.Errorf("expected pong, got %d %q", rec.Code, rec.Body.String())
		}

		rec = httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/ping", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})

	t.Run("Middleware Order", func(t *testing.T) {
		var order []string
		tag := func(name string) Middleware {
			return func(next http.Handler) http.Handler {
				return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					order = append(order, name)
					next.ServeHTTP(w, r)
				})
			}
		}

		router := NewBasicRouter()
		router.Use(tag("first"), tag("second"))
		router.Handle(http.MethodGet, "/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			order = append(order, "handler")
		}))
		router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

		if strings.Join(order, ",") != "first,second,handler" {
			t.Errorf("unexpected order %v", order)
		}
	})

	t.Run("Recover", func(t *testing.T) {
		logger := shared.NewLogger(io.Discard)
		router := NewBasicRouter()
		router.Use(Logging(logger), Recover(logger))
		router.Handle(http.MethodGet, "/panic", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))

		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/panic", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("expected 500, got %d", rec.Code)
		}
	})
}

func TestStatusHandler(t *testing.T) {
	logger := shared.NewLogger(io.Discard)
	cursor := "c1"
	run := models.NewSyncRun(models.ModeIncremental)
	run.Created = 4
	run.Finish(nil)

	provider := &stubProvider{status: &Status{Cursor: &cursor, CacheEntries: 9, SyncedBookmarks: 4, LastRun: run}}
	router := NewBasicRouter()
	router.Handler(NewStatusHandler(provider, logger))

	t.Run("Health", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if !strings.Contains(rec.Body.String(), `"status":"ok"`) {
			t.Errorf("unexpected body %s", rec.Body.String())
		}
	})

	t.Run("Status", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d", rec.Code)
		}
		if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}

		var got Status
		if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if got.Cursor == nil || *got.Cursor != "c1" {
			t.Errorf("expected cursor c1, got %v", got.Cursor)
		}
		if got.SyncedBookmarks != 4 || got.LastRun == nil || got.LastRun.Created != 4 {
			t.Errorf("unexpected status %+v", got)
		}
	})

	t.Run("Caught Up Cursor Is Null", func(t *testing.T) {
		h := NewStatusHandler(&stubProvider{status: &Status{}}, logger)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
		if !strings.Contains(rec.Body.String(), `"cursor":null`) {
			t.Errorf("expected null cursor, got %s", rec.Body.String())
		}
	})

	t.Run("Provider Error", func(t *testing.T) {
		h := NewStatusHandler(&stubProvider{err: shared.ErrCacheUnavailable}, logger)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})

	t.Run("Wrong Method", func(t *testing.T) {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/status", nil))
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected 405, got %d", rec.Code)
		}
	})
}

func TestServe(t *testing.T) {
	logger := shared.NewLogger(io.Discard)

	t.Run("Shuts Down On Cancel", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}

		router := NewBasicRouter()
		router.Handler(NewStatusHandler(&stubProvider{status: &Status{}}, logger))

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- serve(ctx, ln, router, logger) }()

		resp, err := http.Get("http://" + ln.Addr().String() + "/health")
		if err != nil {
			t.Fatalf("request: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("expected 200, got %d", resp.StatusCode)
		}

		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("expected clean shutdown, got %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("server did not shut down")
		}
	})

	t.Run("Bind Error", func(t *testing.T) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("listen: %v", err)
		}
		defer ln.Close()

		err = Serve(context.Background(), ln.Addr().String(), NewBasicRouter(), logger)
		if err == nil {
			t.Fatal("expected address in use error")
		}
		var opErr *net.OpError
		if !errors.As(err, &opErr) {
			t.Errorf("expected a net.OpError, got %T", err)
		}
	})
}
