package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"

	"github.com/avukic/skolar/internal/domain"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "deadline exceeded" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

// flakyTransport times out a fixed number of calls before letting them
// through.
type flakyTransport struct {
	timeouts int32
	inner    http.RoundTripper
}

func (t *flakyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if atomic.AddInt32(&t.timeouts, -1) >= 0 {
		return nil, timeoutError{}
	}
	return t.inner.RoundTrip(req)
}

func TestAPIRetriesTimedOutCallOnce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		json.NewEncoder(w).Encode(domain.Message{ID: uuid.New(), Body: "hi"})
	}))
	defer srv.Close()

	api := &API{
		BaseURL: srv.URL,
		Token:   "tok",
		HTTPClient: &http.Client{
			Transport: &flakyTransport{timeouts: 1, inner: http.DefaultTransport},
		},
	}

	draft := NewDraft("channel:1", uuid.New(), "hi")
	msg, err := api.CreateMessage(context.Background(), draft)
	if err != nil {
		t.Fatalf("CreateMessage after one timeout = %v, want retried success", err)
	}
	if msg.Body != "hi" {
		t.Errorf("body = %q, want %q", msg.Body, "hi")
	}
	if got := atomic.LoadInt32(&hits); got != 1 {
		t.Errorf("server hits = %d, want 1 (first attempt timed out client-side)", got)
	}
}

func TestAPITimeoutSurfacedAfterSecondFailure(t *testing.T) {
	api := &API{
		BaseURL: "http://example.invalid",
		HTTPClient: &http.Client{
			Transport: &flakyTransport{timeouts: 2},
		},
	}

	_, err := api.Channels(context.Background())
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("err = %v, want ErrTimeout", err)
	}
}

func TestAPIDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{"code": "FORBIDDEN", "message": "You are not allowed to do that"},
		})
	}))
	defer srv.Close()

	api := &API{BaseURL: srv.URL, Token: "tok"}
	_, err := api.EditMessage(context.Background(), uuid.New(), "new body", 1)
	if !IsForbidden(err) {
		t.Fatalf("err = %v, want a Forbidden APIError", err)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "FORBIDDEN" {
		t.Errorf("err = %v, want code FORBIDDEN", err)
	}
}

func TestAPISendsAuthAndIdempotencyKey(t *testing.T) {
	var gotAuth string
	var gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		var req struct {
			ClientKey string `json:"client_key"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		gotKey = req.ClientKey
		json.NewEncoder(w).Encode(domain.Message{ID: uuid.New()})
	}))
	defer srv.Close()

	api := &API{BaseURL: srv.URL, Token: "tok"}
	draft := NewDraft("channel:1", uuid.New(), "hi")
	if _, err := api.CreateMessage(context.Background(), draft); err != nil {
		t.Fatalf("CreateMessage: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q, want bearer token", gotAuth)
	}
	if gotKey != draft.ClientKey {
		t.Errorf("client_key = %q, want the draft's key %q", gotKey, draft.ClientKey)
	}
}
