package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tesfaldet/haven/internal/config"
	"github.com/tesfaldet/haven/internal/logging"
	"github.com/tesfaldet/haven/pkg/model"
)

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultBackendConfig().
		WithToken("test-token").
		WithRetries(2, time.Millisecond)
	cfg.BaseURL = srv.URL
	return NewClient(cfg, logging.Discard())
}

func TestClientSubmit(t *testing.T) {
	var gotKey atomic.Value
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/jobs" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer test-token" {
			t.Errorf("Authorization = %q", auth)
		}
		gotKey.Store(r.Header.Get("Idempotency-Key"))

		var spec JobSpec
		if err := json.NewDecoder(r.Body).Decode(&spec); err != nil {
			t.Errorf("decode job spec: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"handle": "orc-42"})
	}))

	handle, err := client.Submit(context.Background(), JobSpec{
		RunCommand:   "python train.py -e abc",
		Image:        "img",
		RequestToken: "tok-1",
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if handle != "orc-42" {
		t.Errorf("handle = %q", handle)
	}
	if gotKey.Load() != "tok-1" {
		t.Errorf("Idempotency-Key = %v", gotKey.Load())
	}
}

func TestClientStatus_MapsWireStates(t *testing.T) {
	cases := []struct {
		wire string
		want model.ExperimentState
	}{
		{"QUEUED", model.StateSubmitted},
		{"RUNNING", model.StateRunning},
		{"SUCCEEDED", model.StateSucceeded},
		{"FAILED", model.StateFailed},
		{"CANCELLED", model.StateKilled},
	}
	for _, tc := range cases {
		wire := tc.wire
		client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			json.NewEncoder(w).Encode(map[string]string{"handle": "h1", "state": wire})
		}))
		got, err := client.Status(context.Background(), "h1")
		if err != nil {
			t.Fatalf("Status(%s): %v", wire, err)
		}
		if got != tc.want {
			t.Errorf("Status(%s) = %s, want %s", wire, got, tc.want)
		}
	}
}

func TestClientStatus_NotFound(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))

	_, err := client.Status(context.Background(), "gone")
	if !IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
	if IsTransient(err) {
		t.Error("NotFound must not be classified transient")
	}
}

func TestClientRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "orchestrator unavailable", http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(map[string]string{"handle": "h1", "state": "RUNNING"})
	}))

	state, err := client.Status(context.Background(), "h1")
	if err != nil {
		t.Fatalf("Status after retries: %v", err)
	}
	if state != model.StateRunning {
		t.Errorf("state = %s", state)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("server saw %d calls, want 3", got)
	}
}

func TestClientExhaustedRetriesAreTransient(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.Status(context.Background(), "h1")
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if !IsTransient(err) {
		t.Errorf("exhausted retries should stay transient, got %v", err)
	}
}

func TestClientDoesNotRetryHardRejections(t *testing.T) {
	var calls atomic.Int32
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad spec", http.StatusBadRequest)
	}))

	_, err := client.Submit(context.Background(), JobSpec{RunCommand: "x", Image: "img"})
	if err == nil {
		t.Fatal("expected error")
	}
	if IsTransient(err) {
		t.Error("400 should not be transient")
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("server saw %d calls, want 1 (no retry)", got)
	}
}

func TestClientSendsBearerTokenOnEveryOperation(t *testing.T) {
	var mu sync.Mutex
	auth := make(map[string]string)
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		auth[r.Method+" "+r.URL.Path] = r.Header.Get("Authorization")
		mu.Unlock()
		switch {
		case r.Method == http.MethodPost:
			json.NewEncoder(w).Encode(map[string]string{"handle": "h1"})
		case strings.HasSuffix(r.URL.Path, "/logs"):
			w.Write([]byte("log text"))
		case r.Method == http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			json.NewEncoder(w).Encode(map[string]string{"handle": "h1", "state": "RUNNING"})
		}
	}))

	ctx := context.Background()
	if _, err := client.Submit(ctx, JobSpec{RunCommand: "x", Image: "img"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if _, err := client.Status(ctx, "h1"); err != nil {
		t.Fatalf("Status: %v", err)
	}
	if _, err := client.Logs(ctx, "h1"); err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if err := client.Kill(ctx, "h1"); err != nil {
		t.Fatalf("Kill: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	for call, got := range auth {
		if got != "Bearer test-token" {
			t.Errorf("%s sent Authorization = %q, want %q", call, got, "Bearer test-token")
		}
	}
	if len(auth) != 4 {
		t.Errorf("server saw %d distinct calls, want 4", len(auth))
	}
}

func TestClientCancelledDuringBackoffStaysTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "orchestrator unavailable", http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	// Long retry delay so cancellation lands in the backoff wait, not in an
	// in-flight request.
	cfg := config.DefaultBackendConfig().WithRetries(2, time.Minute)
	cfg.BaseURL = srv.URL
	client := NewClient(cfg, logging.Discard())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	start := time.Now()
	_, err := client.Submit(ctx, JobSpec{RunCommand: "x", Image: "img"})
	if err == nil {
		t.Fatal("expected error after cancellation")
	}
	if time.Since(start) > 10*time.Second {
		t.Fatal("cancellation did not interrupt the backoff wait")
	}
	if !IsTransient(err) {
		t.Errorf("interrupted submit must stay transient so the record goes UNKNOWN, got %v", err)
	}
}

func TestClientKillAndLogs(t *testing.T) {
	client := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodDelete && r.URL.Path == "/v1/jobs/h1":
			w.WriteHeader(http.StatusNoContent)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/jobs/h1/logs":
			w.Write([]byte("epoch 1: loss 0.5\n"))
		default:
			http.NotFound(w, r)
		}
	}))

	if err := client.Kill(context.Background(), "h1"); err != nil {
		t.Fatalf("Kill: %v", err)
	}
	text, err := client.Logs(context.Background(), "h1")
	if err != nil {
		t.Fatalf("Logs: %v", err)
	}
	if text != "epoch 1: loss 0.5\n" {
		t.Errorf("Logs = %q", text)
	}
	if err := client.Kill(context.Background(), "other"); !IsNotFound(err) {
		t.Errorf("Kill unknown handle: %v", err)
	}
}
