package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/tesfaldet/haven/internal/config"
	"github.com/tesfaldet/haven/internal/logging"
	"github.com/tesfaldet/haven/pkg/model"
)

// Wire states reported by the orchestrator API.
const (
	wireStateQueued    = "QUEUED"
	wireStateRunning   = "RUNNING"
	wireStateSucceeded = "SUCCEEDED"
	wireStateFailed    = "FAILED"
	wireStateCancelled = "CANCELLED"
)

// Client implements Backend against the orchestrator's REST API.
//
// Every call is bounded by the configured per-call timeout and retried with
// exponential backoff while the failure is transient. A terminal job failure
// is a successful status call reporting FAILED, never a client error.
type Client struct {
	httpClient *http.Client
	config     config.BackendConfig
	logger     *slog.Logger
}

// NewClient creates an orchestrator API client.
func NewClient(cfg config.BackendConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		config:     cfg,
		logger:     logger.With("component", "backend-client"),
	}
}

type submitResponse struct {
	Handle string `json:"handle"`
}

type statusResponse struct {
	Handle string `json:"handle"`
	State  string `json:"state"`
	Reason string `json:"reason,omitempty"`
}

// Submit posts the job spec. The RequestToken rides along both in the body
// and as an Idempotency-Key header so retried submissions dedupe server-side.
func (c *Client) Submit(ctx context.Context, spec JobSpec) (JobHandle, error) {
	body, err := json.Marshal(spec)
	if err != nil {
		return "", wrap("submit", "", fmt.Errorf("marshal job spec: %w", err))
	}

	var resp submitResponse
	err = c.do(ctx, "submit", "", func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/v1/jobs", bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Idempotency-Key", spec.RequestToken)
		return c.roundTrip(req, &resp)
	})
	if err != nil {
		return "", err
	}
	if resp.Handle == "" {
		return "", wrap("submit", "", fmt.Errorf("orchestrator returned an empty handle"))
	}
	return JobHandle(resp.Handle), nil
}

// Status polls the job state for handle.
func (c *Client) Status(ctx context.Context, handle JobHandle) (model.ExperimentState, error) {
	var resp statusResponse
	err := c.do(ctx, "status", handle, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jobURL(handle), nil)
		if err != nil {
			return err
		}
		return c.roundTrip(req, &resp)
	})
	if err != nil {
		return "", err
	}
	return mapWireState(resp.State)
}

// Logs fetches the job's combined output.
func (c *Client) Logs(ctx context.Context, handle JobHandle) (string, error) {
	var out string
	err := c.do(ctx, "logs", handle, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.jobURL(handle)+"/logs", nil)
		if err != nil {
			return err
		}
		c.authorize(req)
		httpResp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer httpResp.Body.Close()
		body, err := io.ReadAll(httpResp.Body)
		if err != nil {
			return err
		}
		if httpResp.StatusCode == http.StatusNotFound {
			return ErrNotFound
		}
		if httpResp.StatusCode != http.StatusOK {
			return &HTTPError{StatusCode: httpResp.StatusCode, Body: string(body)}
		}
		out = string(body)
		return nil
	})
	return out, err
}

// Kill requests cancellation of the job.
func (c *Client) Kill(ctx context.Context, handle JobHandle) error {
	return c.do(ctx, "kill", handle, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.jobURL(handle), nil)
		if err != nil {
			return err
		}
		return c.roundTrip(req, nil)
	})
}

func (c *Client) jobURL(handle JobHandle) string {
	return c.config.BaseURL + "/v1/jobs/" + string(handle)
}

// do runs fn with per-call timeout, retrying transient failures with
// exponential backoff up to MaxRetries.
func (c *Client) do(ctx context.Context, op string, handle JobHandle, fn func(context.Context) error) error {
	logger := c.logger.With("op", op)
	if handle != "" {
		logger = logger.With("handle", handle)
	}

	var lastErr error
	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.config.RetryDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			logger.Debug("retrying after delay", "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return wrap(op, handle, ctx.Err())
			case <-time.After(delay):
			}
		}

		callCtx := ctx
		var cancel context.CancelFunc
		if c.config.Timeout > 0 {
			callCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
		}
		err := fn(callCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return nil
		}
		if IsNotFound(err) {
			return wrap(op, handle, ErrNotFound)
		}
		if !IsTransient(err) {
			return wrap(op, handle, err)
		}
		lastErr = err
		logger.Debug("transient failure, will retry", "error", err, "attempt", attempt)
	}
	return wrap(op, handle, fmt.Errorf("all retries exhausted: %w", lastErr))
}

// authorize attaches the bearer token when one is configured.
func (c *Client) authorize(req *http.Request) {
	if c.config.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.config.Token)
	}
}

// roundTrip performs one HTTP exchange and decodes a JSON body into out.
func (c *Client) roundTrip(req *http.Request, out any) error {
	c.authorize(req)

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return err
	}

	switch {
	case httpResp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case httpResp.StatusCode < 200 || httpResp.StatusCode >= 300:
		return &HTTPError{StatusCode: httpResp.StatusCode, Body: string(body)}
	}

	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

// mapWireState converts an orchestrator state string into the experiment
// state machine's vocabulary.
func mapWireState(s string) (model.ExperimentState, error) {
	switch s {
	case wireStateQueued:
		return model.StateSubmitted, nil
	case wireStateRunning:
		return model.StateRunning, nil
	case wireStateSucceeded:
		return model.StateSucceeded, nil
	case wireStateFailed:
		return model.StateFailed, nil
	case wireStateCancelled:
		return model.StateKilled, nil
	default:
		return "", fmt.Errorf("orchestrator reported unknown state %q", s)
	}
}
