// Package modelclient is the resilient HTTP client for the external model
// inference service. It owns the retry, backoff and timeout discipline for
// downstream calls and classifies upstream failures distinctly from local
// ones so operators can tell a dependency outage from a bug.
package modelclient

import (
	"bytes"
	"context"
	"encoding/json"
	goerrors "errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"syscall"
	"time"

	"golang.org/x/time/rate"

	"github.com/titanicml/prediction-backend/internal/app/domain/mlmodel"
	"github.com/titanicml/prediction-backend/internal/app/domain/prediction"
	"github.com/titanicml/prediction-backend/internal/app/metrics"
	"github.com/titanicml/prediction-backend/internal/errors"
	"github.com/titanicml/prediction-backend/pkg/logger"
)

const errorBodyLimit = 4 << 10

// Config configures the model service client.
type Config struct {
	// BaseURL is the root of the model service API.
	BaseURL string
	// Timeout bounds each individual attempt.
	Timeout time.Duration
	// Policy is the retry policy; zero value falls back to DefaultPolicy.
	Policy Policy
	// MaxConcurrent bounds in-flight calls to the model service. Excess
	// callers queue on the semaphore, surfacing as latency rather than
	// unbounded fan-out.
	MaxConcurrent int
	// RequestsPerSecond optionally rate-limits outbound attempts; zero
	// disables the limiter.
	RequestsPerSecond float64
	// HTTPClient overrides the transport; mainly for tests.
	HTTPClient *http.Client
	Logger     *logger.Logger
}

// Client calls the model service with bounded retries and backoff.
type Client struct {
	http    *http.Client
	base    *url.URL
	policy  Policy
	timeout time.Duration
	sem     chan struct{}
	limiter *rate.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
	log     *logger.Logger

	rndMu sync.Mutex
	rnd   *rand.Rand
}

// New constructs a client for the model service at cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	base, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid model service URL %q", cfg.BaseURL)
	}

	policy := cfg.Policy
	if policy.MaxAttempts <= 0 {
		policy = DefaultPolicy()
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	maxConcurrent := cfg.MaxConcurrent
	if maxConcurrent <= 0 {
		maxConcurrent = 16
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), maxConcurrent)
	}

	log := cfg.Logger
	if log == nil {
		log = logger.NewDefault("model-client")
	}

	return &Client{
		http:    httpClient,
		base:    base,
		policy:  policy,
		timeout: timeout,
		sem:     make(chan struct{}, maxConcurrent),
		limiter: limiter,
		sleep:   sleepContext,
		log:     log,
		rnd:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// Predict submits a feature snapshot for inference.
func (c *Client) Predict(ctx context.Context, features prediction.Features) (prediction.Result, error) {
	var out prediction.Result
	if err := c.do(ctx, "predict", http.MethodPost, "/predict", features, &out, true); err != nil {
		return prediction.Result{}, err
	}
	return out, nil
}

// ListModels fetches metadata for every model the service knows. Read-only,
// always safe to retry.
func (c *Client) ListModels(ctx context.Context) ([]mlmodel.Metadata, error) {
	var out []mlmodel.Metadata
	if err := c.do(ctx, "list_models", http.MethodGet, "/models", nil, &out, true); err != nil {
		return nil, err
	}
	return out, nil
}

// TrainModel starts a training run. Training is not idempotent, so only
// failures that provably occurred before the request was sent are retried.
func (c *Client) TrainModel(ctx context.Context, spec mlmodel.TrainingSpec) (mlmodel.TrainingJob, error) {
	var out mlmodel.TrainingJob
	if err := c.do(ctx, "train_model", http.MethodPost, "/models/train", spec, &out, false); err != nil {
		return mlmodel.TrainingJob{}, err
	}
	return out, nil
}

// DeleteModel removes a model by id. Same non-idempotent retry discipline
// as TrainModel.
func (c *Client) DeleteModel(ctx context.Context, id string) error {
	path := "/models/" + url.PathEscape(id)
	return c.do(ctx, "delete_model", http.MethodDelete, path, nil, nil, false)
}

// do runs one logical call: at most policy.MaxAttempts attempts separated by
// jittered exponential backoff. Non-idempotent calls retry only pre-send
// (dial-level) failures; an ambiguous send surfaces immediately and leaves
// resubmission to the caller.
func (c *Client) do(ctx context.Context, op, method, path string, body, out interface{}, idempotent bool) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return errors.Internal("encode model service request", err)
		}
	}

	if err := c.acquire(ctx); err != nil {
		return c.classifyTerminal(err)
	}
	defer c.release()

	var lastErr error
	for attempt := 1; attempt <= c.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			metrics.RecordModelRetry(op)
			if err := c.sleep(ctx, c.nextDelay(attempt-1)); err != nil {
				// Caller went away mid-backoff; stop before a new attempt.
				return c.classifyTerminal(lastErr)
			}
		}

		done, err := c.attempt(ctx, op, method, path, payload, out, idempotent, attempt)
		if done {
			return err
		}
		lastErr = err
	}

	return c.classifyTerminal(lastErr)
}

// attempt performs a single HTTP exchange. done=false means the failure is
// retryable and the loop should continue.
func (c *Client) attempt(ctx context.Context, op, method, path string, payload []byte, out interface{}, idempotent bool, attempt int) (done bool, err error) {
	attemptCtx := ctx
	var cancel context.CancelFunc
	if c.timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(attemptCtx); err != nil {
			return true, c.classifyTerminal(err)
		}
	}

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(attemptCtx, method, c.base.ResolveReference(&url.URL{Path: path}).String(), reqBody)
	if err != nil {
		return true, errors.Internal("build model service request", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordModelAttempt(op, "transport_error")
		c.log.WithContext(ctx).WithError(err).
			WithField("operation", op).
			WithField("attempt", attempt).
			Warn("model service call failed")

		if ctx.Err() != nil {
			return true, c.classifyTerminal(err)
		}
		if !idempotent && !isPreSendError(err) {
			// The request may have reached the service; repeating a
			// train or delete blindly is not safe.
			return true, c.classifyTerminal(err)
		}
		return false, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode < http.StatusMultipleChoices:
		metrics.RecordModelAttempt(op, "success")
		if out == nil {
			_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, errorBodyLimit))
			return true, nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return true, errors.UpstreamUnavailable("malformed model service response", err)
		}
		return true, nil

	case resp.StatusCode < http.StatusInternalServerError:
		// Client-side status: non-transient, never retried.
		metrics.RecordModelAttempt(op, "client_error")
		return true, c.mapClientStatus(resp)

	default:
		metrics.RecordModelAttempt(op, "server_error")
		statusErr := fmt.Errorf("model service returned status %d", resp.StatusCode)
		c.log.WithContext(ctx).WithError(statusErr).
			WithField("operation", op).
			WithField("attempt", attempt).
			Warn("model service call failed")
		if !idempotent {
			// A response means the request was processed; the side
			// effect state is unknown.
			return true, errors.UpstreamUnavailable("model service failed processing the request", statusErr)
		}
		return false, statusErr
	}
}

func (c *Client) acquire(ctx context.Context) error {
	select {
	case c.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Client) release() {
	<-c.sem
}

func (c *Client) nextDelay(retry int) time.Duration {
	c.rndMu.Lock()
	defer c.rndMu.Unlock()
	return c.policy.Delay(retry, c.rnd)
}

// mapClientStatus converts a 4xx response into the caller-facing failure.
func (c *Client) mapClientStatus(resp *http.Response) error {
	detail := readErrorDetail(resp.Body)

	switch resp.StatusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		if detail == "" {
			detail = "model service rejected the request"
		}
		return errors.Validation(detail)
	case http.StatusNotFound:
		return errors.NotFound("model not found")
	default:
		return errors.UpstreamUnavailable(
			fmt.Sprintf("model service rejected the request (status %d)", resp.StatusCode), nil)
	}
}

// classifyTerminal attributes an exhausted or aborted call to the upstream,
// choosing timeout or unavailable by the nature of the last failure.
func (c *Client) classifyTerminal(err error) error {
	if err == nil {
		err = fmt.Errorf("model service call failed")
	}
	if isTimeoutError(err) {
		return errors.UpstreamTimeout("model service timed out", err)
	}
	return errors.UpstreamUnavailable("model service unavailable", err)
}

func isTimeoutError(err error) bool {
	if goerrors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return goerrors.As(err, &netErr) && netErr.Timeout()
}

// isPreSendError reports whether the failure provably happened before the
// request left the process, e.g. a refused connection.
func isPreSendError(err error) bool {
	if isTimeoutError(err) {
		return false
	}
	if goerrors.Is(err, syscall.ECONNREFUSED) {
		return true
	}
	var opErr *net.OpError
	return goerrors.As(err, &opErr) && opErr.Op == "dial"
}

func readErrorDetail(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, errorBodyLimit))
	if err != nil {
		return ""
	}

	var payload struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Detail != "" {
		return payload.Detail
	}
	return strings.TrimSpace(string(raw))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
