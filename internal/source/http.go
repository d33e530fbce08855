// Package source provides facility status sources for the polling executor.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/codeGROOVE-dev/retry"
	"github.com/sony/gobreaker/v2"

	"rainout-go/internal/config"
	"rainout-go/internal/domain"
	"rainout-go/internal/metrics"
)

// Error codes reported by HTTPFetcher.
const (
	CodeTimeout     = "upstream-timeout"
	CodeCircuitOpen = "upstream-circuit-open"
	CodeDecode      = "upstream-decode"
	CodeUnavailable = "upstream-unavailable"
	codeHTTPPrefix  = "upstream-http-"
)

// maxResponseBytes bounds a status response body.
const maxResponseBytes = 1 << 20

// statusError is a non-2xx upstream response.
type statusError struct {
	StatusCode int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("upstream returned HTTP %d", e.StatusCode)
}

// decodeError is a malformed upstream body.
type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return "failed to decode status response: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

// HTTPFetcher reads facility statuses from
// GET {baseURL}/tenants/{tenant}/zips/{zip}/status. Each attempt runs through
// a circuit breaker; transport errors, 429 and 5xx are retried with backoff.
type HTTPFetcher struct {
	client   *http.Client
	baseURL  string
	breaker  *gobreaker.CircuitBreaker[[]domain.SourceEvent]
	attempts uint
	delay    time.Duration
	logger   *slog.Logger
}

// NewHTTPFetcher creates a fetcher from the source settings. client may be nil.
func NewHTTPFetcher(cfg *config.SourceConfig, client *http.Client, logger *slog.Logger) *HTTPFetcher {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout > 0 {
		client.Timeout = cfg.Timeout
	}
	delay := cfg.RetryDelay
	if delay <= 0 {
		delay = 500 * time.Millisecond
	}
	failures := cfg.BreakerFailures
	if failures == 0 {
		failures = 5
	}

	breaker := gobreaker.NewCircuitBreaker[[]domain.SourceEvent](gobreaker.Settings{
		Name:        "facility-status",
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SourceCircuitState.Set(float64(to))
			logger.Warn("source circuit breaker state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})

	return &HTTPFetcher{
		client:   client,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		breaker:  breaker,
		attempts: uint(cfg.MaxRetries) + 1,
		delay:    delay,
		logger:   logger,
	}
}

// FetchSourceEvents returns the target's current statuses. Failures are
// *domain.CodedError values carrying an upstream-* code.
func (f *HTTPFetcher) FetchSourceEvents(ctx context.Context, target domain.PollTarget, rc domain.RunContext) ([]domain.SourceEvent, error) {
	var (
		events  []domain.SourceEvent
		lastErr error
	)

	err := retry.Do(
		func() error {
			got, err := f.breaker.Execute(func() ([]domain.SourceEvent, error) {
				return f.fetchOnce(ctx, target, rc)
			})
			if err != nil {
				lastErr = err
				if isBreakerRejection(err) {
					return retry.Unrecoverable(err)
				}
				return err
			}
			events = got
			return nil
		},
		retry.Attempts(f.attempts),
		retry.Delay(f.delay),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(f.delay),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			f.logger.Info("retrying facility status fetch",
				"correlation_id", rc.CorrelationID,
				"attempt", n,
				"error", err,
			)
		}),
		retry.RetryIf(isRetryable),
	)
	if err != nil {
		if lastErr == nil {
			lastErr = err
		}
		return nil, toCodedError(ctx, lastErr)
	}

	for i := range events {
		if strings.TrimSpace(events[i].TenantID) == "" {
			events[i].TenantID = target.TenantID
		}
		if strings.TrimSpace(events[i].Zip) == "" {
			events[i].Zip = target.Zip
		}
	}
	return events, nil
}

func (f *HTTPFetcher) fetchOnce(ctx context.Context, target domain.PollTarget, rc domain.RunContext) ([]domain.SourceEvent, error) {
	endpoint := f.baseURL + "/tenants/" + url.PathEscape(target.TenantID) + "/zips/" + url.PathEscape(target.Zip) + "/status"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Run-ID", rc.RunID)
	req.Header.Set("X-Correlation-ID", rc.CorrelationID)

	start := time.Now()
	resp, err := f.client.Do(req)
	metrics.SourceLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.SourceRequestsTotal.WithLabelValues("transport_error").Inc()
		return nil, err
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			f.logger.Warn("failed to close response body", "error", closeErr)
		}
	}()

	metrics.SourceRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
	if resp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, &statusError{StatusCode: resp.StatusCode}
	}

	var events []domain.SourceEvent
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&events); err != nil {
		return nil, &decodeError{err: err}
	}
	return events, nil
}

func isBreakerRejection(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

// isRetryable reports whether another attempt may succeed.
func isRetryable(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var se *statusError
	if errors.As(err, &se) {
		return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
	}
	var de *decodeError
	if errors.As(err, &de) {
		return false
	}
	return !isBreakerRejection(err)
}

func toCodedError(ctx context.Context, err error) *domain.CodedError {
	var se *statusError
	var de *decodeError
	var ne net.Error

	switch {
	case isBreakerRejection(err):
		return domain.NewCodedError(CodeCircuitOpen, "facility status source unavailable", err)
	case errors.As(err, &se):
		return domain.NewCodedError(codeHTTPPrefix+strconv.Itoa(se.StatusCode), "facility status request failed", err)
	case errors.As(err, &de):
		return domain.NewCodedError(CodeDecode, "facility status response malformed", err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(ctx.Err(), context.DeadlineExceeded):
		return domain.NewCodedError(CodeTimeout, "facility status request timed out", err)
	case errors.As(err, &ne) && ne.Timeout():
		return domain.NewCodedError(CodeTimeout, "facility status request timed out", err)
	default:
		return domain.NewCodedError(CodeUnavailable, "facility status request failed", err)
	}
}
