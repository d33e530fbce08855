package source

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"rainout-go/internal/config"
	"rainout-go/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var target = domain.PollTarget{TenantID: "t1", Zip: "20176"}
var runCtx = domain.RunContext{RunID: "run-1", CorrelationID: "run-1:t1:20176", NowMs: 1}

func newFetcher(url string, mutate func(*config.SourceConfig)) *HTTPFetcher {
	cfg := &config.SourceConfig{
		Mode:            config.SourceModeHTTP,
		BaseURL:         url,
		Timeout:         time.Second,
		MaxRetries:      2,
		RetryDelay:      time.Millisecond,
		BreakerFailures: 10,
		BreakerTimeout:  time.Minute,
	}
	if mutate != nil {
		mutate(cfg)
	}
	return NewHTTPFetcher(cfg, nil, testLogger())
}

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var coded *domain.CodedError
	if !errors.As(err, &coded) {
		t.Fatalf("error %v is not a CodedError", err)
	}
	return coded.ErrorCode()
}

func TestHTTPFetcher_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tenants/t1/zips/20176/status" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("X-Correlation-ID") != "run-1:t1:20176" {
			t.Errorf("X-Correlation-ID = %q", r.Header.Get("X-Correlation-ID"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[
			{"source_event_id":"ev-1","facility_id":"f1","status":"closed","updated_at":2000},
			{"tenant_id":"t1","zip":"20176-0001","id":"ev-2","status":"open","updated_at":10}
		]`)
	}))
	defer server.Close()

	events, err := newFetcher(server.URL+"/", nil).FetchSourceEvents(context.Background(), target, runCtx)
	if err != nil {
		t.Fatalf("FetchSourceEvents() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].TenantID != "t1" || events[0].Zip != "20176" || events[0].Status != "closed" {
		t.Errorf("events[0] = %+v", events[0])
	}
	if events[1].Zip != "20176-0001" || events[1].ID != "ev-2" {
		t.Errorf("events[1] = %+v", events[1])
	}
}

func TestHTTPFetcher_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	}))
	defer server.Close()

	events, err := newFetcher(server.URL, nil).FetchSourceEvents(context.Background(), target, runCtx)
	if err != nil {
		t.Fatalf("FetchSourceEvents() error = %v", err)
	}
	if len(events) != 0 || calls.Load() != 3 {
		t.Errorf("events = %v, calls = %d", events, calls.Load())
	}
}

func TestHTTPFetcher_ErrorCodes(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  string
		wantCalls int32
	}{
		{"server error exhausts retries", http.StatusInternalServerError, "", "upstream-http-500", 3},
		{"rate limited", http.StatusTooManyRequests, "", "upstream-http-429", 3},
		{"not found is final", http.StatusNotFound, "", "upstream-http-404", 1},
		{"malformed body", http.StatusOK, `{"not":"an array"`, CodeDecode, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				calls.Add(1)
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer server.Close()

			_, err := newFetcher(server.URL, nil).FetchSourceEvents(context.Background(), target, runCtx)
			if err == nil {
				t.Fatal("expected error")
			}
			if code := errorCode(t, err); code != tt.wantCode {
				t.Errorf("code = %q, want %q", code, tt.wantCode)
			}
			if calls.Load() != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls.Load(), tt.wantCalls)
			}
		})
	}
}

func TestHTTPFetcher_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	fetcher := newFetcher(server.URL, func(cfg *config.SourceConfig) {
		cfg.Timeout = 20 * time.Millisecond
		cfg.MaxRetries = 0
	})
	_, err := fetcher.FetchSourceEvents(context.Background(), target, runCtx)
	if code := errorCode(t, err); code != CodeTimeout {
		t.Errorf("code = %q, want %q", code, CodeTimeout)
	}
}

func TestHTTPFetcher_CircuitOpens(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	fetcher := newFetcher(server.URL, func(cfg *config.SourceConfig) {
		cfg.MaxRetries = 0
		cfg.BreakerFailures = 2
	})

	for i := 0; i < 2; i++ {
		_, _ = fetcher.FetchSourceEvents(context.Background(), target, runCtx)
	}
	_, err := fetcher.FetchSourceEvents(context.Background(), target, runCtx)
	if code := errorCode(t, err); code != CodeCircuitOpen {
		t.Errorf("code = %q, want %q", code, CodeCircuitOpen)
	}
	if calls.Load() != 2 {
		t.Errorf("calls = %d, want 2", calls.Load())
	}
}

func TestStaticFetcher(t *testing.T) {
	f := NewStaticFetcherFromConfig(&config.SourceConfig{
		StaticEvents: []config.StaticEvent{
			{TenantID: "t1", Zip: "20176-1234", SourceEventID: "ev-1", Status: "closed", UpdatedAt: 5},
		},
	})

	events, err := f.FetchSourceEvents(context.Background(), target, runCtx)
	if err != nil || len(events) != 1 || events[0].SourceEventID != "ev-1" {
		t.Fatalf("FetchSourceEvents() = %+v, %v", events, err)
	}

	events[0].Status = "mutated"
	again, _ := f.FetchSourceEvents(context.Background(), target, runCtx)
	if again[0].Status != "closed" {
		t.Error("returned slice aliases internal state")
	}

	f.Set("t1", "20176", nil)
	if events, _ := f.FetchSourceEvents(context.Background(), target, runCtx); len(events) != 0 {
		t.Errorf("after Set(nil) events = %+v", events)
	}
}
