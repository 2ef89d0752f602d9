package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
)

// FailoverConfig configures FailoverClient's retry and circuit-breaker
// behavior across its wrapped providers.
type FailoverConfig struct {
	// MaxRetries is the maximum number of retry attempts per provider.
	MaxRetries int

	// RetryBackoff is the initial backoff between retries.
	RetryBackoff time.Duration

	// MaxRetryBackoff is the maximum backoff duration.
	MaxRetryBackoff time.Duration

	// FailoverOnRateLimit enables failover to the next provider on rate
	// limit errors.
	FailoverOnRateLimit bool

	// FailoverOnServerError enables failover to the next provider on
	// provider-side server errors.
	FailoverOnServerError bool

	// CircuitBreakerThreshold is the number of consecutive failures before
	// a provider's circuit opens.
	CircuitBreakerThreshold int

	// CircuitBreakerTimeout is how long a circuit stays open before the
	// provider is tried again.
	CircuitBreakerTimeout time.Duration
}

// DefaultFailoverConfig returns sensible defaults for FailoverClient.
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		MaxRetries:              2,
		RetryBackoff:            100 * time.Millisecond,
		MaxRetryBackoff:         5 * time.Second,
		FailoverOnRateLimit:     true,
		FailoverOnServerError:   true,
		CircuitBreakerThreshold: 3,
		CircuitBreakerTimeout:   30 * time.Second,
	}
}

// providerState tracks one wrapped client's recent health.
type providerState struct {
	name          string
	failures      int
	circuitOpen   bool
	circuitOpenAt time.Time
}

func (s *providerState) available(cfg FailoverConfig) bool {
	if !s.circuitOpen {
		return true
	}
	return time.Since(s.circuitOpenAt) > cfg.CircuitBreakerTimeout
}

// namedClient pairs a Client with the name FailoverClient reports it under
// in logs and ProviderStates.
type namedClient struct {
	name   string
	client Client
}

// FailoverClient wraps an ordered list of Client implementations behind a
// single Client, retrying within a provider and failing over to the next
// one on a retryable or provider-unavailable error. Each task's Runner sees
// a plain model.Client and is unaware failover is happening underneath it.
type FailoverClient struct {
	providers []namedClient
	cfg       FailoverConfig

	mu     sync.Mutex
	states map[string]*providerState
}

// NewFailoverClient constructs a FailoverClient over primary, tried first,
// and any fallbacks, tried in order after primary is exhausted or its
// circuit is open. A zero FailoverConfig is replaced with
// DefaultFailoverConfig.
func NewFailoverClient(cfg FailoverConfig, primaryName string, primary Client, fallbacks ...struct {
	Name   string
	Client Client
}) *FailoverClient {
	if cfg.MaxRetries == 0 && cfg.CircuitBreakerThreshold == 0 {
		cfg = DefaultFailoverConfig()
	}
	fc := &FailoverClient{
		cfg:    cfg,
		states: make(map[string]*providerState),
	}
	fc.providers = append(fc.providers, namedClient{name: primaryName, client: primary})
	for _, f := range fallbacks {
		fc.providers = append(fc.providers, namedClient{name: f.Name, client: f.Client})
	}
	return fc
}

// Complete satisfies model.Client, trying each wrapped provider in order.
func (fc *FailoverClient) Complete(ctx context.Context, req Request) (Response, error) {
	var lastErr error

	for _, p := range fc.providers {
		state := fc.stateFor(p.name)
		if !state.available(fc.cfg) {
			continue
		}

		resp, err := fc.tryProvider(ctx, p, req)
		if err == nil {
			fc.recordSuccess(p.name)
			return resp, nil
		}
		lastErr = err
		fc.recordFailure(p.name)

		if !fc.shouldFailover(err) {
			return Response{}, err
		}
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("model: no available providers")
	}
	return Response{}, lastErr
}

func (fc *FailoverClient) tryProvider(ctx context.Context, p namedClient, req Request) (Response, error) {
	backoff := fc.cfg.RetryBackoff
	var lastErr error

	for attempt := 0; attempt <= fc.cfg.MaxRetries; attempt++ {
		resp, err := p.client.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !isRetryable(err) {
			return Response{}, err
		}
		if ctx.Err() != nil {
			return Response{}, ctx.Err()
		}
		if attempt >= fc.cfg.MaxRetries {
			break
		}

		select {
		case <-time.After(backoff):
			backoff *= 2
			if backoff > fc.cfg.MaxRetryBackoff {
				backoff = fc.cfg.MaxRetryBackoff
			}
		case <-ctx.Done():
			return Response{}, ctx.Err()
		}
	}
	return Response{}, lastErr
}

func (fc *FailoverClient) shouldFailover(err error) bool {
	var modelErr *Error
	if errors.As(err, &modelErr) {
		if modelErr.Sentinel == ErrRateLimited {
			return fc.cfg.FailoverOnRateLimit
		}
		if modelErr.Sentinel == ErrUnavailable {
			return fc.cfg.FailoverOnServerError
		}
		return false
	}
	// An error from outside this package (network, context) is classified
	// by message as a fallback.
	reason := classify(err.Error())
	switch reason {
	case "rate_limit":
		return fc.cfg.FailoverOnRateLimit
	case "server_error":
		return fc.cfg.FailoverOnServerError
	default:
		return false
	}
}

func isRetryable(err error) bool {
	var modelErr *Error
	if errors.As(err, &modelErr) {
		return modelErr.Retryable()
	}
	switch classify(err.Error()) {
	case "rate_limit", "timeout", "server_error":
		return true
	default:
		return false
	}
}

func classify(errText string) string {
	s := strings.ToLower(errText)
	switch {
	case strings.Contains(s, "timeout"), strings.Contains(s, "deadline exceeded"):
		return "timeout"
	case strings.Contains(s, "rate limit"), strings.Contains(s, "429"), strings.Contains(s, "too many requests"):
		return "rate_limit"
	case strings.Contains(s, "500"), strings.Contains(s, "502"), strings.Contains(s, "503"), strings.Contains(s, "server error"):
		return "server_error"
	default:
		return "unknown"
	}
}

func (fc *FailoverClient) stateFor(name string) *providerState {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	s, ok := fc.states[name]
	if !ok {
		s = &providerState{name: name}
		fc.states[name] = s
	}
	return s
}

func (fc *FailoverClient) recordSuccess(name string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	s := fc.states[name]
	if s == nil {
		return
	}
	s.failures = 0
	s.circuitOpen = false
}

func (fc *FailoverClient) recordFailure(name string) {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	s, ok := fc.states[name]
	if !ok {
		s = &providerState{name: name}
		fc.states[name] = s
	}
	s.failures++
	if s.failures >= fc.cfg.CircuitBreakerThreshold && !s.circuitOpen {
		s.circuitOpen = true
		s.circuitOpenAt = time.Now()
	}
}

// ProviderState is a read-only snapshot of one wrapped provider's health.
type ProviderState struct {
	Name        string
	Failures    int
	CircuitOpen bool
}

// ProviderStates returns a snapshot of every wrapped provider's current
// circuit-breaker state.
func (fc *FailoverClient) ProviderStates() []ProviderState {
	fc.mu.Lock()
	defer fc.mu.Unlock()
	out := make([]ProviderState, 0, len(fc.states))
	for _, s := range fc.states {
		out = append(out, ProviderState{Name: s.name, Failures: s.failures, CircuitOpen: s.circuitOpen})
	}
	return out
}
