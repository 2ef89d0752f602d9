package model

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	responses []Response
	errs      []error
	calls     int
}

func (f *fakeClient) Complete(_ context.Context, _ Request) (Response, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return Response{}, f.errs[i]
	}
	if i < len(f.responses) {
		return f.responses[i], nil
	}
	return Response{}, nil
}

func TestFailoverClientSucceedsOnPrimary(t *testing.T) {
	primary := &fakeClient{responses: []Response{{Text: "hi"}}}
	fc := NewFailoverClient(FailoverConfig{}, "primary", primary)

	resp, err := fc.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "hi", resp.Text)
}

func TestFailoverClientFailsOverOnRateLimit(t *testing.T) {
	primary := &fakeClient{errs: []error{&Error{Provider: "p1", Sentinel: ErrRateLimited}}}
	fallback := &fakeClient{responses: []Response{{Text: "from fallback"}}}

	cfg := FailoverConfig{
		MaxRetries:              0,
		FailoverOnRateLimit:     true,
		CircuitBreakerThreshold: 1,
		CircuitBreakerTimeout:   time.Minute,
	}
	fc := NewFailoverClient(cfg, "primary", primary, struct {
		Name   string
		Client Client
	}{Name: "fallback", Client: fallback})

	resp, err := fc.Complete(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "from fallback", resp.Text)
}

func TestFailoverClientDoesNotFailoverOnInvalidRequest(t *testing.T) {
	primary := &fakeClient{errs: []error{&Error{Provider: "p1", Sentinel: ErrInvalidRequest}}}
	fallback := &fakeClient{responses: []Response{{Text: "should not be reached"}}}

	fc := NewFailoverClient(DefaultFailoverConfig(), "primary", primary, struct {
		Name   string
		Client Client
	}{Name: "fallback", Client: fallback})

	_, err := fc.Complete(context.Background(), Request{})
	require.Error(t, err)
	assert.Equal(t, 0, fallback.calls)
}

func TestFailoverClientOpensCircuitAfterThreshold(t *testing.T) {
	primary := &fakeClient{errs: []error{
		&Error{Provider: "p1", Sentinel: ErrUnavailable},
		&Error{Provider: "p1", Sentinel: ErrUnavailable},
	}}
	fallback := &fakeClient{responses: []Response{{Text: "a"}, {Text: "b"}}}

	cfg := FailoverConfig{
		MaxRetries:              0,
		FailoverOnServerError:   true,
		CircuitBreakerThreshold: 2,
		CircuitBreakerTimeout:   time.Minute,
	}
	fc := NewFailoverClient(cfg, "primary", primary, struct {
		Name   string
		Client Client
	}{Name: "fallback", Client: fallback})

	_, err := fc.Complete(context.Background(), Request{})
	require.NoError(t, err)
	_, err = fc.Complete(context.Background(), Request{})
	require.NoError(t, err)

	states := fc.ProviderStates()
	var sawOpenCircuit bool
	for _, s := range states {
		if s.Name == "primary" && s.CircuitOpen {
			sawOpenCircuit = true
		}
	}
	assert.True(t, sawOpenCircuit)
}
