package llm

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreakerWithConfig(CircuitBreakerConfig{
		MaxFailures:          3,
		Timeout:              time.Minute,
		HalfOpenMaxSuccesses: 1,
	})

	ctx := context.Background()
	boom := errors.New("upstream down")

	for i := 0; i < 3; i++ {
		_, err := cb.Execute(ctx, func() (interface{}, error) { return nil, boom })
		if !errors.Is(err, boom) {
			t.Fatalf("call %d: err = %v, want upstream error", i, err)
		}
	}

	if got := cb.State(); got != "open" {
		t.Fatalf("state = %q, want open", got)
	}

	_, err := cb.Execute(ctx, func() (interface{}, error) { return "ok", nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("err = %v, want ErrCircuitOpen", err)
	}
}

func TestCircuitBreakerPassesThroughSuccess(t *testing.T) {
	cb := NewCircuitBreaker()

	result, err := cb.Execute(context.Background(), func() (interface{}, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.(int) != 42 {
		t.Fatalf("result = %v, want 42", result)
	}
	if cb.State() != "closed" {
		t.Fatalf("state = %q, want closed", cb.State())
	}
}

func TestCircuitBreakerCancelledContext(t *testing.T) {
	cb := NewCircuitBreaker()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := cb.Execute(ctx, func() (interface{}, error) { return "never", nil })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
