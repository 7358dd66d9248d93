package circuitbreaker

import (
	"errors"
	"testing"
	"time"
)

func TestBreakerTripsAndRecovers(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(2, 1, 10*time.Second)
	cb.now = func() time.Time { return now }

	var transitions []string
	cb.SetStateChangeCallback(func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	})

	boom := errors.New("redis down")
	for i := 0; i < 2; i++ {
		if err := cb.Execute(func() error { return boom }); !errors.Is(err, boom) {
			t.Fatalf("expected wrapped failure, got %v", err)
		}
	}
	if cb.GetState() != StateOpen {
		t.Fatalf("expected open breaker, got %s", cb.GetState())
	}

	called := false
	if err := cb.Execute(func() error { called = true; return nil }); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen, got %v", err)
	}
	if called {
		t.Fatal("expected open breaker to skip the call")
	}

	now = now.Add(11 * time.Second)
	if err := cb.Execute(func() error { return nil }); err != nil {
		t.Fatalf("expected half-open call to pass, got %v", err)
	}
	if cb.GetState() != StateClosed {
		t.Fatalf("expected closed breaker, got %s", cb.GetState())
	}

	want := []string{"closed->open", "open->half-open", "half-open->closed"}
	if len(transitions) != len(want) {
		t.Fatalf("expected transitions %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Fatalf("expected transitions %v, got %v", want, transitions)
		}
	}
}

func TestHalfOpenFailureReopens(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(1, 2, time.Second)
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	now = now.Add(2 * time.Second)
	if !cb.AllowRequest() {
		t.Fatal("expected breaker to allow a probe after timeout")
	}
	cb.RecordFailure()
	if cb.GetState() != StateOpen {
		t.Fatalf("expected breaker to reopen, got %s", cb.GetState())
	}
}
