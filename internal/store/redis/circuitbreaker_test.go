package redis

import (
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	for i := 0; i < 3; i++ {
		if err := b.Execute(func() error { return errBoom }); err != errBoom {
			t.Fatalf("call %d: err = %v, want boom", i, err)
		}
	}
	if b.CurrentState() != StateOpen {
		t.Fatalf("state = %s, want open", b.CurrentState())
	}
	if err := b.Execute(func() error { return nil }); err != ErrCircuitOpen {
		t.Errorf("err = %v, want ErrCircuitOpen while open", err)
	}
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker(3, time.Minute)

	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return nil })
	b.Execute(func() error { return errBoom })
	b.Execute(func() error { return errBoom })

	if b.CurrentState() != StateClosed {
		t.Errorf("state = %s, want closed (failures were not consecutive)", b.CurrentState())
	}
}

func TestBreakerHalfOpenProbe(t *testing.T) {
	b := NewBreaker(1, 10*time.Millisecond)

	b.Execute(func() error { return errBoom })
	if b.CurrentState() != StateOpen {
		t.Fatalf("state = %s, want open", b.CurrentState())
	}

	time.Sleep(20 * time.Millisecond)

	// Failed probe reopens.
	if err := b.Execute(func() error { return errBoom }); err != errBoom {
		t.Fatalf("probe err = %v, want boom", err)
	}
	if b.CurrentState() != StateOpen {
		t.Fatalf("state after failed probe = %s, want open", b.CurrentState())
	}

	time.Sleep(20 * time.Millisecond)

	// Successful probe closes.
	if err := b.Execute(func() error { return nil }); err != nil {
		t.Fatalf("probe err = %v, want nil", err)
	}
	if b.CurrentState() != StateClosed {
		t.Errorf("state after good probe = %s, want closed", b.CurrentState())
	}
}

func TestBreakerStateChangeCallback(t *testing.T) {
	b := NewBreaker(1, time.Minute)

	var transitions []string
	b.OnStateChange = func(from, to State) {
		transitions = append(transitions, from.String()+"->"+to.String())
	}

	b.Execute(func() error { return errBoom })
	if len(transitions) != 1 || transitions[0] != "closed->open" {
		t.Errorf("transitions = %v, want [closed->open]", transitions)
	}
}
