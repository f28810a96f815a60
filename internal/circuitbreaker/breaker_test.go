package circuitbreaker

import (
	"testing"
	"time"
)

func TestAllow_Fresh_Allowed(t *testing.T) {
	b := New(3, 5*time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAllow_BelowThreshold_Allowed(t *testing.T) {
	b := New(3, 5*time.Second)
	b.RecordFailure()
	b.RecordFailure()
	if err := b.Allow(); err != nil {
		t.Fatalf("expected nil, got %v", err)
	}
}

func TestAllow_AtThreshold_Open(t *testing.T) {
	b := New(3, 5*time.Second)
	b.RecordFailure()
	b.RecordFailure()
	b.RecordFailure()
	if err := b.Allow(); err == nil {
		t.Fatal("expected ErrOpen, got nil")
	}
}

func TestAllow_OpenAfterCooldown_HalfOpen(t *testing.T) {
	b := New(3, 10*time.Second)
	now := time.Now()
	b.now = func() time.Time { return now }

	b.RecordFailure()
	b.RecordFailure()
	b.RecordFailure()

	now = now.Add(11 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("expected nil (probe allowed), got %v", err)
	}
	if err := b.Allow(); err == nil {
		t.Fatal("expected ErrOpen while half-open probe in flight")
	}
}

func TestRecordSuccess_ResetsToClosed(t *testing.T) {
	b := New(3, 10*time.Second)
	now := time.Now()
	b.now = func() time.Time { return now }

	b.RecordFailure()
	b.RecordFailure()
	b.RecordFailure()
	now = now.Add(11 * time.Second)
	if err := b.Allow(); err != nil {
		t.Fatalf("probe should be allowed, got %v", err)
	}
	b.RecordSuccess()
	if err := b.Allow(); err != nil {
		t.Fatalf("expected nil after reset, got %v", err)
	}
}

func TestRecordFailure_HalfOpenReOpens(t *testing.T) {
	b := New(3, 10*time.Second)
	now := time.Now()
	b.now = func() time.Time { return now }

	b.RecordFailure()
	b.RecordFailure()
	b.RecordFailure()
	now = now.Add(11 * time.Second)
	b.Allow()
	b.RecordFailure()
	if err := b.Allow(); err == nil {
		t.Fatal("expected ErrOpen after probe failure re-open")
	}
}

// TestDisabledBreaker verifies threshold 0 turns the breaker into a
// no-op, matching the config contract.
func TestDisabledBreaker(t *testing.T) {
	b := New(0, time.Second)
	for i := 0; i < 10; i++ {
		b.RecordFailure()
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("disabled breaker should always allow, got %v", err)
	}
}

func TestNilBreaker_Safe(t *testing.T) {
	var b *Breaker
	b.RecordFailure()
	b.RecordSuccess()
	if err := b.Allow(); err != nil {
		t.Fatalf("nil breaker should allow, got %v", err)
	}
}
