package algorithms

import (
	"testing"
	"time"
)

func TestBackoff_Exponential(t *testing.T) {
	b := NewBackoff(BackoffExponential, time.Millisecond, 10*time.Millisecond)

	want := []time.Duration{
		1 * time.Millisecond,
		2 * time.Millisecond,
		4 * time.Millisecond,
		8 * time.Millisecond,
		10 * time.Millisecond,
		10 * time.Millisecond,
	}
	for i, w := range want {
		if got := b.Next(); got != w {
			t.Errorf("attempt %d: got %v, want %v", i, got, w)
		}
	}

	b.Reset()
	if got := b.Next(); got != time.Millisecond {
		t.Errorf("after Reset: got %v, want 1ms", got)
	}
}

func TestBackoff_Bounds(t *testing.T) {
	tests := []struct {
		name string
		kind BackoffType
	}{
		{"exponential", BackoffExponential},
		{"jittered", BackoffJittered},
		{"decorrelated", BackoffDecorrelated},
		{"constant", BackoffConstant},
	}

	initial, ceiling := 2*time.Millisecond, 50*time.Millisecond
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBackoff(tt.kind, initial, ceiling)
			for i := range 200 {
				d := b.Next()
				if d < 0 || d > ceiling {
					t.Fatalf("attempt %d: delay %v outside [0, %v]", i, d, ceiling)
				}
			}
			if b.Attempt() != 200 {
				t.Errorf("expected 200 attempts, got %d", b.Attempt())
			}
		})
	}
}

func TestBackoff_DecorrelatedFirstDelay(t *testing.T) {
	b := NewBackoff(BackoffDecorrelated, 5*time.Millisecond, time.Second)
	if got := b.Next(); got != 5*time.Millisecond {
		t.Errorf("first delay: got %v, want 5ms", got)
	}
	for range 20 {
		if d := b.Next(); d < 5*time.Millisecond {
			t.Fatalf("delay %v below initial", d)
		}
	}
}

func TestNewBackoff_Normalises(t *testing.T) {
	b := NewBackoff(BackoffConstant, 0, -time.Second)
	if got := b.Next(); got != time.Millisecond {
		t.Errorf("expected defaulted 1ms, got %v", got)
	}
}

func TestExponential_Overflow(t *testing.T) {
	ceiling := time.Hour
	if got := exponential(70, time.Second, ceiling); got != ceiling {
		t.Errorf("expected saturation at %v, got %v", ceiling, got)
	}
	if got := exponential(40, time.Second, ceiling); got != ceiling {
		t.Errorf("expected clamp at %v, got %v", ceiling, got)
	}
}

func TestBackoff_Sleep(t *testing.T) {
	t.Run("returns true after delay", func(t *testing.T) {
		b := NewBackoff(BackoffConstant, time.Millisecond, time.Millisecond)
		if !b.Sleep(make(chan struct{})) {
			t.Error("expected timer to fire")
		}
	})

	t.Run("returns false when done closes", func(t *testing.T) {
		b := NewBackoff(BackoffConstant, time.Hour, time.Hour)
		done := make(chan struct{})
		close(done)

		start := time.Now()
		if b.Sleep(done) {
			t.Error("expected done to win")
		}
		if time.Since(start) > time.Second {
			t.Error("Sleep did not return promptly")
		}
	})
}

func TestParseBackoffType(t *testing.T) {
	for _, kind := range []BackoffType{BackoffExponential, BackoffJittered, BackoffDecorrelated, BackoffConstant} {
		got, ok := ParseBackoffType(kind.String())
		if !ok || got != kind {
			t.Errorf("ParseBackoffType(%q) = %v, %v", kind.String(), got, ok)
		}
	}
	if _, ok := ParseBackoffType("bogus"); ok {
		t.Error("expected unknown name to fail")
	}
}
