package utils

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestURLSetNoDuplicates(t *testing.T) {
	s := NewURLSet()

	added := s.Add("https://example.com/1")
	if !added {
		t.Error("first Add should return true")
	}

	added = s.Add("https://example.com/1")
	if added {
		t.Error("second Add of same URL should return false")
	}

	if s.Size() != 1 {
		t.Errorf("size: got %d, want 1", s.Size())
	}
}

func TestURLSetSeeded(t *testing.T) {
	s := NewURLSet("a", "b", "a")
	if s.Size() != 2 {
		t.Errorf("size: got %d, want 2", s.Size())
	}
	if !s.Contains("b") {
		t.Error("seeded URL should be contained")
	}
	if s.Contains("c") {
		t.Error("unknown URL should not be contained")
	}
}

func TestPacerNextWithinBounds(t *testing.T) {
	delay := 100 * time.Millisecond
	jitter := 50 * time.Millisecond
	p := NewPacer(delay, jitter)

	for i := 0; i < 200; i++ {
		d := p.Next()
		if d < delay-jitter || d > delay+jitter {
			t.Fatalf("Next() = %v, want within [%v, %v]", d, delay-jitter, delay+jitter)
		}
	}
}

func TestPacerNeverNegative(t *testing.T) {
	p := NewPacer(0, time.Second)
	for i := 0; i < 200; i++ {
		if d := p.Next(); d < 0 {
			t.Fatalf("Next() = %v, want >= 0", d)
		}
	}
}

func TestPacerWaitUsesSleep(t *testing.T) {
	p := NewPacer(time.Second, 0)
	var got time.Duration
	p.sleep = func(_ context.Context, d time.Duration) error {
		got = d
		return nil
	}

	if err := p.Wait(context.Background()); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if got != time.Second {
		t.Errorf("slept %v, want 1s", got)
	}
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Sleep(ctx, time.Minute)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Sleep error: got %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Error("Sleep should return immediately on a cancelled context")
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, Logger: NewDiscardLogger()}

	calls := 0
	err := r.Do(context.Background(), "flaky", func() error {
		calls++
		if calls < 3 {
			return errors.New("boom")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if calls != 3 {
		t.Errorf("calls: got %d, want 3", calls)
	}
}

func TestRetryGivesUp(t *testing.T) {
	r := &RetryConfig{MaxAttempts: 2, BaseDelay: time.Millisecond, Logger: NewDiscardLogger()}
	sentinel := errors.New("down")

	err := r.Do(context.Background(), "ping", func() error { return sentinel })
	if !errors.Is(err, sentinel) {
		t.Errorf("Do error: got %v, want wrapped sentinel", err)
	}
}

func TestLoggerDebugGated(t *testing.T) {
	var out bytes.Buffer
	l := NewLoggerTo(&out, &out, false)

	l.Debug("hidden %d", 1)
	if out.Len() != 0 {
		t.Errorf("debug output written while not verbose: %q", out.String())
	}

	l.SetVerbose(true)
	l.Debug("shown %d", 2)
	if !strings.Contains(out.String(), "shown 2") {
		t.Errorf("debug output missing: %q", out.String())
	}
}

func TestLoggerFormatsArgs(t *testing.T) {
	var out, errOut bytes.Buffer
	l := NewLoggerTo(&out, &errOut, false)

	l.Info("[store] appended %d rows", 4)
	l.Error("[store] failed: %v", errors.New("x"))

	if !strings.Contains(out.String(), "appended 4 rows") {
		t.Errorf("info output: %q", out.String())
	}
	if !strings.Contains(errOut.String(), "failed: x") {
		t.Errorf("error output: %q", errOut.String())
	}
}
