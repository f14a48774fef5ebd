package timex

import (
	"context"
	"errors"
	"testing"
	"time"

	"rovercode-go/errcode"
)

func TestRealSleepInterrupted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Real{}.Sleep(ctx, time.Second)
	if !errors.Is(err, errcode.Interrupted) {
		t.Fatalf("want interrupted, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("cause lost: %v", err)
	}
}

func TestRealSleepCompletes(t *testing.T) {
	start := (Real{}).NowNanos()
	if err := (Real{}).Sleep(context.Background(), 2*time.Millisecond); err != nil {
		t.Fatal(err)
	}
	if (Real{}).NowNanos()-start < int64(2*time.Millisecond) {
		t.Fatal("clock did not advance")
	}
}

func TestFakeRecordsSleeps(t *testing.T) {
	f := NewFake(1_000)
	_ = f.Sleep(context.Background(), 5*time.Millisecond)
	_ = f.Sleep(context.Background(), 100*time.Millisecond)
	if got := f.Sleeps(); len(got) != 2 || got[1] != 100*time.Millisecond {
		t.Fatalf("sleeps = %v", got)
	}
	if f.NowNanos() != 1_000+int64(105*time.Millisecond) {
		t.Fatalf("now = %d", f.NowNanos())
	}
	if f.Total() != 105*time.Millisecond {
		t.Fatalf("total = %v", f.Total())
	}
}
