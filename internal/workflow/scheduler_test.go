package workflow

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTickerSchedulerRunsJobs(t *testing.T) {
	s := NewTickerScheduler()

	var runs atomic.Int64
	if err := s.Schedule("tick", 10*time.Millisecond, func() { runs.Add(1) }); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	s.Start()
	time.Sleep(60 * time.Millisecond)
	s.Stop()

	if runs.Load() == 0 {
		t.Error("job never ran")
	}

	after := runs.Load()
	time.Sleep(30 * time.Millisecond)
	if runs.Load() != after {
		t.Error("job still running after Stop")
	}
}

func TestTickerSchedulerRejectsBadJobs(t *testing.T) {
	s := NewTickerScheduler()
	if err := s.Schedule("bad", 0, func() {}); err == nil {
		t.Error("zero interval should be rejected")
	}

	s.Start()
	defer s.Stop()
	if err := s.Schedule("late", time.Second, func() {}); err == nil {
		t.Error("scheduling after Start should be rejected")
	}
}

func TestCronSchedulerRunsJobs(t *testing.T) {
	s := NewCronScheduler()

	ran := make(chan struct{}, 1)
	if err := s.Schedule("tick", time.Second, func() {
		select {
		case ran <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("Schedule: %v", err)
	}

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(3 * time.Second):
		t.Error("cron job never ran")
	}
}

func TestCronSchedulerRejectsSubSecondInterval(t *testing.T) {
	s := NewCronScheduler()
	if err := s.Schedule("fast", 50*time.Millisecond, func() {}); err == nil {
		t.Error("sub-second interval should be rejected")
	}
}

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	c := NewManualClock(start)

	if !c.Now().Equal(start) {
		t.Errorf("Now() = %v, want %v", c.Now(), start)
	}
	c.Advance(90 * time.Minute)
	if got := c.Now(); !got.Equal(start.Add(90 * time.Minute)) {
		t.Errorf("after Advance, Now() = %v", got)
	}
}
