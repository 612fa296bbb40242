package sched

import (
	"testing"
	"time"
)

func TestAfterRunsTask(t *testing.T) {
	s := New()
	done := make(chan struct{})

	s.After(10*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task never ran")
	}
}

func TestCancelPreventsRun(t *testing.T) {
	s := New()
	ran := make(chan struct{}, 1)

	task := s.After(50*time.Millisecond, func() { ran <- struct{}{} })
	if !task.Cancel() {
		t.Fatal("expected Cancel to report success")
	}

	select {
	case <-ran:
		t.Fatal("cancelled task still ran")
	case <-time.After(150 * time.Millisecond):
	}

	if task.Cancel() {
		t.Error("second Cancel should report false")
	}
}

func TestStopCancelsOutstandingTasks(t *testing.T) {
	s := New()
	ran := make(chan struct{}, 2)

	s.After(50*time.Millisecond, func() { ran <- struct{}{} })
	s.After(50*time.Millisecond, func() { ran <- struct{}{} })
	s.Stop()

	select {
	case <-ran:
		t.Fatal("task ran after Stop")
	case <-time.After(150 * time.Millisecond):
	}

	// A stopped scheduler accepts tasks but never runs them.
	s.After(10*time.Millisecond, func() { ran <- struct{}{} })
	select {
	case <-ran:
		t.Fatal("task ran on stopped scheduler")
	case <-time.After(100 * time.Millisecond):
	}
}
