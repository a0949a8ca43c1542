package pipeline

import (
	"context"
	"testing"
	"time"

	"streamcave/internal/logging"
	"streamcave/internal/schedule"
)

func TestRunSchedulerEmitsIDThenConfigInOrder(t *testing.T) {
	var streams schedule.Streams
	streams.Add(schedule.StreamConfig{Login: "first", BroadcasterID: 1})
	streams.Add(schedule.StreamConfig{Login: "second", BroadcasterID: 2})

	ids := make(chan uint32, 2)
	configs := make(chan schedule.StreamConfig, 2)

	done := make(chan struct{})
	go func() {
		RunScheduler(context.Background(), streams, ids, configs, logging.New("scheduler-test"))
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("RunScheduler did not return")
	}

	if got := []uint32{<-ids, <-ids}; got[0] != 1 || got[1] != 2 {
		t.Errorf("ids = %v, want [1 2]", got)
	}
	if got := (<-configs).Login; got != "first" {
		t.Errorf("first config login = %q, want first", got)
	}
	if got := (<-configs).Login; got != "second" {
		t.Errorf("second config login = %q, want second", got)
	}
}
