package cec

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type countingQuerier struct {
	calls atomic.Int32
	err   error
}

func (q *countingQuerier) QueryPowerState() error {
	q.calls.Add(1)
	return q.err
}

func waitForCalls(t *testing.T, q *countingQuerier, n int32) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for q.calls.Load() < n {
		if time.Now().After(deadline) {
			t.Fatalf("got %d queries, want at least %d", q.calls.Load(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPoller_QueriesImmediatelyAndPeriodically(t *testing.T) {
	q := &countingQuerier{}
	p := NewPoller(q, 10*time.Millisecond)

	p.Start(context.Background())
	defer p.Stop()

	waitForCalls(t, q, 3)
}

func TestPoller_Stop(t *testing.T) {
	q := &countingQuerier{}
	p := NewPoller(q, 5*time.Millisecond)

	p.Start(context.Background())
	waitForCalls(t, q, 1)
	p.Stop()
	p.Stop()

	after := q.calls.Load()
	time.Sleep(30 * time.Millisecond)
	if q.calls.Load() != after {
		t.Errorf("poller kept querying after Stop(): %d -> %d", after, q.calls.Load())
	}
}

func TestPoller_ContextCancel(t *testing.T) {
	q := &countingQuerier{}
	p := NewPoller(q, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	p.Start(ctx)
	waitForCalls(t, q, 1)
	cancel()

	done := make(chan struct{})
	go func() {
		p.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop() blocked after context cancel")
	}
}

func TestPoller_KeepsPollingOnError(t *testing.T) {
	q := &countingQuerier{err: errors.New("process gone")}
	p := NewPoller(q, 5*time.Millisecond)

	p.Start(context.Background())
	defer p.Stop()

	waitForCalls(t, q, 3)
}

func TestNewPoller_DefaultInterval(t *testing.T) {
	p := NewPoller(&countingQuerier{}, 0)
	if p.interval != DefaultPollInterval {
		t.Errorf("interval = %v, want %v", p.interval, DefaultPollInterval)
	}
}
