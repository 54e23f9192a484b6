package cec

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval matches how often cec-client is asked for the power
// status when no interval is configured.
const DefaultPollInterval = 10 * time.Second

// PowerQuerier asks the device for its power status.
// *Controller satisfies it.
type PowerQuerier interface {
	QueryPowerState() error
}

// Poller periodically queries the TV power status.
//
// The first query is sent as soon as Start is called. Replies are handled
// by whoever is listening on the controller.
type Poller struct {
	querier  PowerQuerier
	interval time.Duration
	logger   Logger

	// Shutdown coordination (stopOnce prevents double-close panics)
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewPoller creates a poller. A non-positive interval uses DefaultPollInterval.
func NewPoller(querier PowerQuerier, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	return &Poller{
		querier:  querier,
		interval: interval,
		logger:   noopLogger{},
		done:     make(chan struct{}),
	}
}

// SetLogger sets the logger for the poller. Call before Start.
func (p *Poller) SetLogger(logger Logger) {
	p.logger = logger
}

// Start begins polling until ctx is cancelled or Stop is called.
func (p *Poller) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.pollLoop(ctx)
}

// Stop ends polling and waits for the loop to exit.
// Safe to call multiple times.
func (p *Poller) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

func (p *Poller) pollLoop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.poll()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

func (p *Poller) poll() {
	if err := p.querier.QueryPowerState(); err != nil {
		// A dead cec-client fails every poll; keep trying until stopped.
		p.logger.Warn("power status query failed", "error", err)
	}
}
