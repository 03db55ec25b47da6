package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"finledger/internal/log"
)

// periodic runs a sweep immediately and then on every tick until stopped.
// Sweeps must be idempotent: a restart may repeat one.
type periodic struct {
	name     string
	interval time.Duration
	sweep    func(ctx context.Context)
	logger   *log.Logger

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// Start begins the processing loop. Returns an error if already running.
func (p *periodic) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("%s is already running", p.name)
	}
	p.running = true
	stopCh, doneCh := make(chan struct{}), make(chan struct{})
	p.stopCh, p.doneCh = stopCh, doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	p.logger.InfoContext(ctx, "Processor started",
		"processor", p.name,
		"interval", p.interval)
	return nil
}

// Stop signals the loop and waits for the current sweep. When ctx expires
// first the loop keeps winding down and a later Stop waits for it again.
func (p *periodic) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.stopCh = nil
	p.mu.Unlock()

	if stopCh != nil {
		close(stopCh)
	}

	select {
	case <-doneCh:
		p.logger.InfoContext(ctx, "Processor stopped gracefully", "processor", p.name)
		return nil
	case <-ctx.Done():
		p.logger.WarnContext(ctx, "Processor stop timed out", "processor", p.name)
		return ctx.Err()
	}
}

func (p *periodic) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *periodic) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer func() {
		p.mu.Lock()
		if p.doneCh == doneCh {
			p.running = false
			p.stopCh, p.doneCh = nil, nil
		}
		p.mu.Unlock()
		close(doneCh)
	}()

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	p.sweep(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		}
	}
}
