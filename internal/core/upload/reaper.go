package upload

import (
	"context"
	"sync"
	"time"
)

// Reaper periodically sweeps expired upload sessions. It is owned by the app
// lifecycle: Start blocks until the context is cancelled or Stop is called,
// so there is no timer left re-arming itself after shutdown.
type Reaper struct {
	manager  *Manager
	interval time.Duration

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

func NewReaper(m *Manager, interval time.Duration) *Reaper {
	return &Reaper{manager: m, interval: interval}
}

// Start begins the sweep loop. This method blocks until Stop is called or the
// context ends.
func (r *Reaper) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil // Already running
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.mu.Unlock()

	r.wg.Add(1)
	defer r.wg.Done()
	return r.run(ctx)
}

// Stop shuts the loop down and waits for an in-flight sweep to finish.
func (r *Reaper) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopCh)
	r.mu.Unlock()

	r.wg.Wait()
	return nil
}

func (r *Reaper) run(ctx context.Context) error {
	// Catch sessions that expired before we came up.
	r.manager.Sweep(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.stopCh:
			return nil
		case <-ticker.C:
			r.manager.Sweep(ctx)
		}
	}
}
