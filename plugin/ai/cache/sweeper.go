package cache

import (
	"context"
	"sync"
	"time"
)

// Sweeper periodically drops expired entries from an LRU.
type Sweeper struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// StartSweeper sweeps c every interval until Stop.
func StartSweeper[V any](c *LRU[V], interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sweeper{cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.Sweep()
			}
		}
	}()
	return s
}

// Stop ends the sweep loop and waits for it. Safe to call more than once.
func (s *Sweeper) Stop() {
	s.once.Do(func() {
		s.cancel()
		<-s.done
	})
}
