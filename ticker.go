package main

import "time"

// Scheduler drives the shared fixed-rate simulation for every room. One
// goroutine ticks the whole registry; rooms never need cross-room locking
// because TickAll serializes on the registry lock like every other handler.
type Scheduler struct {
	reg      *Registry
	interval time.Duration
	stop     chan struct{}
}

// NewScheduler creates a scheduler; Run must be started by the caller.
func NewScheduler(reg *Registry, interval time.Duration) *Scheduler {
	return &Scheduler{
		reg:      reg,
		interval: interval,
		stop:     make(chan struct{}),
	}
}

// Run loops until Stop is called.
func (s *Scheduler) Run() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.reg.TickAll()
		case <-s.stop:
			return
		}
	}
}

// Stop terminates the loop.
func (s *Scheduler) Stop() {
	close(s.stop)
}
