// Copyright 2026 The Podium Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"sync"
	"time"

	"github.com/podium-foundation/podium/lib/clock"
)

// TimerStatus is one reading of the lesson timer. All values are
// derived from the wall-clock difference between now and the session's
// creation, never accumulated, so a missed or delayed tick cannot make
// the timer drift.
type TimerStatus struct {
	// ElapsedSeconds since the session record was created.
	ElapsedSeconds int
	// RemainingSeconds until the target duration, 0 once passed.
	RemainingSeconds int
	// TargetSeconds is the configured lesson length.
	TargetSeconds int
	// InWrapUp is true once remaining time is inside the wrap-up
	// buffer, signalling the lesson should move to its close.
	InWrapUp bool
}

// Lifecycle tracks lesson timing for one session and delivers a
// status reading every second while running.
type Lifecycle struct {
	clock   clock.Clock
	started time.Time
	target  time.Duration
	wrapUp  time.Duration

	mu     sync.Mutex
	ticker *clock.Ticker
	done   chan struct{}
}

// NewLifecycle returns a timer for a session created at started with
// the given target lesson length and wrap-up buffer.
func NewLifecycle(clk clock.Clock, started time.Time, targetMinutes, wrapUpMinutes int) *Lifecycle {
	return &Lifecycle{
		clock:   clk,
		started: started,
		target:  time.Duration(targetMinutes) * time.Minute,
		wrapUp:  time.Duration(wrapUpMinutes) * time.Minute,
	}
}

// Status computes the current timer reading. A zero target means the
// lesson is open-ended: remaining stays 0 and wrap-up never triggers.
func (l *Lifecycle) Status() TimerStatus {
	elapsed := l.clock.Now().Sub(l.started)
	if elapsed < 0 {
		elapsed = 0
	}
	status := TimerStatus{
		ElapsedSeconds: int(elapsed / time.Second),
		TargetSeconds:  int(l.target / time.Second),
	}
	if l.target > 0 {
		remaining := l.target - elapsed
		if remaining < 0 {
			remaining = 0
		}
		status.RemainingSeconds = int(remaining / time.Second)
		status.InWrapUp = elapsed >= l.target-l.wrapUp
	}
	return status
}

// Start begins the 1-second tick, invoking onTick with a fresh status
// reading on each tick until Stop. Starting an already-running
// lifecycle is a no-op.
func (l *Lifecycle) Start(onTick func(TimerStatus)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ticker != nil {
		return
	}
	l.ticker = l.clock.NewTicker(time.Second)
	l.done = make(chan struct{})
	go l.run(l.ticker, l.done, onTick)
}

func (l *Lifecycle) run(ticker *clock.Ticker, done chan struct{}, onTick func(TimerStatus)) {
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			onTick(l.Status())
		}
	}
}

// Stop ends the tick. Idempotent.
func (l *Lifecycle) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ticker == nil {
		return
	}
	l.ticker.Stop()
	close(l.done)
	l.ticker = nil
	l.done = nil
}
