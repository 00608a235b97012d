// Package liveness tracks whether the upstream catalog API is answering.
package liveness

import (
	"sync"
	"time"
)

type State struct {
	IsLive     bool      `json:"isLive"`
	LastUpdate time.Time `json:"lastUpdate"`
}

// Tracker is shared by every course's fetches. The last report wins.
type Tracker struct {
	mu       sync.Mutex
	state    State
	now      func() time.Time
	observer func(State)
}

func New() *Tracker {
	return &Tracker{now: time.Now, state: State{LastUpdate: time.Now()}}
}

// OnChange registers fn to receive every reported state. fn runs on the
// reporting goroutine after the tracker lock is released.
func (t *Tracker) OnChange(fn func(State)) {
	t.mu.Lock()
	t.observer = fn
	t.mu.Unlock()
}

func (t *Tracker) ReportSuccess() { t.report(true) }

func (t *Tracker) ReportFailure() { t.report(false) }

func (t *Tracker) Current() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Tracker) report(live bool) {
	t.mu.Lock()
	t.state = State{IsLive: live, LastUpdate: t.now()}
	st, fn := t.state, t.observer
	t.mu.Unlock()

	if fn != nil {
		fn(st)
	}
}
