// Package health aggregates subsystem checks into one state.
//
// A subsystem is degraded when it misbehaves but the process still does its
// job, e.g. the decision client answering logins from the fail-open path.
// Only unhealthy subsystems make the aggregate unhealthy.
package health

import (
	"context"
	"sync"
)

// State is the health of one subsystem or of the whole process.
type State string

const (
	StateHealthy   State = "healthy"
	StateDegraded  State = "degraded"
	StateUnhealthy State = "unhealthy"
)

func (s State) rank() int {
	switch s {
	case StateHealthy:
		return 0
	case StateDegraded:
		return 1
	default:
		return 2
	}
}

// Worse returns whichever of s and o is worse. Unknown states count as
// unhealthy.
func (s State) Worse(o State) State {
	if o.rank() > s.rank() {
		return o
	}
	return s
}

// Status is one subsystem's report.
type Status struct {
	Name   string `json:"name"`
	State  State  `json:"state"`
	Detail string `json:"detail,omitempty"`
}

// Checker reports the current status of a subsystem.
type Checker func(ctx context.Context) Status

// Registry holds named checkers and runs them on demand.
type Registry struct {
	mu       sync.RWMutex
	checkers []namedChecker
}

type namedChecker struct {
	name  string
	check Checker
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a named checker. Checks run in registration order.
func (r *Registry) Register(name string, check Checker) {
	r.mu.Lock()
	r.checkers = append(r.checkers, namedChecker{name: name, check: check})
	r.mu.Unlock()
}

// CheckAll runs every checker and returns the worst state among them, plus
// the individual reports. An empty registry is healthy. A report without a
// Name is filed under its registered name.
func (r *Registry) CheckAll(ctx context.Context) (State, []Status) {
	r.mu.RLock()
	checkers := make([]namedChecker, len(r.checkers))
	copy(checkers, r.checkers)
	r.mu.RUnlock()

	overall := StateHealthy
	statuses := make([]Status, len(checkers))
	for i, nc := range checkers {
		st := nc.check(ctx)
		if st.Name == "" {
			st.Name = nc.name
		}
		overall = overall.Worse(st.State)
		statuses[i] = st
	}
	return overall, statuses
}

// LastError builds a checker from the most recent error of a subsystem that
// keeps serving through failures. A non-nil error degrades it.
func LastError(name string, last func() error) Checker {
	return func(_ context.Context) Status {
		if err := last(); err != nil {
			return Status{Name: name, State: StateDegraded, Detail: err.Error()}
		}
		return Status{Name: name, State: StateHealthy}
	}
}
