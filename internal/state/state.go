// Package state holds the process-wide compliance record shared by the
// evaluator, the bypass monitor, the update trigger and the presentation layer.
package state

import (
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/update_guard/internal/domain"
)

// Exit reasons recorded when ShouldExit flips to true.
const (
	ExitConfigurationError = "configuration_error"
	ExitAlreadySatisfied   = "os_version_satisfied"
	ExitPrimaryQuit        = "primary_quit"
)

// Snapshot is a consistent copy of the compliance state.
type Snapshot struct {
	ShouldExit        bool
	ExitReason        string
	Verdict           domain.Verdict
	EnforcementActive bool
	EvaluatedAt       time.Time
}

// ComplianceState is created once per process and injected into every component.
// ShouldExit only moves from false to true; a terminal verdict is never replaced.
type ComplianceState struct {
	mu                sync.RWMutex
	shouldExit        bool
	exitReason        string
	verdict           domain.Verdict
	enforcementActive bool
	evaluatedAt       time.Time

	subscribers map[int]chan Snapshot
	nextSubID   int
}

// New creates a state with ShouldExit=false and no verdict yet.
func New() *ComplianceState {
	return &ComplianceState{
		subscribers: make(map[int]chan Snapshot),
	}
}

// Snapshot returns a copy of the current state.
func (s *ComplianceState) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *ComplianceState) snapshotLocked() Snapshot {
	return Snapshot{
		ShouldExit:        s.shouldExit,
		ExitReason:        s.exitReason,
		Verdict:           s.verdict,
		EnforcementActive: s.enforcementActive,
		EvaluatedAt:       s.evaluatedAt,
	}
}

// ShouldExit reports whether termination is sanctioned.
func (s *ComplianceState) ShouldExit() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.shouldExit
}

// Verdict returns the most recent verdict.
func (s *ComplianceState) Verdict() domain.Verdict {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.verdict
}

// RecordVerdict stores a verdict. It returns the verdict actually held, which
// differs from v only when a terminal verdict was already recorded.
func (s *ComplianceState) RecordVerdict(v domain.Verdict, at time.Time) domain.Verdict {
	s.mu.Lock()
	if s.verdict.IsTerminal() {
		held := s.verdict
		s.mu.Unlock()
		return held
	}
	s.verdict = v
	s.evaluatedAt = at
	if v.IsTerminal() {
		s.markExitLocked(ExitConfigurationError)
	}
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
	return v
}

// RequestExit sanctions termination. The first recorded reason wins.
func (s *ComplianceState) RequestExit(reason string) {
	s.mu.Lock()
	s.markExitLocked(reason)
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

func (s *ComplianceState) markExitLocked(reason string) {
	if s.shouldExit {
		return
	}
	s.shouldExit = true
	s.exitReason = reason
}

// SetEnforcementActive records whether the bypass monitor is armed.
func (s *ComplianceState) SetEnforcementActive(active bool) {
	s.mu.Lock()
	s.enforcementActive = active
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.publish(snap)
}

// Subscribe returns a channel receiving a snapshot after every change, starting
// with the current one. Slow subscribers miss intermediate snapshots.
func (s *ComplianceState) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)

	s.mu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	ch <- s.snapshotLocked()
	s.mu.Unlock()

	cancel := func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if sub, ok := s.subscribers[id]; ok {
			delete(s.subscribers, id)
			close(sub)
		}
	}
	return ch, cancel
}

func (s *ComplianceState) publish(snap Snapshot) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, ch := range s.subscribers {
		// Drop the stale snapshot so the subscriber always sees the latest one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
