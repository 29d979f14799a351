package gateway

import (
	"sync"
	"time"
)

// Status is a point-in-time copy of the last accepted command, as
// served by the status endpoint.
type Status struct {
	Motion Motion `json:"motion"`
	Speed  int    `json:"speed"`
	TsMs   int64  `json:"ts_ms"`
}

// State holds the most recently accepted command. It is informational
// only: there is no ordering guarantee against in-flight broadcast
// activity.
type State struct {
	mu     sync.Mutex
	motion Motion
	speed  int
	ts     time.Time
}

// NewState starts at Stop/0, the commanded state of the car at boot.
func NewState() *State {
	return &State{motion: MotionStop}
}

// Record overwrites the state with cmd at time now.
func (s *State) Record(cmd Command, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.motion = cmd.Motion
	s.speed = cmd.Speed
	s.ts = now
}

// Snapshot returns a copy for status reporting.
func (s *State) Snapshot() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ms int64
	if !s.ts.IsZero() {
		ms = s.ts.UnixMilli()
	}
	return Status{Motion: s.motion, Speed: s.speed, TsMs: ms}
}
