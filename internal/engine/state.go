package engine

import (
	"github.com/joelsfoster/gizmo/internal/signal"
)

// State is the per-instrument memory of the engine. It lives for the
// process lifetime and is not persisted across restarts.
type State struct {
	LastDirection signal.Direction `json:"lastDirection"`
	LastAction    string           `json:"lastAction"`
	DirectionLock signal.Direction `json:"directionLock"`
	Gate          Gate             `json:"gate"`
}

// ShouldExecute reports whether action may run: exact repeats of the last
// action are suppressed unless override is set.
func (s *State) ShouldExecute(action string, override bool) bool {
	return override || action != s.LastAction
}

// Locked reports whether the direction lock forbids opening dir.
func (s *State) Locked(dir signal.Direction) bool {
	return s.DirectionLock != signal.None && dir != signal.None && dir != s.DirectionLock
}
