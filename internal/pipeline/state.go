package pipeline

import (
	"errors"
	"fmt"
)

// State is the coordinator lifecycle state.
type State int32

const (
	StateUninit State = iota
	StateIdle
	StateReady
	StateComputing
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateUninit:
		return "uninit"
	case StateIdle:
		return "idle"
	case StateReady:
		return "ready"
	case StateComputing:
		return "computing"
	case StateTornDown:
		return "torn-down"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// ErrInvalidState is returned for an operation the current state does not
// allow. The state is left unchanged.
var ErrInvalidState = errors.New("invalid state")

// Stage names a bootstrap step.
type Stage string

const (
	StageMesh     Stage = "load mesh"
	StageRenderer Stage = "create renderer"
	StageBake     Stage = "bake views"
	StageBank     Stage = "build feature bank"
)

// BootstrapError reports the step at which Bootstrap failed.
type BootstrapError struct {
	Stage Stage
	Err   error
}

func (e *BootstrapError) Error() string {
	return fmt.Sprintf("bootstrap: %s: %v", e.Stage, e.Err)
}

func (e *BootstrapError) Unwrap() error { return e.Err }
