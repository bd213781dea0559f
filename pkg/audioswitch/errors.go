package audioswitch

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateBinding is returned when two registered bindings use the same key combination
	ErrDuplicateBinding = errors.New("duplicate hotkey binding")

	// ErrBridgeClosed is returned when sending to or receiving from a closed event bridge
	ErrBridgeClosed = errors.New("event bridge closed")

	// ErrInvalidColor is returned for profile colors that aren't in "#RRGGBB" form
	ErrInvalidColor = errors.New("invalid hex color")

	// ErrListenerStarted is returned when Run is called more than once on the same listener
	ErrListenerStarted = errors.New("listener already started")

	// ErrListenerNotRunning is returned when a listener is asked to do work outside its listening state
	ErrListenerNotRunning = errors.New("listener not running")

	errUnsupportedPlatform = errors.New("platform not supported")
)

// EnumerationError means the OS audio service could not list endpoints
type EnumerationError struct {
	Role Role
	Err  error
}

func (e *EnumerationError) Error() string {
	return fmt.Sprintf("enumerate %s endpoints: %v", e.Role, e.Err)
}

func (e *EnumerationError) Unwrap() error {
	return e.Err
}

// VisibilityToggleError means a specific endpoint rejected a visibility change
type VisibilityToggleError struct {
	Endpoint EndpointRef
	Visible  bool
	Err      error
}

func (e *VisibilityToggleError) Error() string {
	state := "hide"
	if e.Visible {
		state = "show"
	}

	return fmt.Sprintf("%s %s: %v", state, e.Endpoint, e.Err)
}

func (e *VisibilityToggleError) Unwrap() error {
	return e.Err
}

// DefaultAssignmentError means a specific endpoint rejected becoming the default
type DefaultAssignmentError struct {
	Endpoint EndpointRef
	Err      error
}

func (e *DefaultAssignmentError) Error() string {
	return fmt.Sprintf("set default %s: %v", e.Endpoint, e.Err)
}

func (e *DefaultAssignmentError) Unwrap() error {
	return e.Err
}

// HotkeyRegistrationError is fatal: the listener refuses to run with a partial hotkey set
type HotkeyRegistrationError struct {
	Binding Binding
	Target  string
	Err     error
}

func (e *HotkeyRegistrationError) Error() string {
	return fmt.Sprintf("register hotkey %s for %s: %v", e.Binding, e.Target, e.Err)
}

func (e *HotkeyRegistrationError) Unwrap() error {
	return e.Err
}

// SwitchError is the only error a profile switch reports to its caller.
// The underlying cause is logged where it happens and deliberately not exposed
type SwitchError struct {
	ProfileName string

	// RollbackIncomplete is set when restoring the pre-switch endpoints failed too
	RollbackIncomplete bool
}

func (e *SwitchError) Error() string {
	if e.RollbackIncomplete {
		return fmt.Sprintf("failed to activate profile %s (rollback incomplete)", e.ProfileName)
	}

	return fmt.Sprintf("failed to activate profile %s", e.ProfileName)
}
