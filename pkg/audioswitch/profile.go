package audioswitch

import (
	"fmt"
)

// Role tags an endpoint with its data-flow direction
type Role int

const (
	// RoleOutput is a render endpoint (speakers, headphones)
	RoleOutput Role = iota

	// RoleInput is a capture endpoint (microphones)
	RoleInput
)

var roles = []Role{RoleInput, RoleOutput}

func (r Role) String() string {
	switch r {
	case RoleOutput:
		return "Output"
	case RoleInput:
		return "Input"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// EndpointRef references a single audio endpoint. ID is the opaque identifier
// assigned by the OS and is passed back to it untouched; Name is only used for
// display purposes
type EndpointRef struct {
	ID   string
	Name string
	Role Role
}

func (e EndpointRef) String() string {
	if e.Name == "" {
		return fmt.Sprintf("<%s endpoint: %s>", e.Role, e.ID)
	}

	return fmt.Sprintf("<%s endpoint: %s>", e.Role, e.Name)
}

// Profile binds a hotkey to a pair of input/output endpoints.
// Profiles are loaded once and never mutated by the engine
type Profile struct {
	ID     uint64
	Name   string
	Input  EndpointRef
	Output EndpointRef
	Hotkey Binding

	// Color is an optional "#RRGGBB" tray color, empty when unset
	Color string
}

// HasColor reports whether the profile recolors the tray icon when activated
func (p Profile) HasColor() bool {
	return p.Color != ""
}

func (p Profile) String() string {
	return fmt.Sprintf("Profile %s:\nInput Device: %s\nOutput Device: %s\nHotkey: %s\n",
		p.Name, p.Input.Name, p.Output.Name, p.Hotkey)
}
