package audioswitch

import (
	"fmt"
	"runtime"

	"go.uber.org/zap"
)

// EndpointDirectory is a read-only view of the OS audio endpoints.
// Implementations must only be used on the thread that opened their AudioSession
type EndpointDirectory interface {
	// ListActive returns the endpoints of a role that are currently visible
	ListActive(role Role) ([]EndpointRef, error)

	// ListAll returns every endpoint of a role, including hidden ones
	ListAll(role Role) ([]EndpointRef, error)

	// DefaultEndpoint returns the ID of the current default endpoint of a role,
	// or an empty string if there is none
	DefaultEndpoint(role Role) (string, error)
}

// EndpointPolicy performs the OS calls that change endpoint state
type EndpointPolicy interface {
	SetVisibility(endpoint EndpointRef, visible bool) error

	// SetDefault makes the endpoint the default for the console usage context
	SetDefault(endpoint EndpointRef) error
}

// AudioSession is a thread-affine handle to the OS audio subsystem.
// It must be opened, used and closed on the same locked OS thread
type AudioSession interface {
	Directory() EndpointDirectory
	Policy() EndpointPolicy
	Close() error
}

// SessionOpener opens an AudioSession on the calling thread
type SessionOpener func(logger *zap.SugaredLogger) (AudioSession, error)

// ListEndpoints opens a short-lived session on a locked thread and lists
// the endpoints of both roles
func ListEndpoints(logger *zap.SugaredLogger, includeHidden bool) ([]EndpointRef, error) {
	return listEndpoints(logger, newAudioSession, includeHidden)
}

func listEndpoints(logger *zap.SugaredLogger, open SessionOpener, includeHidden bool) ([]EndpointRef, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	session, err := open(logger)
	if err != nil {
		return nil, fmt.Errorf("open audio session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warnw("Failed to close audio session", "error", err)
		}
	}()

	directory := session.Directory()
	endpoints := []EndpointRef{}

	for _, role := range roles {
		var found []EndpointRef
		if includeHidden {
			found, err = directory.ListAll(role)
		} else {
			found, err = directory.ListActive(role)
		}

		if err != nil {
			return nil, err
		}

		endpoints = append(endpoints, found...)
	}

	return endpoints, nil
}

// SwitchOnce runs a single profile switch on the calling goroutine, inside its own
// scoped audio session. It's meant for one-shot command line use
func SwitchOnce(logger *zap.SugaredLogger, profile Profile) error {
	return switchOnce(logger, newAudioSession, profile)
}

func switchOnce(logger *zap.SugaredLogger, open SessionOpener, profile Profile) error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	session, err := open(logger)
	if err != nil {
		return fmt.Errorf("open audio session: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warnw("Failed to close audio session", "error", err)
		}
	}()

	controller := NewSwitchController(logger, session.Directory(), session.Policy())

	return controller.SwitchTo(profile)
}
