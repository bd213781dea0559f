package audioswitch

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type listenerFixture struct {
	endpoints *fakeEndpoints
	session   *fakeSession
	registrar *fakeRegistrar
	bridge    *EventBridge
	listener  *Listener
	profiles  []Profile

	runErr chan error
}

// three profiles: A (desk), B (headset), C (desk mic + headphones)
func newListenerFixture(t *testing.T, configure func(opts *ListenerOptions)) *listenerFixture {
	t.Helper()

	f, desk, headset := newDeskAndHeadset()
	mixed := Profile{
		ID:     3,
		Name:   "Mixed",
		Input:  desk.Input,
		Output: headset.Output,
		Hotkey: mustBinding("CTRL", "3"),
	}
	desk.Name = "A"
	headset.Name = "B"
	mixed.Name = "C"

	logger := zaptest.NewLogger(t).Sugar()

	fx := &listenerFixture{
		endpoints: f,
		session:   &fakeSession{endpoints: f},
		registrar: newFakeRegistrar(),
		bridge:    NewEventBridge(logger),
		profiles:  []Profile{desk, headset, mixed},
		runErr:    make(chan error, 1),
	}

	opts := ListenerOptions{
		Profiles:      fx.profiles,
		Bridge:        fx.bridge,
		OpenSession:   fx.session.opener(),
		OpenRegistrar: fx.registrar.opener(),
	}

	if configure != nil {
		configure(&opts)
	}

	listener, err := NewListener(logger, opts)
	require.NoError(t, err)
	fx.listener = listener

	return fx
}

func (fx *listenerFixture) start() {
	go func() {
		fx.runErr <- fx.listener.Run()
	}()
}

func (fx *listenerFixture) waitListening(t *testing.T) {
	t.Helper()

	select {
	case <-fx.listener.Listening():
	case <-time.After(5 * time.Second):
		t.Fatal("listener never started listening")
	}
}

func (fx *listenerFixture) press(t *testing.T, id int) Event {
	t.Helper()

	require.NoError(t, fx.registrar.Post(id))

	ev, err := receiveWithin(t, fx.bridge, 5*time.Second)
	require.NoError(t, err)

	return ev
}

func (fx *listenerFixture) stop(t *testing.T) error {
	t.Helper()

	require.NoError(t, fx.listener.Stop())

	select {
	case err := <-fx.runErr:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("listener didn't stop")
		return nil
	}
}

func (fx *listenerFixture) waitRunErr(t *testing.T) error {
	t.Helper()

	select {
	case err := <-fx.runErr:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("listener didn't return")
		return nil
	}
}

func TestListenerSwitchesOnHotkeys(t *testing.T) {
	fx := newListenerFixture(t, nil)
	fx.start()
	fx.waitListening(t)

	assert.Equal(t, StateListening, fx.listener.State())
	assert.Equal(t, 3, fx.registrar.registeredCount())

	ev := fx.press(t, 2)
	assert.Equal(t, EventActivated, ev.Kind)
	assert.Equal(t, "B", ev.Outcome.ProfileName)
	assert.Equal(t, "#FF0000", ev.Outcome.Color)
	assert.NotEmpty(t, ev.Outcome.AttemptID)
	assert.ElementsMatch(t, []string{"headset-mic", "headphones"}, fx.endpoints.visibleIDs())

	ev = fx.press(t, 1)
	assert.Equal(t, EventActivated, ev.Kind)
	assert.Equal(t, "A", ev.Outcome.ProfileName)
	assert.Empty(t, ev.Outcome.Color)
	assert.ElementsMatch(t, []string{"desk-mic", "speakers"}, fx.endpoints.visibleIDs())

	require.NoError(t, fx.stop(t))

	assert.Equal(t, StateTerminated, fx.listener.State())
	assert.True(t, fx.registrar.isClosed())
	assert.True(t, fx.session.isClosed())
}

func TestListenerReportsFailedSwitch(t *testing.T) {
	fx := newListenerFixture(t, nil)
	fx.endpoints.failDefault["headphones"] = true

	fx.start()
	fx.waitListening(t)

	ev := fx.press(t, 2)
	assert.Equal(t, EventFailed, ev.Kind)
	assert.Equal(t, "B", ev.Outcome.ProfileName)
	assert.False(t, ev.Outcome.RollbackIncomplete)
	assert.Equal(t, []string{"desk-mic", "speakers"}, fx.endpoints.visibleIDs())

	// the listener keeps going after a failed switch
	ev = fx.press(t, 1)
	assert.Equal(t, EventActivated, ev.Kind)

	require.NoError(t, fx.stop(t))
}

func TestListenerRejectsDuplicateBindings(t *testing.T) {
	fx := newListenerFixture(t, func(opts *ListenerOptions) {
		opts.Profiles[2].Hotkey = opts.Profiles[0].Hotkey
	})

	fx.start()
	err := fx.waitRunErr(t)

	registrationErr := &HotkeyRegistrationError{}
	require.True(t, errors.As(err, &registrationErr))
	assert.True(t, errors.Is(err, ErrDuplicateBinding))
	assert.Equal(t, "profile C", registrationErr.Target)

	assert.Equal(t, StateTerminated, fx.listener.State())
	assert.Equal(t, 0, fx.registrar.registeredCount())
	assert.True(t, fx.registrar.isClosed())
	assert.True(t, fx.session.isClosed())
}

func TestListenerRejectsDuplicateNavigationBinding(t *testing.T) {
	next := mustBinding("CTRL", "2")

	fx := newListenerFixture(t, func(opts *ListenerOptions) {
		opts.NextProfile = &next
	})

	fx.start()
	err := fx.waitRunErr(t)

	assert.True(t, errors.Is(err, ErrDuplicateBinding))
	assert.Equal(t, StateTerminated, fx.listener.State())
}

func TestListenerFailsWhenOSRejectsHotkey(t *testing.T) {
	fx := newListenerFixture(t, nil)
	fx.registrar.rejectKey = "2"

	fx.start()
	err := fx.waitRunErr(t)

	registrationErr := &HotkeyRegistrationError{}
	require.True(t, errors.As(err, &registrationErr))
	assert.Equal(t, "CTRL+2", registrationErr.Binding.String())
	assert.Equal(t, "profile B", registrationErr.Target)

	assert.Equal(t, StateTerminated, fx.listener.State())
	assert.True(t, fx.registrar.isClosed())

	select {
	case <-fx.listener.Listening():
		t.Fatal("listener reported listening despite a registration failure")
	default:
	}
}

func TestListenerRunOnlyOnce(t *testing.T) {
	fx := newListenerFixture(t, nil)
	fx.start()
	fx.waitListening(t)

	assert.True(t, errors.Is(fx.listener.Run(), ErrListenerStarted))

	require.NoError(t, fx.stop(t))
}

func TestListenerNextAndPrevious(t *testing.T) {
	next := mustBinding("CTRL", "RIGHT")
	previous := mustBinding("CTRL", "LEFT")

	fx := newListenerFixture(t, func(opts *ListenerOptions) {
		opts.NextProfile = &next
		opts.PreviousProfile = &previous
		opts.ActiveProfile = "A"
	})

	fx.start()
	fx.waitListening(t)

	// ids 4 and 5 follow the three profiles
	assert.Equal(t, 5, fx.registrar.registeredCount())

	assert.Equal(t, "B", fx.press(t, 4).Outcome.ProfileName)
	assert.Equal(t, "C", fx.press(t, 4).Outcome.ProfileName)
	assert.Equal(t, "A", fx.press(t, 4).Outcome.ProfileName)
	assert.Equal(t, "C", fx.press(t, 5).Outcome.ProfileName)
	assert.Equal(t, "B", fx.press(t, 5).Outcome.ProfileName)

	require.NoError(t, fx.stop(t))
}

func TestListenerPreviousWithoutActiveProfile(t *testing.T) {
	previous := mustBinding("CTRL", "LEFT")

	fx := newListenerFixture(t, func(opts *ListenerOptions) {
		opts.PreviousProfile = &previous
	})

	fx.start()
	fx.waitListening(t)

	assert.Equal(t, "C", fx.press(t, 4).Outcome.ProfileName)

	require.NoError(t, fx.stop(t))
}

func TestListenerRequest(t *testing.T) {
	fx := newListenerFixture(t, nil)

	assert.True(t, errors.Is(fx.listener.Request(0), ErrListenerNotRunning))

	fx.start()
	fx.waitListening(t)

	assert.Error(t, fx.listener.Request(3))
	assert.Error(t, fx.listener.Request(-1))

	require.NoError(t, fx.listener.Request(1))

	ev, err := receiveWithin(t, fx.bridge, 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "B", ev.Outcome.ProfileName)

	require.NoError(t, fx.stop(t))

	assert.True(t, errors.Is(fx.listener.Request(0), ErrListenerNotRunning))
}

func TestListenerStopBeforeRun(t *testing.T) {
	fx := newListenerFixture(t, nil)

	require.NoError(t, fx.listener.Stop())
	fx.start()

	require.NoError(t, fx.waitRunErr(t))
	assert.Equal(t, StateTerminated, fx.listener.State())
	assert.True(t, fx.registrar.isClosed())
	assert.True(t, fx.session.isClosed())
}

func TestListenerStateSequence(t *testing.T) {
	fx := newListenerFixture(t, nil)

	var mu sync.Mutex
	states := []ListenerState{}
	fx.listener.stateObserver = func(s ListenerState) {
		mu.Lock()
		defer mu.Unlock()
		states = append(states, s)
	}

	fx.start()
	fx.waitListening(t)
	require.NoError(t, fx.stop(t))

	mu.Lock()
	defer mu.Unlock()

	assert.Equal(t, []ListenerState{StateRegistering, StateListening, StateShuttingDown, StateTerminated}, states)
}

func TestListenerTearsDownOnPanic(t *testing.T) {
	fx := newListenerFixture(t, nil)
	fx.endpoints.panicOn = "desk-mic"

	recovered := make(chan interface{}, 1)
	go func() {
		defer func() {
			recovered <- recover()
		}()
		fx.listener.Run()
	}()

	fx.waitListening(t)
	require.NoError(t, fx.registrar.Post(2))

	select {
	case r := <-recovered:
		assert.Equal(t, "policy exploded", r)
	case <-time.After(5 * time.Second):
		t.Fatal("panic never surfaced")
	}

	assert.Equal(t, StateTerminated, fx.listener.State())
	assert.True(t, fx.registrar.isClosed())
	assert.True(t, fx.session.isClosed())

	select {
	case <-fx.listener.Done():
	default:
		t.Fatal("done wasn't closed")
	}
}

func TestNewListenerRequiresBridge(t *testing.T) {
	_, err := NewListener(zaptest.NewLogger(t).Sugar(), ListenerOptions{})
	assert.Error(t, err)
}
