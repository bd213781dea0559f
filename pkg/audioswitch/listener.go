package audioswitch

import (
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ListenerState is a stage of the listener's lifecycle
type ListenerState int32

const (
	StateUninitialized ListenerState = iota
	StateRegistering
	StateListening
	StateShuttingDown
	StateTerminated
)

func (s ListenerState) String() string {
	switch s {
	case StateUninitialized:
		return "Uninitialized"
	case StateRegistering:
		return "Registering"
	case StateListening:
		return "Listening"
	case StateShuttingDown:
		return "ShuttingDown"
	case StateTerminated:
		return "Terminated"
	default:
		return fmt.Sprintf("ListenerState(%d)", int32(s))
	}
}

// HotkeyRegistrar is the OS hotkey facility. Register, Run and Close are called on the
// listener's locked thread; Post and Stop may be called from any goroutine
type HotkeyRegistrar interface {
	Register(id int, binding Binding) error

	// Run services the OS hotkey loop, calling handle for every triggered id, until Stop
	Run(handle func(id int)) error

	// Post injects a trigger for id into the loop as if its hotkey was pressed
	Post(id int) error

	Stop() error

	// Close unregisters every hotkey
	Close() error
}

// RegistrarOpener creates a HotkeyRegistrar bound to the calling thread
type RegistrarOpener func(logger *zap.SugaredLogger) (HotkeyRegistrar, error)

type dispatchKind int

const (
	dispatchProfile dispatchKind = iota
	dispatchNext
	dispatchPrevious
)

// dispatchEntry is what a registered hotkey id resolves to. Entries only hold
// indices into the listener's immutable profile table
type dispatchEntry struct {
	kind         dispatchKind
	profileIndex int
	binding      Binding
}

func (e dispatchEntry) target(profiles []Profile) string {
	switch e.kind {
	case dispatchNext:
		return "next profile"
	case dispatchPrevious:
		return "previous profile"
	default:
		return fmt.Sprintf("profile %s", profiles[e.profileIndex].Name)
	}
}

// ListenerOptions configures a Listener
type ListenerOptions struct {
	Profiles        []Profile
	NextProfile     *Binding
	PreviousProfile *Binding

	// ActiveProfile is the name of the profile considered active at start-up, used by next/previous
	ActiveProfile string

	Bridge *EventBridge

	// OpenSession and OpenRegistrar default to the platform implementations
	OpenSession   SessionOpener
	OpenRegistrar RegistrarOpener
}

// Listener owns the dedicated hotkey thread. Every triggered hotkey runs a profile switch
// to completion on that thread and pushes the outcome onto the event bridge
type Listener struct {
	logger *zap.SugaredLogger

	profiles []Profile
	next     *Binding
	previous *Binding
	bridge   *EventBridge

	openSession   SessionOpener
	openRegistrar RegistrarOpener

	state         int32
	stateObserver func(ListenerState)

	// only touched on the listener thread
	current int

	registrarLock sync.Mutex
	registrar     HotkeyRegistrar
	stopRequested bool

	listening chan struct{}
	done      chan struct{}
}

// NewListener creates a listener for an immutable copy of the given profiles
func NewListener(logger *zap.SugaredLogger, opts ListenerOptions) (*Listener, error) {
	logger = logger.Named("listener")

	if opts.Bridge == nil {
		return nil, errors.New("listener requires an event bridge")
	}

	l := &Listener{
		logger:        logger,
		profiles:      append([]Profile(nil), opts.Profiles...),
		next:          copyBinding(opts.NextProfile),
		previous:      copyBinding(opts.PreviousProfile),
		bridge:        opts.Bridge,
		openSession:   opts.OpenSession,
		openRegistrar: opts.OpenRegistrar,
		current:       -1,
		listening:     make(chan struct{}),
		done:          make(chan struct{}),
	}

	if l.openSession == nil {
		l.openSession = newAudioSession
	}

	if l.openRegistrar == nil {
		l.openRegistrar = newHotkeyRegistrar
	}

	for idx, profile := range l.profiles {
		if profile.Name == opts.ActiveProfile && opts.ActiveProfile != "" {
			l.current = idx
			break
		}
	}

	logger.Debugw("Created listener instance", "profiles", len(l.profiles), "activeProfile", opts.ActiveProfile)

	return l, nil
}

func copyBinding(b *Binding) *Binding {
	if b == nil || b.IsZero() {
		return nil
	}

	c := *b
	return &c
}

// State returns the current lifecycle state
func (l *Listener) State() ListenerState {
	return ListenerState(atomic.LoadInt32(&l.state))
}

func (l *Listener) setState(s ListenerState) {
	atomic.StoreInt32(&l.state, int32(s))
	l.logger.Debugw("Listener state changed", "state", s)

	if l.stateObserver != nil {
		l.stateObserver(s)
	}
}

// Listening is closed once every hotkey is registered and the loop is about to run
func (l *Listener) Listening() <-chan struct{} {
	return l.listening
}

// Done is closed when Run returns
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// Run locks the calling goroutine to its OS thread, opens the audio session, registers
// every binding and blocks servicing the hotkey loop until Stop is called.
// A registration failure is returned as a *HotkeyRegistrationError and must be treated as fatal
func (l *Listener) Run() (err error) {
	if !atomic.CompareAndSwapInt32(&l.state, int32(StateUninitialized), int32(StateRegistering)) {
		return ErrListenerStarted
	}
	l.setState(StateRegistering)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(l.done)

	session, err := l.openSession(l.logger)
	if err != nil {
		l.logger.Errorw("Failed to open audio session", "error", err)
		l.setState(StateTerminated)
		return fmt.Errorf("open audio session: %w", err)
	}

	registrar, err := l.openRegistrar(l.logger)
	if err != nil {
		l.logger.Errorw("Failed to create hotkey registrar", "error", err)
		l.closeSession(session)
		l.setState(StateTerminated)
		return fmt.Errorf("create hotkey registrar: %w", err)
	}

	// scope guard: runs on every exit path, panics included
	defer l.teardown(session, registrar)

	table, err := l.buildDispatchTable()
	if err != nil {
		l.logger.Errorw("Refusing to register hotkeys", "error", err)
		return err
	}

	if err := l.registerAll(registrar, table); err != nil {
		l.logger.Errorw("Failed to register hotkeys", "error", err)
		return err
	}

	controller := NewSwitchController(l.logger, session.Directory(), session.Policy())

	l.registrarLock.Lock()
	l.registrar = registrar
	stopRequested := l.stopRequested
	l.registrarLock.Unlock()

	l.setState(StateListening)
	close(l.listening)

	if stopRequested {
		l.logger.Debug("Stop requested during registration, skipping hotkey loop")
		return nil
	}

	l.logger.Infow("Listening for hotkeys", "bindings", len(table))

	if err := registrar.Run(func(id int) {
		l.dispatch(controller, table, id)
	}); err != nil {
		l.logger.Warnw("Hotkey loop exited with error", "error", err)
		return fmt.Errorf("run hotkey loop: %w", err)
	}

	return nil
}

func (l *Listener) teardown(session AudioSession, registrar HotkeyRegistrar) {
	if l.State() == StateListening {
		l.setState(StateShuttingDown)
	}

	l.registrarLock.Lock()
	l.registrar = nil
	l.registrarLock.Unlock()

	if err := registrar.Close(); err != nil {
		l.logger.Warnw("Failed to unregister hotkeys", "error", err)
	}

	l.closeSession(session)
	l.setState(StateTerminated)
}

func (l *Listener) closeSession(session AudioSession) {
	if err := session.Close(); err != nil {
		l.logger.Warnw("Failed to close audio session", "error", err)
	}
}

// buildDispatchTable assigns every binding an id and rejects duplicate key combinations
func (l *Listener) buildDispatchTable() (map[int]dispatchEntry, error) {
	entries := make([]dispatchEntry, 0, len(l.profiles)+2)

	for idx, profile := range l.profiles {
		entries = append(entries, dispatchEntry{kind: dispatchProfile, profileIndex: idx, binding: profile.Hotkey})
	}

	if l.next != nil {
		entries = append(entries, dispatchEntry{kind: dispatchNext, binding: *l.next})
	}

	if l.previous != nil {
		entries = append(entries, dispatchEntry{kind: dispatchPrevious, binding: *l.previous})
	}

	table := make(map[int]dispatchEntry, len(entries))

	for i, entry := range entries {
		for j := 0; j < i; j++ {
			if entries[j].binding.Equal(entry.binding) {
				return nil, &HotkeyRegistrationError{
					Binding: entry.binding,
					Target:  entry.target(l.profiles),
					Err:     fmt.Errorf("%w: already bound to %s", ErrDuplicateBinding, entries[j].target(l.profiles)),
				}
			}
		}

		// profile ids are index+1 so Request can address them directly
		table[i+1] = entry
	}

	return table, nil
}

func (l *Listener) registerAll(registrar HotkeyRegistrar, table map[int]dispatchEntry) error {
	for id := 1; id <= len(table); id++ {
		entry := table[id]

		if err := registrar.Register(id, entry.binding); err != nil {
			return &HotkeyRegistrationError{
				Binding: entry.binding,
				Target:  entry.target(l.profiles),
				Err:     err,
			}
		}

		l.logger.Debugw("Registered hotkey", "id", id, "binding", entry.binding, "target", entry.target(l.profiles))
	}

	return nil
}

func (l *Listener) dispatch(controller *SwitchController, table map[int]dispatchEntry, id int) {
	entry, ok := table[id]
	if !ok {
		l.logger.Warnw("Received trigger for unknown hotkey id", "id", id)
		return
	}

	index, ok := l.resolve(entry)
	if !ok {
		l.logger.Debugw("No profile to switch to", "binding", entry.binding)
		return
	}

	profile := l.profiles[index]
	attemptID := uuid.NewString()

	l.logger.Infow("Hotkey triggered", "binding", entry.binding, "profile", profile.Name, "attempt", attemptID)

	err := controller.SwitchTo(profile)
	if err == nil {
		l.current = index
	}

	if err := l.bridge.Send(outcomeEvent(profile, attemptID, err)); err != nil {
		l.logger.Warnw("Failed to send switch outcome", "profile", profile.Name, "attempt", attemptID, "error", err)
	}
}

func (l *Listener) resolve(entry dispatchEntry) (int, bool) {
	count := len(l.profiles)
	if count == 0 {
		return 0, false
	}

	switch entry.kind {
	case dispatchNext:
		return (l.current + 1) % count, true
	case dispatchPrevious:
		if l.current < 0 {
			return count - 1, true
		}
		return (l.current - 1 + count) % count, true
	default:
		return entry.profileIndex, true
	}
}

// Request asks the listener thread to switch to the profile at index, as if its hotkey was pressed
func (l *Listener) Request(index int) error {
	if index < 0 || index >= len(l.profiles) {
		return fmt.Errorf("profile index out of range: %d", index)
	}

	l.registrarLock.Lock()
	registrar := l.registrar
	l.registrarLock.Unlock()

	if registrar == nil || l.State() != StateListening {
		return ErrListenerNotRunning
	}

	if err := registrar.Post(index + 1); err != nil {
		return fmt.Errorf("post switch request: %w", err)
	}

	return nil
}

// Stop makes Run return. It's safe to call before Run, in which case the loop never starts
func (l *Listener) Stop() error {
	l.registrarLock.Lock()
	l.stopRequested = true
	registrar := l.registrar
	l.registrarLock.Unlock()

	if registrar == nil {
		return nil
	}

	l.logger.Debug("Stopping hotkey loop")

	if err := registrar.Stop(); err != nil {
		return fmt.Errorf("stop hotkey loop: %w", err)
	}

	return nil
}
