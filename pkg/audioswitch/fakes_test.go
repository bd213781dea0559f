package audioswitch

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

var errInjected = errors.New("injected failure")

type policyCall struct {
	op      string
	id      string
	visible bool
}

func (c policyCall) String() string {
	if c.op == "visibility" {
		return fmt.Sprintf("%s(%s,%t)", c.op, c.id, c.visible)
	}

	return fmt.Sprintf("%s(%s)", c.op, c.id)
}

type fakeEndpoint struct {
	ref     EndpointRef
	visible bool
}

// fakeEndpoints simulates the OS endpoint state behind both EndpointDirectory and EndpointPolicy
type fakeEndpoints struct {
	mu sync.Mutex

	order     []string
	endpoints map[string]*fakeEndpoint
	defaults  map[Role]string
	calls     []policyCall

	failList    bool
	failShow    map[string]bool
	failHide    map[string]bool
	failDefault map[string]bool
	panicOn     string
}

func newFakeEndpoints() *fakeEndpoints {
	return &fakeEndpoints{
		endpoints:   map[string]*fakeEndpoint{},
		defaults:    map[Role]string{},
		failShow:    map[string]bool{},
		failHide:    map[string]bool{},
		failDefault: map[string]bool{},
	}
}

func (f *fakeEndpoints) add(id string, role Role, visible bool) EndpointRef {
	f.mu.Lock()
	defer f.mu.Unlock()

	ref := EndpointRef{ID: id, Name: "Device " + id, Role: role}
	f.order = append(f.order, id)
	f.endpoints[id] = &fakeEndpoint{ref: ref, visible: visible}

	return ref
}

func (f *fakeEndpoints) setDefault(role Role, id string) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.defaults[role] = id
}

func (f *fakeEndpoints) visibleIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	ids := []string{}
	for _, id := range f.order {
		if f.endpoints[id].visible {
			ids = append(ids, id)
		}
	}

	return ids
}

func (f *fakeEndpoints) defaultID(role Role) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.defaults[role]
}

func (f *fakeEndpoints) recorded() []policyCall {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]policyCall(nil), f.calls...)
}

func (f *fakeEndpoints) resetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = nil
}

func (f *fakeEndpoints) ListActive(role Role) ([]EndpointRef, error) {
	return f.list(role, false)
}

func (f *fakeEndpoints) ListAll(role Role) ([]EndpointRef, error) {
	return f.list(role, true)
}

func (f *fakeEndpoints) list(role Role, all bool) ([]EndpointRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failList {
		return nil, &EnumerationError{Role: role, Err: errInjected}
	}

	refs := []EndpointRef{}
	for _, id := range f.order {
		endpoint := f.endpoints[id]
		if endpoint.ref.Role == role && (all || endpoint.visible) {
			refs = append(refs, endpoint.ref)
		}
	}

	return refs, nil
}

func (f *fakeEndpoints) DefaultEndpoint(role Role) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.defaults[role], nil
}

func (f *fakeEndpoints) SetVisibility(endpoint EndpointRef, visible bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, policyCall{op: "visibility", id: endpoint.ID, visible: visible})

	if f.panicOn != "" && f.panicOn == endpoint.ID {
		panic("policy exploded")
	}

	if (visible && f.failShow[endpoint.ID]) || (!visible && f.failHide[endpoint.ID]) {
		return errInjected
	}

	state, ok := f.endpoints[endpoint.ID]
	if !ok {
		return fmt.Errorf("no endpoint %s", endpoint.ID)
	}
	state.visible = visible

	return nil
}

func (f *fakeEndpoints) SetDefault(endpoint EndpointRef) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls = append(f.calls, policyCall{op: "default", id: endpoint.ID})

	if f.failDefault[endpoint.ID] {
		return errInjected
	}

	state, ok := f.endpoints[endpoint.ID]
	if !ok || !state.visible {
		return fmt.Errorf("endpoint %s isn't visible", endpoint.ID)
	}
	f.defaults[state.ref.Role] = endpoint.ID

	return nil
}

// fakeSession hands out the same fakeEndpoints as directory and policy
type fakeSession struct {
	endpoints *fakeEndpoints

	mu     sync.Mutex
	closed bool
}

func (s *fakeSession) Directory() EndpointDirectory { return s.endpoints }
func (s *fakeSession) Policy() EndpointPolicy       { return s.endpoints }

func (s *fakeSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func (s *fakeSession) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.closed
}

func (s *fakeSession) opener() SessionOpener {
	return func(*zap.SugaredLogger) (AudioSession, error) {
		return s, nil
	}
}

// fakeRegistrar behaves like an OS hotkey facility: Post stands in for a key press
type fakeRegistrar struct {
	mu         sync.Mutex
	registered map[int]Binding
	rejectKey  string
	closed     bool

	triggers chan int
	quit     chan struct{}
	stopOnce sync.Once
}

func newFakeRegistrar() *fakeRegistrar {
	return &fakeRegistrar{
		registered: map[int]Binding{},
		triggers:   make(chan int, 16),
		quit:       make(chan struct{}),
	}
}

func (r *fakeRegistrar) opener() RegistrarOpener {
	return func(*zap.SugaredLogger) (HotkeyRegistrar, error) {
		return r, nil
	}
}

func (r *fakeRegistrar) Register(id int, binding Binding) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if binding.Key == r.rejectKey {
		return errors.New("hotkey already registered by another application")
	}

	r.registered[id] = binding

	return nil
}

func (r *fakeRegistrar) Run(handle func(id int)) error {
	for {
		select {
		case <-r.quit:
			return nil
		case id := <-r.triggers:
			handle(id)
		}
	}
}

func (r *fakeRegistrar) Post(id int) error {
	select {
	case r.triggers <- id:
		return nil
	case <-r.quit:
		return errors.New("stopped")
	}
}

func (r *fakeRegistrar) Stop() error {
	r.stopOnce.Do(func() {
		close(r.quit)
	})

	return nil
}

func (r *fakeRegistrar) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true
	r.registered = map[int]Binding{}

	return nil
}

func (r *fakeRegistrar) isClosed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.closed
}

func (r *fakeRegistrar) registeredCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.registered)
}

type notification struct {
	title   string
	message string
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []notification
}

func (n *fakeNotifier) Notify(title string, message string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.sent = append(n.sent, notification{title: title, message: message})
}

func (n *fakeNotifier) notifications() []notification {
	n.mu.Lock()
	defer n.mu.Unlock()

	return append([]notification(nil), n.sent...)
}

type fakeIcon struct {
	calls []string
	err   error
}

func (i *fakeIcon) ResetIcon() error {
	i.calls = append(i.calls, "reset")
	return i.err
}

func (i *fakeIcon) SetIconColor(hex string) error {
	i.calls = append(i.calls, hex)
	return i.err
}

type fakeListenerControl struct {
	requested []int
	err       error
}

func (l *fakeListenerControl) Request(index int) error {
	l.requested = append(l.requested, index)
	return l.err
}

func mustBinding(modifier string, key string) Binding {
	b, err := ParseBinding(modifier, key)
	if err != nil {
		panic(err)
	}

	return b
}
