package audioswitch

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/lxn/win"
	"go.uber.org/zap"
)

var (
	moduser32   = syscall.NewLazyDLL("user32.dll")
	modkernel32 = syscall.NewLazyDLL("kernel32.dll")

	procRegisterHotKey     = moduser32.NewProc("RegisterHotKey")
	procUnregisterHotKey   = moduser32.NewProc("UnregisterHotKey")
	procPostThreadMessage  = moduser32.NewProc("PostThreadMessageW")
	procGetCurrentThreadId = modkernel32.NewProc("GetCurrentThreadId")
)

const (
	WM_HOTKEY    = 0x0312
	WM_APP       = 0x8000
	MOD_NOREPEAT = 0x4000

	// synthetic trigger posted by Post, wParam carries the hotkey id like WM_HOTKEY does
	wmSwitchRequest = WM_APP + 1
)

// winHotkeyRegistrar registers thread hotkeys (hWnd == 0), so WM_HOTKEY lands in
// the message queue of the thread that created it
type winHotkeyRegistrar struct {
	logger   *zap.SugaredLogger
	threadID uintptr

	registered []int
}

func newHotkeyRegistrar(logger *zap.SugaredLogger) (HotkeyRegistrar, error) {
	threadID, _, _ := procGetCurrentThreadId.Call()

	// force the creation of this thread's message queue so early PostThreadMessage calls don't get lost
	var msg win.MSG
	win.PeekMessage(&msg, 0, win.WM_USER, win.WM_USER, win.PM_NOREMOVE)

	r := &winHotkeyRegistrar{
		logger:   logger.Named("hotkeys"),
		threadID: threadID,
	}

	r.logger.Debugw("Created hotkey registrar", "threadID", threadID)

	return r, nil
}

func (r *winHotkeyRegistrar) Register(id int, binding Binding) error {
	vk := binding.VirtualKey()
	if vk == 0 {
		return fmt.Errorf("%w: %q", ErrUnknownKey, binding.Key)
	}

	ret, _, callErr := procRegisterHotKey.Call(
		0,
		uintptr(id),
		uintptr(binding.Modifier)|MOD_NOREPEAT,
		uintptr(vk),
	)
	if ret == 0 {
		return fmt.Errorf("RegisterHotKey failed: %w", callErr)
	}

	r.registered = append(r.registered, id)

	return nil
}

func (r *winHotkeyRegistrar) Run(handle func(id int)) error {
	var msg win.MSG

	for {
		switch win.GetMessage(&msg, 0, 0, 0) {
		case 0:
			// WM_QUIT
			return nil
		case -1:
			return errors.New("GetMessage failed")
		}

		switch msg.Message {
		case WM_HOTKEY, wmSwitchRequest:
			handle(int(msg.WParam))
		default:
			win.TranslateMessage(&msg)
			win.DispatchMessage(&msg)
		}
	}
}

func (r *winHotkeyRegistrar) Post(id int) error {
	return r.post(wmSwitchRequest, uintptr(id))
}

func (r *winHotkeyRegistrar) Stop() error {
	return r.post(win.WM_QUIT, 0)
}

func (r *winHotkeyRegistrar) post(message uint32, wParam uintptr) error {
	ret, _, callErr := procPostThreadMessage.Call(r.threadID, uintptr(message), wParam, 0)
	if ret == 0 {
		return fmt.Errorf("PostThreadMessage failed: %w", callErr)
	}

	return nil
}

func (r *winHotkeyRegistrar) Close() error {
	var failed []int

	for _, id := range r.registered {
		if ret, _, _ := procUnregisterHotKey.Call(0, uintptr(id)); ret == 0 {
			failed = append(failed, id)
		}
	}
	r.registered = nil

	if len(failed) > 0 {
		return fmt.Errorf("unregister hotkeys %v", failed)
	}

	r.logger.Debug("Unregistered all hotkeys")

	return nil
}
