package audioswitch

import (
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.design/x/hotkey"
)

var errRegistrarStopped = errors.New("hotkey registrar stopped")

var x11Modifiers = map[Modifier]hotkey.Modifier{
	ModCtrl:  hotkey.ModCtrl,
	ModShift: hotkey.ModShift,
	ModAlt:   hotkey.Mod1,
	ModWin:   hotkey.Mod4,
}

// x11Keysyms covers the keys that have an X11 keysym; digits and letters are added in init
var x11Keysyms = map[string]uint16{
	"BACKSPACE": 0xff08,
	"TAB":       0xff09,
	"CLEAR":     0xff0b,
	"RETURN":    0xff0d,
	"PAUSE":     0xff13,
	"SCROLL":    0xff14,
	"ESC":       0xff1b,
	"HOME":      0xff50,
	"LEFT":      0xff51,
	"UP":        0xff52,
	"RIGHT":     0xff53,
	"DOWN":      0xff54,
	"PRIOR":     0xff55,
	"NEXT":      0xff56,
	"END":       0xff57,
	"SELECT":    0xff60,
	"PRINT":     0xff61,
	"EXECUTE":   0xff62,
	"INSERT":    0xff63,
	"HELP":      0xff6a,
	"APPS":      0xff67,
	"NUMLOCK":   0xff7f,
	"CAPITAL":   0xffe5,
	"DELETE":    0xffff,
	"SPACE":     0x0020,

	"NUMPADMULTIPLY":  0xffaa,
	"NUMPADADD":       0xffab,
	"NUMPADSEPARATOR": 0xffac,
	"NUMPADSUBTRACT":  0xffad,
	"NUMPADDECIMAL":   0xffae,
	"NUMPADDIVIDE":    0xffaf,

	";":  0x003b,
	"+":  0x002b,
	",":  0x002c,
	"-":  0x002d,
	".":  0x002e,
	"/":  0x002f,
	"`":  0x0060,
	"[":  0x005b,
	"\\": 0x005c,
	"]":  0x005d,
	"'":  0x0027,
}

func init() {
	for c := '0'; c <= '9'; c++ {
		x11Keysyms[string(c)] = uint16(c)
	}

	// X11 grabs the lowercase keysym
	for c := 'A'; c <= 'Z'; c++ {
		x11Keysyms[string(c)] = uint16(c - 'A' + 'a')
	}

	for i := 0; i <= 9; i++ {
		x11Keysyms[fmt.Sprintf("NUMPAD%d", i)] = 0xffb0 + uint16(i)
	}

	for i := 1; i <= 24; i++ {
		x11Keysyms[fmt.Sprintf("F%d", i)] = 0xffbe + uint16(i-1)
	}
}

// x11HotkeyRegistrar fans the per-hotkey keydown channels into one queue that Run
// drains serially, so switches never overlap
type x11HotkeyRegistrar struct {
	logger *zap.SugaredLogger

	hotkeys  map[int]*hotkey.Hotkey
	triggers chan int
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func newHotkeyRegistrar(logger *zap.SugaredLogger) (HotkeyRegistrar, error) {
	r := &x11HotkeyRegistrar{
		logger:   logger.Named("hotkeys"),
		hotkeys:  make(map[int]*hotkey.Hotkey),
		triggers: make(chan int, 16),
		quit:     make(chan struct{}),
	}

	r.logger.Debug("Created hotkey registrar")

	return r, nil
}

func (r *x11HotkeyRegistrar) Register(id int, binding Binding) error {
	keysym, ok := x11Keysyms[binding.Key]
	if !ok {
		return fmt.Errorf("%w: %q has no X11 keysym", ErrUnknownKey, binding.Key)
	}

	mods := []hotkey.Modifier{}
	if binding.Modifier != ModNone {
		mod, ok := x11Modifiers[binding.Modifier]
		if !ok {
			return fmt.Errorf("%w: %s", ErrUnknownModifier, binding.Modifier)
		}
		mods = append(mods, mod)
	}

	hk := hotkey.New(mods, hotkey.Key(keysym))
	if err := hk.Register(); err != nil {
		return fmt.Errorf("grab key: %w", err)
	}

	r.hotkeys[id] = hk

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()

		for {
			select {
			case <-r.quit:
				return
			case <-hk.Keydown():
				select {
				case r.triggers <- id:
				case <-r.quit:
					return
				}
			}
		}
	}()

	return nil
}

func (r *x11HotkeyRegistrar) Run(handle func(id int)) error {
	for {
		select {
		case <-r.quit:
			return nil
		case id := <-r.triggers:
			handle(id)
		}
	}
}

func (r *x11HotkeyRegistrar) Post(id int) error {
	select {
	case r.triggers <- id:
		return nil
	case <-r.quit:
		return errRegistrarStopped
	}
}

func (r *x11HotkeyRegistrar) Stop() error {
	r.stopOnce.Do(func() {
		close(r.quit)
	})

	return nil
}

func (r *x11HotkeyRegistrar) Close() error {
	r.Stop()
	r.wg.Wait()

	var errs []error
	for id, hk := range r.hotkeys {
		if err := hk.Unregister(); err != nil {
			errs = append(errs, fmt.Errorf("unregister hotkey %d: %w", id, err))
		}
	}
	r.hotkeys = map[int]*hotkey.Hotkey{}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	r.logger.Debug("Unregistered all hotkeys")

	return nil
}
