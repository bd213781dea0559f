package audioswitch

import (
	"errors"
	"fmt"
	"strings"
)

// Modifier is an optional hotkey modifier. The values match the Win32 MOD_* flags
type Modifier uint32

const (
	ModNone  Modifier = 0x0
	ModAlt   Modifier = 0x1
	ModCtrl  Modifier = 0x2
	ModShift Modifier = 0x4
	ModWin   Modifier = 0x8
)

var (
	// ErrUnknownKey is returned when a binding names a key outside the key table
	ErrUnknownKey = errors.New("unknown key")

	// ErrUnknownModifier is returned when a binding names a modifier outside the modifier set
	ErrUnknownModifier = errors.New("unknown modifier")
)

var modifierNames = map[string]Modifier{
	"ALT":     ModAlt,
	"CTRL":    ModCtrl,
	"CONTROL": ModCtrl,
	"SHIFT":   ModShift,
	"WIN":     ModWin,
	"WINDOWS": ModWin,
	"META":    ModWin,
}

func (m Modifier) String() string {
	switch m {
	case ModNone:
		return ""
	case ModAlt:
		return "ALT"
	case ModCtrl:
		return "CTRL"
	case ModShift:
		return "SHIFT"
	case ModWin:
		return "WIN"
	default:
		return fmt.Sprintf("MOD(0x%x)", uint32(m))
	}
}

// keyTable maps canonical key names to Windows virtual key codes
var keyTable = map[string]uint32{
	"BACKSPACE": 0x08,
	"TAB":       0x09,
	"CLEAR":     0x0C,
	"RETURN":    0x0D,
	"PAUSE":     0x13,
	"CAPITAL":   0x14,
	"ESC":       0x1B,
	"SPACE":     0x20,
	"PRIOR":     0x21,
	"NEXT":      0x22,
	"END":       0x23,
	"HOME":      0x24,
	"LEFT":      0x25,
	"UP":        0x26,
	"RIGHT":     0x27,
	"DOWN":      0x28,
	"SELECT":    0x29,
	"PRINT":     0x2A,
	"EXECUTE":   0x2B,
	"SNAPSHOT":  0x2C,
	"INSERT":    0x2D,
	"DELETE":    0x2E,
	"HELP":      0x2F,
	"APPS":      0x5D,
	"SLEEP":     0x5F,

	"NUMPADMULTIPLY":  0x6A,
	"NUMPADADD":       0x6B,
	"NUMPADSEPARATOR": 0x6C,
	"NUMPADSUBTRACT":  0x6D,
	"NUMPADDECIMAL":   0x6E,
	"NUMPADDIVIDE":    0x6F,

	"NUMLOCK": 0x90,
	"SCROLL":  0x91,

	"BROWSER_BACK":      0xA6,
	"BROWSER_FORWARD":   0xA7,
	"BROWSER_REFRESH":   0xA8,
	"BROWSER_STOP":      0xA9,
	"BROWSER_SEARCH":    0xAA,
	"BROWSER_FAVORITES": 0xAB,
	"BROWSER_HOME":      0xAC,

	"VOLUME_MUTE":         0xAD,
	"VOLUME_DOWN":         0xAE,
	"VOLUME_UP":           0xAF,
	"MEDIA_NEXT_TRACK":    0xB0,
	"MEDIA_PREV_TRACK":    0xB1,
	"MEDIA_STOP":          0xB2,
	"MEDIA_PLAY_PAUSE":    0xB3,
	"LAUNCH_MAIL":         0xB4,
	"LAUNCH_MEDIA_SELECT": 0xB5,
	"LAUNCH_APP1":         0xB6,
	"LAUNCH_APP2":         0xB7,

	";":  0xBA,
	"+":  0xBB,
	",":  0xBC,
	"-":  0xBD,
	".":  0xBE,
	"/":  0xBF,
	"`":  0xC0,
	"[":  0xDB,
	"\\": 0xDC,
	"]":  0xDD,
	"'":  0xDE,

	"ATTN":  0xF6,
	"CRSEL": 0xF7,
	"EXSEL": 0xF8,
	"PLAY":  0xFA,
	"ZOOM":  0xFB,
}

// keyAliases resolves alternative spellings to their canonical key name
var keyAliases = map[string]string{
	"ENTER":    "RETURN",
	"ESCAPE":   "ESC",
	"PAGEUP":   "PRIOR",
	"PGUP":     "PRIOR",
	"PAGEDOWN": "NEXT",
	"PGDN":     "NEXT",
	"CAPSLOCK": "CAPITAL",
	"DEL":      "DELETE",
	"INS":      "INSERT",
	"MENU":     "APPS",
}

func init() {
	for c := '0'; c <= '9'; c++ {
		keyTable[string(c)] = uint32(c)
	}

	for c := 'A'; c <= 'Z'; c++ {
		keyTable[string(c)] = uint32(c)
	}

	for i := 0; i <= 9; i++ {
		keyTable[fmt.Sprintf("NUMPAD%d", i)] = 0x60 + uint32(i)
	}

	for i := 1; i <= 24; i++ {
		keyTable[fmt.Sprintf("F%d", i)] = 0x70 + uint32(i-1)
	}
}

// Binding is an optional modifier plus exactly one primary key.
// Two bindings are equal when both their modifier and key are equal
type Binding struct {
	Modifier Modifier
	Key      string
}

// ParseBinding resolves a modifier name (may be empty) and a key name into a Binding.
// Names are case-insensitive and keys may carry a "VK_" prefix
func ParseBinding(modifier string, key string) (Binding, error) {
	b := Binding{}

	if mod := strings.ToUpper(strings.TrimSpace(modifier)); mod != "" {
		m, ok := modifierNames[mod]
		if !ok {
			return Binding{}, fmt.Errorf("%w: %q", ErrUnknownModifier, modifier)
		}
		b.Modifier = m
	}

	name, err := canonicalKeyName(key)
	if err != nil {
		return Binding{}, err
	}
	b.Key = name

	return b, nil
}

func canonicalKeyName(key string) (string, error) {
	name := strings.TrimSpace(key)

	// a lone space is the space bar, not an empty key
	if name == "" && key != "" {
		name = "SPACE"
	}

	name = strings.ToUpper(name)
	if len(name) > 3 {
		name = strings.TrimPrefix(name, "VK_")
	}

	if alias, ok := keyAliases[name]; ok {
		name = alias
	}

	if _, ok := keyTable[name]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, key)
	}

	return name, nil
}

// Equal reports whether both bindings trigger on the same key combination
func (b Binding) Equal(other Binding) bool {
	return b.Modifier == other.Modifier && b.Key == other.Key
}

// IsZero reports whether the binding is unset
func (b Binding) IsZero() bool {
	return b.Key == ""
}

// VirtualKey returns the Windows virtual key code of the primary key, or 0 if unknown
func (b Binding) VirtualKey() uint32 {
	return keyTable[b.Key]
}

func (b Binding) String() string {
	if b.Modifier == ModNone {
		return b.Key
	}

	return fmt.Sprintf("%s+%s", b.Modifier, b.Key)
}
