package audioswitch

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"
	"go.uber.org/zap"
)

// trayUI owns the systray icon and menu. Menu clicks never act directly, they are
// turned into bridge events and handled by the feedback sink
type trayUI struct {
	logger   *zap.SugaredLogger
	bridge   *EventBridge
	profiles []Profile
	verbose  bool
	version  string

	iconLock    sync.Mutex
	currentIcon string
}

func newTrayUI(logger *zap.SugaredLogger, bridge *EventBridge, profiles []Profile, verbose bool, version string) *trayUI {
	return &trayUI{
		logger:   logger.Named("tray"),
		bridge:   bridge,
		profiles: profiles,
		verbose:  verbose,
		version:  version,
	}
}

func (t *trayUI) run(onDone func()) {
	onReady := func() {
		t.logger.Debug("Tray instance ready")

		if err := t.ResetIcon(); err != nil {
			t.logger.Warnw("Failed to set initial tray icon", "error", err)
		}

		systray.SetTitle("audioswitch")
		systray.SetTooltip("audioswitch")

		current := systray.AddMenuItem("Current profile", "Show the active audio profile")
		t.forward(current.ClickedCh, Event{Kind: EventTrayClicked})

		if len(t.profiles) > 0 {
			systray.AddSeparator()
		}

		for idx, profile := range t.profiles {
			item := systray.AddMenuItem(
				fmt.Sprintf("Switch to %s", profile.Name),
				fmt.Sprintf("%s / %s (%s)", profile.Input.Name, profile.Output.Name, profile.Hotkey),
			)

			t.forward(item.ClickedCh, Event{
				Kind: EventMenuSelected,
				Menu: MenuSelection{Action: MenuSwitchProfile, ProfileIndex: idx},
			})
		}

		systray.AddSeparator()

		editConfig := systray.AddMenuItem("Edit configuration", "Open config file with a text editor")
		t.forward(editConfig.ClickedCh, menuEvent(MenuEditConfig))

		// only enable stack trace dump in verbose/debug mode
		if t.verbose {
			dumpStack := systray.AddMenuItem("Dump stack trace", "Output all goroutines stack trace to log (for debugging deadlocks)")
			t.forward(dumpStack.ClickedCh, menuEvent(MenuDumpStack))
		}

		if t.version != "" {
			systray.AddSeparator()
			versionInfo := systray.AddMenuItem(t.version, "")
			versionInfo.Disable()
		}

		systray.AddSeparator()
		quit := systray.AddMenuItem("Quit", "Stop audioswitch and quit")
		t.forward(quit.ClickedCh, menuEvent(MenuQuit))

		// actually start the main runtime
		onDone()
	}

	onExit := func() {
		t.logger.Debug("Tray exited")
	}

	// start the tray icon
	t.logger.Debug("Running in tray")
	systray.Run(onReady, onExit)
}

func menuEvent(action MenuAction) Event {
	return Event{Kind: EventMenuSelected, Menu: MenuSelection{Action: action}}
}

func (t *trayUI) forward(clicks <-chan struct{}, ev Event) {
	go func() {
		for range clicks {
			t.logger.Debugw("Menu item clicked", "event", ev.Kind, "action", ev.Menu.Action)

			if err := t.bridge.Send(ev); err != nil {
				t.logger.Debugw("Dropping menu click, bridge closed", "error", err)
				return
			}
		}
	}()
}

func (t *trayUI) stop() {
	t.logger.Debug("Quitting tray")
	systray.Quit()
}

// ResetIcon restores the neutral default icon
func (t *trayUI) ResetIcon() error {
	return t.setIcon("")
}

// SetIconColor recolors the icon with a "#RRGGBB" color
func (t *trayUI) SetIconColor(hex string) error {
	if hex == "" {
		return fmt.Errorf("%w: empty", ErrInvalidColor)
	}

	return t.setIcon(hex)
}

func (t *trayUI) setIcon(hex string) error {
	t.iconLock.Lock()
	defer t.iconLock.Unlock()

	if t.currentIcon == hex && hex != "" {
		return nil
	}

	data, err := iconForColor(hex)
	if err != nil {
		return fmt.Errorf("render tray icon: %w", err)
	}

	systray.SetIcon(data)
	t.currentIcon = hex

	t.logger.Debugw("Updated tray icon", "color", hex)

	return nil
}
