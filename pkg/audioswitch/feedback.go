package audioswitch

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const rollbackIncompleteMessage = "Some audio devices could not be restored."

// TrayIcon is the part of the tray the feedback sink drives
type TrayIcon interface {
	ResetIcon() error
	SetIconColor(hex string) error
}

// ListenerControl forwards menu-initiated switches to the listener thread
type ListenerControl interface {
	Request(index int) error
}

// FeedbackHooks are optional callbacks for menu actions and successful switches.
// They all run on the feedback sink's goroutine
type FeedbackHooks struct {
	// OnActivated persists the active profile
	OnActivated func(profileName string) error

	OnEditConfig func()
	OnDumpStack  func()
	OnQuit       func()
}

// FeedbackOptions configures a FeedbackSink
type FeedbackOptions struct {
	Bridge   *EventBridge
	Notifier Notifier
	Icon     TrayIcon
	Listener ListenerControl
	Profiles []Profile

	// ActiveProfile is shown for TrayClicked until the first successful switch
	ActiveProfile string

	Hooks FeedbackHooks
}

// FeedbackSink is the single consumer of the event bridge. It turns switch outcomes
// into notifications and tray icon changes, and menu clicks into actions
type FeedbackSink struct {
	logger   *zap.SugaredLogger
	bridge   *EventBridge
	notifier Notifier
	icon     TrayIcon
	listener ListenerControl
	profiles []Profile
	hooks    FeedbackHooks

	active string
}

// NewFeedbackSink creates a feedback sink reading from opts.Bridge
func NewFeedbackSink(logger *zap.SugaredLogger, opts FeedbackOptions) (*FeedbackSink, error) {
	logger = logger.Named("feedback")

	if opts.Bridge == nil {
		return nil, errors.New("feedback sink requires an event bridge")
	}

	if opts.Notifier == nil {
		return nil, errors.New("feedback sink requires a notifier")
	}

	fs := &FeedbackSink{
		logger:   logger,
		bridge:   opts.Bridge,
		notifier: opts.Notifier,
		icon:     opts.Icon,
		listener: opts.Listener,
		profiles: append([]Profile(nil), opts.Profiles...),
		hooks:    opts.Hooks,
		active:   opts.ActiveProfile,
	}

	logger.Debug("Created feedback sink instance")

	return fs, nil
}

// SetListener attaches the listener that menu-initiated switches are forwarded to
func (fs *FeedbackSink) SetListener(listener ListenerControl) {
	fs.listener = listener
}

// ActiveProfile returns the name of the last successfully activated profile
func (fs *FeedbackSink) ActiveProfile() string {
	return fs.active
}

// Run handles events in order until the bridge is closed and drained or ctx is done
func (fs *FeedbackSink) Run(ctx context.Context) error {
	fs.logger.Debug("Feedback loop starting")

	for {
		ev, err := fs.bridge.Receive(ctx)
		if err != nil {
			if errors.Is(err, ErrBridgeClosed) {
				fs.logger.Debug("Event bridge closed, feedback loop exiting")
				return nil
			}

			return err
		}

		fs.Handle(ev)
	}
}

// Handle processes a single event. Display failures are logged and never propagated
func (fs *FeedbackSink) Handle(ev Event) {
	switch ev.Kind {
	case EventActivated:
		fs.handleActivated(ev.Outcome)
	case EventFailed:
		fs.handleFailed(ev.Outcome)
	case EventTrayClicked:
		fs.handleTrayClicked()
	case EventMenuSelected:
		fs.handleMenu(ev.Menu)
	default:
		fs.logger.Warnw("Ignoring event of unknown kind", "kind", ev.Kind)
	}
}

func (fs *FeedbackSink) handleActivated(outcome Outcome) {
	fs.logger.Infow("Profile activated", "profile", outcome.ProfileName, "attempt", outcome.AttemptID)

	fs.active = outcome.ProfileName
	fs.notifier.Notify(fmt.Sprintf("Activated Profile %s", outcome.ProfileName), "")

	if fs.icon != nil {
		var err error
		if outcome.Color != "" {
			err = fs.icon.SetIconColor(outcome.Color)
		} else {
			err = fs.icon.ResetIcon()
		}

		if err != nil {
			fs.logger.Warnw("Failed to update tray icon", "color", outcome.Color, "error", err)
		}
	}

	if fs.hooks.OnActivated != nil {
		if err := fs.hooks.OnActivated(outcome.ProfileName); err != nil {
			fs.logger.Warnw("Failed to persist active profile", "profile", outcome.ProfileName, "error", err)
		}
	}
}

func (fs *FeedbackSink) handleFailed(outcome Outcome) {
	fs.logger.Warnw("Profile activation failed",
		"profile", outcome.ProfileName,
		"attempt", outcome.AttemptID,
		"rollbackIncomplete", outcome.RollbackIncomplete)

	message := ""
	if outcome.RollbackIncomplete {
		message = rollbackIncompleteMessage
	}

	fs.notifier.Notify(fmt.Sprintf("Failed to activate Profile %s", outcome.ProfileName), message)
}

func (fs *FeedbackSink) handleTrayClicked() {
	fs.logger.Debugw("Tray clicked", "activeProfile", fs.active)

	if fs.active == "" {
		fs.notifier.Notify("No active profile", "Press a profile hotkey to activate one.")
		return
	}

	fs.notifier.Notify(fmt.Sprintf("Active Profile %s", fs.active), "")
}

func (fs *FeedbackSink) handleMenu(selection MenuSelection) {
	switch selection.Action {
	case MenuSwitchProfile:
		if selection.ProfileIndex < 0 || selection.ProfileIndex >= len(fs.profiles) {
			fs.logger.Warnw("Menu selected unknown profile", "index", selection.ProfileIndex)
			return
		}

		name := fs.profiles[selection.ProfileIndex].Name

		if fs.listener == nil {
			fs.logger.Warnw("No listener to forward menu switch to", "profile", name)
			return
		}

		fs.logger.Infow("Forwarding menu switch to listener", "profile", name)

		if err := fs.listener.Request(selection.ProfileIndex); err != nil {
			fs.logger.Warnw("Failed to request profile switch", "profile", name, "error", err)
			fs.notifier.Notify(fmt.Sprintf("Failed to activate Profile %s", name), "The hotkey listener isn't running.")
		}

	case MenuEditConfig:
		fs.runHook(fs.hooks.OnEditConfig, "edit config")
	case MenuDumpStack:
		fs.runHook(fs.hooks.OnDumpStack, "dump stack")
	case MenuQuit:
		fs.runHook(fs.hooks.OnQuit, "quit")
	default:
		fs.logger.Warnw("Ignoring unknown menu action", "action", selection.Action)
	}
}

func (fs *FeedbackSink) runHook(hook func(), name string) {
	if hook == nil {
		fs.logger.Debugw("No hook set for menu action", "action", name)
		return
	}

	fs.logger.Debugw("Running menu action", "action", name)
	hook()
}
