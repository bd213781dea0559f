// Package audioswitch provides a background service that switches the system's
// default audio input and output devices between user-defined profiles on global hotkeys
package audioswitch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/stalexteam/audioswitch/pkg/audioswitch/util"
)

const (

	// when this is set to anything, audioswitch won't use a tray icon
	envNoTray = "AUDIOSWITCH_NO_TRAY_ICON"

	// how long stop waits for the listener and the feedback loop to wind down
	shutdownTimeout = 2 * time.Second
)

// ErrAlreadyRunning is returned by Initialize when another audioswitch process is alive
var ErrAlreadyRunning = errors.New("audioswitch is already running")

// AudioSwitch is the main entity managing access to all sub-components
type AudioSwitch struct {
	logger   *zap.SugaredLogger
	notifier Notifier
	config   *CanonicalConfig
	bridge   *EventBridge
	listener *Listener
	feedback *FeedbackSink
	tray     *trayUI

	stopChannel chan bool
	stopping    sync.Once
	version     string
	verbose     bool
	exitCode    int
}

// NewAudioSwitch creates an AudioSwitch instance
func NewAudioSwitch(logger *zap.SugaredLogger, verbose bool) (*AudioSwitch, error) {
	logger = logger.Named("audioswitch")

	notifier, err := NewToastNotifier(logger)
	if err != nil {
		logger.Errorw("Failed to create ToastNotifier", "error", err)
		return nil, fmt.Errorf("create new ToastNotifier: %w", err)
	}

	config, err := NewConfig(logger, notifier)
	if err != nil {
		logger.Errorw("Failed to create Config", "error", err)
		return nil, fmt.Errorf("create new Config: %w", err)
	}

	a := &AudioSwitch{
		logger:      logger,
		notifier:    notifier,
		config:      config,
		bridge:      NewEventBridge(logger),
		stopChannel: make(chan bool, 1),
		verbose:     verbose,
	}

	logger.Debug("Created audioswitch instance")

	return a, nil
}

// SetVersion causes audioswitch to add a version string to its tray menu if called before Initialize
func (a *AudioSwitch) SetVersion(version string) {
	a.version = version
}

// Verbose returns a boolean indicating whether audioswitch is running in verbose mode
func (a *AudioSwitch) Verbose() bool {
	return a.verbose
}

// Config returns the canonical config instance
func (a *AudioSwitch) Config() *CanonicalConfig {
	return a.config
}

// Initialize loads the config, wires the listener, bridge and feedback sink together and
// runs until stopped. It only returns on start-up errors; a normal shutdown exits the process
func (a *AudioSwitch) Initialize() error {
	a.logger.Debug("Initializing")

	// load the config for the first time
	if err := a.config.Load(); err != nil {
		a.logger.Errorw("Failed to load config during initialization", "error", err)
		return fmt.Errorf("load config during init: %w", err)
	}

	if running, err := util.OtherInstanceRunning(); err != nil {
		a.logger.Warnw("Failed to check for other running instances", "error", err)
	} else if running {
		a.logger.Warn("Another instance is already running, refusing to start")
		a.notifier.Notify("audioswitch is already running!", "Only one instance can own the profile hotkeys.")
		return ErrAlreadyRunning
	}

	profiles := a.config.Profiles()

	listener, err := NewListener(a.logger, ListenerOptions{
		Profiles:        profiles,
		NextProfile:     a.config.NextProfile,
		PreviousProfile: a.config.PreviousProfile,
		ActiveProfile:   a.config.ActiveProfile,
		Bridge:          a.bridge,
	})
	if err != nil {
		a.logger.Errorw("Failed to create Listener", "error", err)
		return fmt.Errorf("create new Listener: %w", err)
	}
	a.listener = listener

	_, noTraySet := os.LookupEnv(envNoTray)

	var icon TrayIcon
	if !noTraySet {
		a.tray = newTrayUI(a.logger, a.bridge, profiles, a.verbose, a.version)
		icon = a.tray
	}

	feedback, err := NewFeedbackSink(a.logger, FeedbackOptions{
		Bridge:        a.bridge,
		Notifier:      a.notifier,
		Icon:          icon,
		Listener:      listener,
		Profiles:      profiles,
		ActiveProfile: a.config.ActiveProfile,
		Hooks: FeedbackHooks{
			OnActivated:  a.config.SaveActiveProfile,
			OnEditConfig: a.editConfig,
			OnDumpStack:  a.dumpStack,
			OnQuit:       a.signalStop,
		},
	})
	if err != nil {
		a.logger.Errorw("Failed to create FeedbackSink", "error", err)
		return fmt.Errorf("create new FeedbackSink: %w", err)
	}
	a.feedback = feedback

	a.setupInterruptHandler()

	// decide whether to run with/without tray
	if noTraySet {
		a.logger.Debugw("Running without tray icon", "reason", "envvar set")

		// run in main thread while waiting on ctrl+C
		a.run()
	} else {
		a.tray.run(a.run)
	}

	return nil
}

func (a *AudioSwitch) setupInterruptHandler() {
	interruptChannel := util.SetupCloseHandler()

	go func() {
		signal := <-interruptChannel
		a.logger.Debugw("Interrupted", "signal", signal)
		a.signalStop()
	}()
}

func (a *AudioSwitch) run() {
	a.logger.Info("Run loop starting")

	// watch the config file for changes
	go a.config.WatchConfigFileChanges()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	feedbackDone := make(chan struct{})
	go func() {
		defer close(feedbackDone)

		if err := a.feedback.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			a.logger.Warnw("Feedback loop exited with error", "error", err)
		}
	}()

	listenerErr := make(chan error, 1)
	go func() {
		listenerErr <- a.listener.Run()
	}()

	// wait until stopped (gracefully) or until the listener gives up
	select {
	case <-a.stopChannel:
		a.logger.Debug("Stop channel signaled, terminating")

	case err := <-listenerErr:
		a.handleListenerExit(err)
	}

	if err := a.stop(feedbackDone, cancel); err != nil {
		a.logger.Warnw("Failed to stop audioswitch", "error", err)
		os.Exit(1)
	}

	os.Exit(a.exitCode)
}

func (a *AudioSwitch) handleListenerExit(err error) {
	if err == nil {
		a.logger.Warn("Listener exited unexpectedly")
		a.exitCode = 1
		return
	}

	a.exitCode = 1

	registrationErr := &HotkeyRegistrationError{}
	if errors.As(err, &registrationErr) {
		a.logger.Errorw("Hotkey registration failed, quitting", "error", err)
		a.notifier.Notify("Failed to register hotkeys!",
			fmt.Sprintf("%s is unavailable: %v", registrationErr.Binding, registrationErr.Err))
		return
	}

	a.logger.Errorw("Listener failed, quitting", "error", err)
	a.notifier.Notify("audioswitch stopped!", "Please check audioswitch's logs for more details.")
}

func (a *AudioSwitch) signalStop() {
	a.stopping.Do(func() {
		a.logger.Debug("Signalling stop channel")
		select {
		case a.stopChannel <- true:
		default:
			// channel already has a signal, ignore
		}
	})
}

func (a *AudioSwitch) stop(feedbackDone <-chan struct{}, cancel context.CancelFunc) error {
	a.logger.Info("Stopping")

	a.config.StopWatchingConfigFile()

	var errs []error

	if err := a.listener.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop listener: %w", err))
	}

	select {
	case <-a.listener.Done():
		a.logger.Debug("Listener stopped successfully")
	case <-time.After(shutdownTimeout):
		a.logger.Warn("Listener did not stop within timeout, proceeding anyway")
	}

	// outcomes of a switch that was in flight are still delivered
	a.bridge.Close()

	select {
	case <-feedbackDone:
		a.logger.Debug("Feedback loop stopped successfully")
	case <-time.After(shutdownTimeout):
		a.logger.Warn("Feedback loop did not stop within timeout, proceeding anyway")
		cancel()
	}

	if a.tray != nil {
		a.tray.stop()
	}

	// attempt to sync on exit - this won't necessarily work but can't harm
	a.logger.Sync()

	return errors.Join(errs...)
}

func (a *AudioSwitch) editConfig() {
	path := a.config.ConfigFilepath()
	a.logger.Infow("Opening config for editing", "path", path)

	if err := util.OpenExternal(a.logger, util.Editor(), path); err != nil {
		a.logger.Warnw("Failed to open config file for editing", "error", err)
	}
}

func (a *AudioSwitch) dumpStack() {
	a.logger.Info("Outputting all goroutines stack trace")
	util.DumpAllGoroutines(a.logger)
}
