package audioswitch

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gen2brain/beeep"
	"go.uber.org/zap"

	"github.com/stalexteam/audioswitch/pkg/audioswitch/util"
)

// Notifier provides generic notification sending
type Notifier interface {
	Notify(title string, message string)
}

// ToastNotifier provides toast notifications through the OS notification center
type ToastNotifier struct {
	logger   *zap.SugaredLogger
	iconPath string
}

// NewToastNotifier creates a new ToastNotifier
func NewToastNotifier(logger *zap.SugaredLogger) (*ToastNotifier, error) {
	logger = logger.Named("notifier")

	tn := &ToastNotifier{
		logger:   logger,
		iconPath: filepath.Join(os.TempDir(), "audioswitch"+iconFileExtension),
	}

	logger.Debug("Created toast notifier instance")

	return tn, nil
}

// Notify sends a toast notification (or falls back to other types of notification for older Windows versions)
func (tn *ToastNotifier) Notify(title string, message string) {

	// the icon file can be cleaned out of the temp dir at any point, so check every time
	if !util.FileExists(tn.iconPath) {
		tn.logger.Debugw("Toast icon file missing, creating", "path", tn.iconPath)

		if err := tn.writeIcon(); err != nil {
			tn.logger.Warnw("Failed to create toast icon", "error", err)
		}
	}

	tn.logger.Infow("Sending toast notification", "title", title, "message", message)

	if err := beeep.Notify(title, message, tn.iconPath); err != nil {
		tn.logger.Errorw("Failed to send toast notification", "error", err)
	}
}

func (tn *ToastNotifier) writeIcon() error {
	data, err := renderIcon(defaultIconColor)
	if err != nil {
		return fmt.Errorf("render icon: %w", err)
	}

	if err := os.WriteFile(tn.iconPath, data, 0o644); err != nil {
		return fmt.Errorf("write icon file: %w", err)
	}

	return nil
}
