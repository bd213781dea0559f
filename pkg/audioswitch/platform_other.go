//go:build !windows && !linux

package audioswitch

import (
	"go.uber.org/zap"
)

func newAudioSession(logger *zap.SugaredLogger) (AudioSession, error) {
	return nil, errUnsupportedPlatform
}

func newHotkeyRegistrar(logger *zap.SugaredLogger) (HotkeyRegistrar, error) {
	return nil, errUnsupportedPlatform
}
