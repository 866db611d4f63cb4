//go:build !cgo

package device

import "github.com/sirupsen/logrus"

// AudioAvailable indicates whether audio playback is supported in this build.
// Audio requires cgo for the native sound libraries.
const AudioAvailable = false

// newAudioDevice falls back to the silent device when cgo is disabled.
func newAudioDevice(logger *logrus.Logger) (Device, error) {
	return NewSilent(), nil
}
