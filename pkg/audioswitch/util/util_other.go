//go:build !windows && !linux

package util

func defaultEditor() string {
	return "open"
}
