//go:build !windows

package audioswitch

func wrapIcon(encoded []byte) []byte {
	return encoded
}

const iconFileExtension = ".png"
