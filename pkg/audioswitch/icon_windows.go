package audioswitch

import (
	"bytes"
	"encoding/binary"
)

// the tray and toasts on windows want ICO data, which may embed a PNG directly
func wrapIcon(encoded []byte) []byte {
	const headerSize = 6 + 16

	buf := &bytes.Buffer{}

	// ICONDIR: reserved, type (1 = icon), image count
	binary.Write(buf, binary.LittleEndian, []uint16{0, 1, 1})

	// ICONDIRENTRY
	buf.Write([]byte{iconSize, iconSize, 0, 0})
	binary.Write(buf, binary.LittleEndian, []uint16{1, 32})
	binary.Write(buf, binary.LittleEndian, []uint32{uint32(len(encoded)), headerSize})

	buf.Write(encoded)

	return buf.Bytes()
}

const iconFileExtension = ".ico"
