package audioswitch

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapIconWritesICOHeader(t *testing.T) {
	encoded, err := renderPNG(defaultIconColor)
	require.NoError(t, err)

	ico := wrapIcon(encoded)
	require.Len(t, ico, 22+len(encoded))

	assert.Equal(t, []uint16{0, 1, 1}, []uint16{
		binary.LittleEndian.Uint16(ico[0:]),
		binary.LittleEndian.Uint16(ico[2:]),
		binary.LittleEndian.Uint16(ico[4:]),
	})
	assert.Equal(t, byte(iconSize), ico[6])
	assert.Equal(t, uint32(len(encoded)), binary.LittleEndian.Uint32(ico[14:]))
	assert.Equal(t, uint32(22), binary.LittleEndian.Uint32(ico[18:]))
	assert.Equal(t, encoded, ico[22:])
}
