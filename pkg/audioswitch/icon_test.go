package audioswitch

import (
	"bytes"
	"errors"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHexColor(t *testing.T) {
	c, err := parseHexColor("#FF8000")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0xff, G: 0x80, B: 0x00, A: 0xff}, c)

	c, err = parseHexColor("#0a0B0c")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{R: 0x0a, G: 0x0b, B: 0x0c, A: 0xff}, c)

	for _, invalid := range []string{"", "FF8000", "#FF80", "#FF80001", "#GG0000", "red"} {
		_, err := parseHexColor(invalid)
		assert.True(t, errors.Is(err, ErrInvalidColor), invalid)
	}
}

func TestRenderPNG(t *testing.T) {
	fill := color.RGBA{R: 0x12, G: 0x34, B: 0x56, A: 0xff}

	encoded, err := renderPNG(fill)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(encoded))
	require.NoError(t, err)

	assert.Equal(t, iconSize, img.Bounds().Dx())
	assert.Equal(t, iconSize, img.Bounds().Dy())

	r, g, b, a := img.At(iconSize/2, iconSize/2).RGBA()
	assert.Equal(t, []uint32{0x12, 0x34, 0x56, 0xff}, []uint32{r >> 8, g >> 8, b >> 8, a >> 8})

	// margin stays transparent
	_, _, _, a = img.At(0, 0).RGBA()
	assert.Equal(t, uint32(0), a)
}

func TestIconForColor(t *testing.T) {
	data, err := iconForColor("")
	require.NoError(t, err)
	assert.NotEmpty(t, data)

	_, err = iconForColor("#nothex")
	assert.True(t, errors.Is(err, ErrInvalidColor))
}
