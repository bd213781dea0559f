package audioswitch

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"regexp"
	"strconv"
)

const iconSize = 32

var hexColorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// neutral grey, used when no profile color applies
var defaultIconColor = color.RGBA{R: 0x80, G: 0x80, B: 0x80, A: 0xff}

// parseHexColor parses a "#RRGGBB" string
func parseHexColor(hex string) (color.RGBA, error) {
	if !hexColorPattern.MatchString(hex) {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}

	value, err := strconv.ParseUint(hex[1:], 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("%w: %q", ErrInvalidColor, hex)
	}

	return color.RGBA{
		R: uint8(value >> 16),
		G: uint8(value >> 8),
		B: uint8(value),
		A: 0xff,
	}, nil
}

// renderIcon draws a filled square with a darker outline, encoded in the format
// the platform's tray expects
func renderIcon(fill color.RGBA) ([]byte, error) {
	encoded, err := renderPNG(fill)
	if err != nil {
		return nil, err
	}

	return wrapIcon(encoded), nil
}

func renderPNG(fill color.RGBA) ([]byte, error) {
	const margin = 2

	outline := color.RGBA{R: fill.R / 2, G: fill.G / 2, B: fill.B / 2, A: 0xff}
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))

	for y := margin; y < iconSize-margin; y++ {
		for x := margin; x < iconSize-margin; x++ {
			if x == margin || y == margin || x == iconSize-margin-1 || y == iconSize-margin-1 {
				img.SetRGBA(x, y, outline)
				continue
			}

			img.SetRGBA(x, y, fill)
		}
	}

	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		return nil, fmt.Errorf("encode icon: %w", err)
	}

	return buf.Bytes(), nil
}

// iconForColor renders the icon for a "#RRGGBB" color, or the default icon for an empty one
func iconForColor(hex string) ([]byte, error) {
	if hex == "" {
		return renderIcon(defaultIconColor)
	}

	fill, err := parseHexColor(hex)
	if err != nil {
		return nil, err
	}

	return renderIcon(fill)
}
