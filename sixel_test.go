package termpix

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func solidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

func gradientImage(w, h int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8((x * 255) / w),
				G: uint8((y * 255) / h),
				B: uint8((x*7 + y*13) % 256),
				A: 255,
			})
		}
	}
	return img
}

func TestSixelDeterminism(t *testing.T) {
	img := gradientImage(48, 30)
	enc := &SixelEncoder{}
	opts := EncodeOptions{Cols: 6, Rows: 2, CellWidth: 8, CellHeight: 16}

	first, err := enc.Encode(img, opts)
	require.NoError(t, err)
	second, err := enc.Encode(img, opts)
	require.NoError(t, err)

	assert.Equal(t, first.Payload, second.Payload, "identical input must produce byte-identical output")
}

func TestSixelStructure(t *testing.T) {
	img := solidImage(64, 64, color.RGBA{255, 0, 0, 255})
	enc := &SixelEncoder{}

	frame, err := enc.Encode(img, EncodeOptions{CellWidth: 8, CellHeight: 16})
	require.NoError(t, err)

	payload := string(frame.Payload)
	assert.True(t, strings.HasPrefix(payload, "\x1bPq"), "should start with the DCS introducer")
	assert.True(t, strings.HasSuffix(payload, "\x1b\\"), "should end with the string terminator")
	assert.Contains(t, payload, "\"1;1;64;64", "should carry raster attributes")

	// One pure-red palette entry, channels scaled to 0-100.
	assert.Contains(t, payload, "#0;2;100;0;0")

	// A solid 64-wide row compresses to a single 64-long run of full
	// six-pixel columns.
	assert.Contains(t, payload, "!64~")

	assert.Equal(t, Sixel, frame.Protocol)
	assert.Equal(t, 64, frame.PixelWidth)
	assert.Equal(t, 64, frame.PixelHeight)
	assert.Equal(t, 8, frame.Cols, "64px over 8px cells")
	assert.Equal(t, 4, frame.Rows, "64px over 16px cells")
}

func TestSixelPartialBand(t *testing.T) {
	// 8 rows = one full band plus a two-row remainder band.
	img := solidImage(10, 8, color.RGBA{0, 0, 255, 255})
	enc := &SixelEncoder{}

	frame, err := enc.Encode(img, EncodeOptions{CellWidth: 8, CellHeight: 16})
	require.NoError(t, err)

	payload := string(frame.Payload)
	assert.Contains(t, payload, "-", "bands must be separated by a line feed")
	// The remainder band has only the two lowest bits set: 0b11 + 63 = 'B'.
	assert.Contains(t, payload, "!10B")
}

func TestSixelPaletteBound(t *testing.T) {
	// Way more than 256 unique colors forces quantization.
	img := gradientImage(64, 64)
	enc := &SixelEncoder{}

	frame, err := enc.Encode(img, EncodeOptions{CellWidth: 8, CellHeight: 16})
	require.NoError(t, err)

	defs := strings.Count(string(frame.Payload), ";2;")
	assert.LessOrEqual(t, defs, SixelMaxColors, "palette must fit the protocol bound")
	assert.Greater(t, defs, 0)
}

func TestSixelCoarsePalette(t *testing.T) {
	img := gradientImage(32, 32)
	enc := &SixelEncoder{}

	frame, err := enc.Encode(img, EncodeOptions{MaxColors: 8, CellWidth: 8, CellHeight: 16})
	require.NoError(t, err)

	defs := strings.Count(string(frame.Payload), ";2;")
	assert.LessOrEqual(t, defs, 8)
}

func TestSixelInvalidInput(t *testing.T) {
	enc := &SixelEncoder{}

	_, err := enc.Encode(nil, EncodeOptions{})
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = enc.Encode(image.NewRGBA(image.Rect(0, 0, 0, 0)), EncodeOptions{})
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestSixelDitherDeterminism(t *testing.T) {
	img := gradientImage(40, 24)
	enc := &SixelEncoder{}
	opts := EncodeOptions{MaxColors: 16, Dither: DitherFloydSteinberg, CellWidth: 8, CellHeight: 16}

	first, err := enc.Encode(img, opts)
	require.NoError(t, err)
	second, err := enc.Encode(img, opts)
	require.NoError(t, err)

	assert.Equal(t, first.Payload, second.Payload)
}

func TestSixelTmuxWrapping(t *testing.T) {
	img := solidImage(4, 4, color.RGBA{0, 255, 0, 255})
	enc := &SixelEncoder{}

	frame, err := enc.Encode(img, EncodeOptions{Tmux: true, CellWidth: 8, CellHeight: 16})
	require.NoError(t, err)

	payload := string(frame.Payload)
	assert.True(t, strings.HasPrefix(payload, "\x1bPtmux;"))
	assert.True(t, strings.HasSuffix(payload, "\x1b\\"))
}
