package termpix

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// A 64x64 opaque-red grid rendered into 8x4 cells must come out as 32 glyphs
// all encoding pure red on both halves.
func TestHalfblocksSolidRed(t *testing.T) {
	img := solidImage(64, 64, color.RGBA{255, 0, 0, 255})
	enc := &HalfblocksEncoder{}

	frame, err := enc.Encode(img, EncodeOptions{Cols: 8, Rows: 4})
	require.NoError(t, err)

	payload := string(frame.Payload)
	assert.Equal(t, 32, strings.Count(payload, halfBlock))
	assert.Equal(t, 32, strings.Count(payload, "\x1b[38;2;255;0;0m"), "every top half must be pure red")
	assert.Equal(t, 32, strings.Count(payload, "\x1b[48;2;255;0;0m"), "every bottom half must be pure red")
	assert.Equal(t, 3, strings.Count(payload, "\n"))
	assert.Equal(t, 8, frame.Cols)
	assert.Equal(t, 4, frame.Rows)
}

func TestHalfblocksSplitColors(t *testing.T) {
	// Top half white, bottom half black, mapped onto a single cell.
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{255, 255, 255, 255})
	img.SetRGBA(1, 0, color.RGBA{255, 255, 255, 255})
	img.SetRGBA(0, 1, color.RGBA{0, 0, 0, 255})
	img.SetRGBA(1, 1, color.RGBA{0, 0, 0, 255})

	enc := &HalfblocksEncoder{}
	frame, err := enc.Encode(img, EncodeOptions{Cols: 1, Rows: 1})
	require.NoError(t, err)

	payload := string(frame.Payload)
	assert.Contains(t, payload, "\x1b[38;2;255;255;255m")
	assert.Contains(t, payload, "\x1b[48;2;0;0;0m")
	assert.Equal(t, 1, strings.Count(payload, halfBlock))
}

func TestHalfblocksAveraging(t *testing.T) {
	// A 2x2 checker of pure red and pure blue averages to an even purple in
	// each half sample.
	img := image.NewRGBA(image.Rect(0, 0, 2, 2))
	img.SetRGBA(0, 0, color.RGBA{255, 0, 0, 255})
	img.SetRGBA(1, 0, color.RGBA{0, 0, 255, 255})
	img.SetRGBA(0, 1, color.RGBA{255, 0, 0, 255})
	img.SetRGBA(1, 1, color.RGBA{0, 0, 255, 255})

	enc := &HalfblocksEncoder{}
	frame, err := enc.Encode(img, EncodeOptions{Cols: 1, Rows: 1})
	require.NoError(t, err)

	payload := string(frame.Payload)
	assert.Contains(t, payload, "\x1b[38;2;127;0;127m")
	assert.Contains(t, payload, "\x1b[48;2;127;0;127m")
}

func TestHalfblocksDeterminism(t *testing.T) {
	img := gradientImage(30, 20)
	enc := &HalfblocksEncoder{}
	opts := EncodeOptions{Cols: 10, Rows: 5}

	first, err := enc.Encode(img, opts)
	require.NoError(t, err)
	second, err := enc.Encode(img, opts)
	require.NoError(t, err)

	assert.Equal(t, first.Payload, second.Payload)
}

func TestHalfblocksDefaultGrid(t *testing.T) {
	img := solidImage(10, 10, color.RGBA{0, 255, 0, 255})
	enc := &HalfblocksEncoder{}

	frame, err := enc.Encode(img, EncodeOptions{})
	require.NoError(t, err)

	// With no target area, one cell covers one pixel column and two rows.
	assert.Equal(t, 10, frame.Cols)
	assert.Equal(t, 5, frame.Rows)
}

func TestHalfblocksInvalidInput(t *testing.T) {
	enc := &HalfblocksEncoder{}

	_, err := enc.Encode(nil, EncodeOptions{})
	assert.ErrorIs(t, err, ErrInvalidDimensions)

	_, err = enc.Encode(image.NewRGBA(image.Rect(0, 0, 5, 0)), EncodeOptions{})
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestPlaceholderGlyphs(t *testing.T) {
	out := string(PlaceholderGlyphs(4, 2))
	assert.Equal(t, 8, strings.Count(out, "░"))
	assert.Equal(t, 1, strings.Count(out, "\n"))

	assert.Nil(t, PlaceholderGlyphs(0, 2))
}
