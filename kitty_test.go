package termpix

import (
	"encoding/base64"
	"image/color"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKittySingleChunk(t *testing.T) {
	img := solidImage(2, 2, color.RGBA{10, 20, 30, 255})
	enc := &KittyEncoder{}

	frame, err := enc.Encode(img, EncodeOptions{Cols: 1, Rows: 1, CellWidth: 8, CellHeight: 16})
	require.NoError(t, err)

	payload := string(frame.Payload)
	assert.True(t, strings.HasPrefix(payload, "\x1b_G"))
	assert.True(t, strings.HasSuffix(payload, "\x1b\\"))
	assert.Contains(t, payload, "a=T", "transfer-and-display action")
	assert.Contains(t, payload, "f=32", "raw RGBA format")
	assert.Contains(t, payload, "s=2")
	assert.Contains(t, payload, "v=2")
	assert.Contains(t, payload, "q=2", "responses must be suppressed")
	assert.NotContains(t, payload, "m=", "single transfers carry no continuation flag")
}

func TestKittyChunking(t *testing.T) {
	img := gradientImage(64, 64) // 16 KiB raw, several chunks
	enc := &KittyEncoder{}

	frame, err := enc.Encode(img, EncodeOptions{CellWidth: 8, CellHeight: 16})
	require.NoError(t, err)

	payload := string(frame.Payload)
	chunks := strings.Split(payload, "\x1b\\")
	chunks = chunks[:len(chunks)-1] // trailing terminator leaves an empty tail
	require.Greater(t, len(chunks), 1, "64x64 RGBA must not fit one chunk")

	assert.Contains(t, chunks[0], "m=1", "first chunk announces continuation")
	last := chunks[len(chunks)-1]
	assert.Contains(t, last, "m=0", "last chunk must clear the continuation flag")
	for _, c := range chunks[1 : len(chunks)-1] {
		assert.Contains(t, c, "m=1")
	}

	// Every chunk's base64 payload respects the protocol bound.
	for _, c := range chunks {
		_, data, ok := strings.Cut(c, ";")
		require.True(t, ok)
		assert.LessOrEqual(t, len(data), ChunkSize)
	}
}

func TestKittyPayloadRoundTrip(t *testing.T) {
	img := gradientImage(16, 16)
	enc := &KittyEncoder{}

	frame, err := enc.Encode(img, EncodeOptions{CellWidth: 8, CellHeight: 16})
	require.NoError(t, err)

	var b64 strings.Builder
	for _, chunk := range strings.Split(string(frame.Payload), "\x1b\\") {
		if chunk == "" {
			continue
		}
		_, data, ok := strings.Cut(chunk, ";")
		require.True(t, ok)
		b64.WriteString(data)
	}

	decoded, err := base64.StdEncoding.DecodeString(b64.String())
	require.NoError(t, err)
	assert.Equal(t, rgbaSamples(img), decoded, "chunks must reassemble to the raw RGBA samples")
}

func TestKittyDeterminism(t *testing.T) {
	img := gradientImage(20, 10)
	enc := &KittyEncoder{}
	opts := EncodeOptions{Cols: 4, Rows: 2, CellWidth: 8, CellHeight: 16, ImageID: 7}

	first, err := enc.Encode(img, opts)
	require.NoError(t, err)
	second, err := enc.Encode(img, opts)
	require.NoError(t, err)

	assert.Equal(t, first.Payload, second.Payload)
	assert.Contains(t, string(first.Payload), "i=7")
}

func TestKittyInvalidInput(t *testing.T) {
	enc := &KittyEncoder{}
	_, err := enc.Encode(nil, EncodeOptions{})
	assert.ErrorIs(t, err, ErrInvalidDimensions)
}

func TestKittyDelete(t *testing.T) {
	assert.Equal(t, "\x1b_Ga=d,d=A,q=2\x1b\\", string(KittyDelete(0, false)))
	assert.Contains(t, string(KittyDelete(3, false)), "i=3")
	assert.True(t, strings.HasPrefix(string(KittyDelete(0, true)), "\x1bPtmux;"))
}
