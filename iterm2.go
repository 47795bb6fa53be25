package termpix

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"
)

// ITerm2Encoder emits the iTerm2 inline images protocol: the whole pixel
// grid re-encoded as a lossless PNG, base64'd, and wrapped in a single
// OSC 1337 File sequence with cell-size placement hints.
type ITerm2Encoder struct{}

// Protocol returns ITerm2.
func (e *ITerm2Encoder) Protocol() Protocol {
	return ITerm2
}

// Encode produces the inline-file escape sequence for the image.
func (e *ITerm2Encoder) Encode(img image.Image, opts EncodeOptions) (*EncodedFrame, error) {
	if img == nil {
		return nil, ErrInvalidDimensions
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrInvalidDimensions
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	data := buf.Bytes()

	cols, rows := occupiedCells(w, h, opts)

	params := []string{
		"inline=1",
		"doNotMoveCursor=1",
		fmt.Sprintf("size=%d", len(data)),
		// Unitless width/height are cell counts.
		fmt.Sprintf("width=%d", cols),
		fmt.Sprintf("height=%d", rows),
	}
	if opts.PreserveAspectRatio {
		params = append(params, "preserveAspectRatio=1")
	}

	seq := fmt.Sprintf("\x1b]1337;File=%s:%s\x07",
		strings.Join(params, ";"), base64Encode(data))
	out := maybeWrapTmux(seq, opts.Tmux)

	return &EncodedFrame{
		Protocol:    ITerm2,
		Payload:     []byte(out),
		Cols:        cols,
		Rows:        rows,
		PixelWidth:  w,
		PixelHeight: h,
	}, nil
}
