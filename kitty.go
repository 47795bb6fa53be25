package termpix

import (
	"fmt"
	"image"
	"strings"
)

// KittyEncoder emits kitty graphics protocol APC sequences. The pixel grid is
// transferred as raw RGBA (f=32) split into protocol-bounded base64 chunks;
// the first chunk carries the transfer action and image metadata, the last
// one clears the continuation flag.
type KittyEncoder struct{}

// Protocol returns Kitty.
func (e *KittyEncoder) Protocol() Protocol {
	return Kitty
}

// Encode produces the chunked transfer sequence for the image.
func (e *KittyEncoder) Encode(img image.Image, opts EncodeOptions) (*EncodedFrame, error) {
	if img == nil {
		return nil, ErrInvalidDimensions
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrInvalidDimensions
	}

	raw := rgbaSamples(img)
	chunks := chunkBase64(raw, ChunkSize)

	var sb strings.Builder
	for i, chunk := range chunks {
		ctl := kittyControl(i, len(chunks), w, h, opts)
		seq := fmt.Sprintf("\x1b_G%s;%s\x1b\\", ctl, chunk)
		sb.WriteString(maybeWrapTmux(seq, opts.Tmux))
	}

	cols, rows := occupiedCells(w, h, opts)
	return &EncodedFrame{
		Protocol:    Kitty,
		Payload:     []byte(sb.String()),
		Cols:        cols,
		Rows:        rows,
		PixelWidth:  w,
		PixelHeight: h,
	}, nil
}

// kittyControl builds the control data for one chunk. Only the first chunk
// names the action and image metadata; continuation chunks carry nothing but
// the m flag.
func kittyControl(index, total, w, h int, opts EncodeOptions) string {
	if index > 0 {
		if index == total-1 {
			return "m=0"
		}
		return "m=1"
	}

	parts := []string{"a=T", "f=32", fmt.Sprintf("s=%d", w), fmt.Sprintf("v=%d", h)}
	if opts.ImageID > 0 {
		parts = append(parts, fmt.Sprintf("i=%d", opts.ImageID))
	}
	if opts.Cols > 0 {
		parts = append(parts, fmt.Sprintf("c=%d", opts.Cols))
	}
	if opts.Rows > 0 {
		parts = append(parts, fmt.Sprintf("r=%d", opts.Rows))
	}
	// q=2 suppresses terminal responses; the render loop never reads back.
	parts = append(parts, "q=2")
	if total > 1 {
		parts = append(parts, "m=1")
	}
	return strings.Join(parts, ",")
}

// KittyDelete builds the sequence that removes the image with the given id
// from the terminal, or all images when id is zero.
func KittyDelete(id uint32, tmux bool) []byte {
	seq := "\x1b_Ga=d,d=A,q=2\x1b\\"
	if id > 0 {
		seq = fmt.Sprintf("\x1b_Ga=d,d=I,i=%d,q=2\x1b\\", id)
	}
	return []byte(maybeWrapTmux(seq, tmux))
}

// rgbaSamples serializes the image's pixels as interleaved 8-bit RGBA, the
// layout the f=32 transfer format expects.
func rgbaSamples(img image.Image) []byte {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	if rgba, ok := img.(*image.RGBA); ok && rgba.Stride == w*4 && bounds.Min == (image.Point{}) {
		return rgba.Pix[:w*h*4]
	}

	out := make([]byte, 0, w*h*4)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, a := img.At(x, y).RGBA()
			out = append(out, byte(r>>8), byte(g>>8), byte(b>>8), byte(a>>8))
		}
	}
	return out
}
