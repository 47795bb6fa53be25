package termpix

import (
	"fmt"
	"image"
	"strings"
)

// halfBlock is the upper-half-block glyph; foreground paints the top half of
// the cell, background the bottom half.
const halfBlock = "▀"

// HalfblocksEncoder approximates the image with colored half-block glyphs,
// two vertical samples per cell. It needs nothing from the terminal beyond
// 24-bit SGR color and therefore never fails on capability grounds.
type HalfblocksEncoder struct{}

// Protocol returns Halfblocks.
func (e *HalfblocksEncoder) Protocol() Protocol {
	return Halfblocks
}

// Encode samples the image down to one color pair per target cell and emits
// one half-block glyph per cell with truecolor foreground/background codes.
func (e *HalfblocksEncoder) Encode(img image.Image, opts EncodeOptions) (*EncodedFrame, error) {
	if img == nil {
		return nil, ErrInvalidDimensions
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrInvalidDimensions
	}

	cols, rows := opts.Cols, opts.Rows
	if cols <= 0 {
		cols = w
	}
	if rows <= 0 {
		rows = (h + 1) / 2
	}

	rgba := flattenToRGBA(img)

	var sb strings.Builder
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			// The vertical sample grid is twice as fine as the cell grid.
			top := averageRegion(rgba, col, row*2, cols, rows*2)
			bottom := averageRegion(rgba, col, row*2+1, cols, rows*2)
			fmt.Fprintf(&sb, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm%s",
				top[0], top[1], top[2],
				bottom[0], bottom[1], bottom[2],
				halfBlock)
		}
		sb.WriteString("\x1b[0m")
		if row < rows-1 {
			sb.WriteByte('\n')
		}
	}

	return &EncodedFrame{
		Protocol:    Halfblocks,
		Payload:     []byte(sb.String()),
		Cols:        cols,
		Rows:        rows,
		PixelWidth:  w,
		PixelHeight: h,
	}, nil
}

// averageRegion box-averages the pixels that cell (cx, cy) of a gridW x gridH
// sample grid covers in the source image.
func averageRegion(img *image.RGBA, cx, cy, gridW, gridH int) [3]uint8 {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	x0 := cx * w / gridW
	x1 := (cx + 1) * w / gridW
	y0 := cy * h / gridH
	y1 := (cy + 1) * h / gridH
	if x1 <= x0 {
		x1 = x0 + 1
	}
	if y1 <= y0 {
		y1 = y0 + 1
	}
	if x1 > w {
		x1 = w
	}
	if y1 > h {
		y1 = h
	}
	if x0 >= w || y0 >= h {
		return [3]uint8{}
	}

	var r, g, b, n uint64
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			c := img.RGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			r += uint64(c.R)
			g += uint64(c.G)
			b += uint64(c.B)
			n++
		}
	}
	if n == 0 {
		return [3]uint8{}
	}
	return [3]uint8{uint8(r / n), uint8(g / n), uint8(b / n)}
}

// PlaceholderGlyphs renders a neutral filler block of the given cell area so
// layout does not jump while an encode job is still in flight.
func PlaceholderGlyphs(cols, rows int) []byte {
	if cols <= 0 || rows <= 0 {
		return nil
	}
	line := strings.Repeat("░", cols)
	var sb strings.Builder
	sb.WriteString("\x1b[2m")
	for row := 0; row < rows; row++ {
		sb.WriteString(line)
		if row < rows-1 {
			sb.WriteByte('\n')
		}
	}
	sb.WriteString("\x1b[0m")
	return []byte(sb.String())
}
