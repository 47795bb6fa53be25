package termpix

import (
	"fmt"
	"image"
	"image/color"
	"sort"
	"strings"

	"github.com/makeworld-the-better-one/dither/v2"
	"github.com/soniakeys/quant/median"
)

// SixelMaxColors is the palette bound imposed by the sixel protocol.
const SixelMaxColors = 256

// sixelFallbackColors are the coarser palette sizes tried when quantization
// at the requested bound still overflows the protocol limit.
var sixelFallbackColors = []int{64, 16}

// SixelEncoder emits DEC sixel streams: a palette prologue followed by
// per-band run-length-encoded color planes. Output is deterministic for a
// given image and options.
type SixelEncoder struct{}

// Protocol returns Sixel.
func (e *SixelEncoder) Protocol() Protocol {
	return Sixel
}

// Encode produces the sixel escape sequence for the image. When the image
// cannot be reduced to the requested palette size, progressively coarser
// quantization is attempted before giving up with ErrPaletteOverflow.
func (e *SixelEncoder) Encode(img image.Image, opts EncodeOptions) (*EncodedFrame, error) {
	if img == nil {
		return nil, ErrInvalidDimensions
	}
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, ErrInvalidDimensions
	}

	maxColors := opts.MaxColors
	if maxColors <= 0 || maxColors > SixelMaxColors {
		maxColors = SixelMaxColors
	}
	if maxColors < 2 {
		maxColors = 2
	}

	rgba := flattenToRGBA(img)

	var paletted *image.Paletted
	var err error
	for _, n := range append([]int{maxColors}, sixelFallbackColors...) {
		if n > maxColors {
			continue
		}
		paletted, err = sixelQuantize(rgba, n, opts.Dither)
		if err == nil {
			break
		}
	}
	if err != nil {
		return nil, err
	}

	var sb strings.Builder
	sb.WriteString("\x1bPq")
	fmt.Fprintf(&sb, "\"1;1;%d;%d", w, h)
	writeSixelPalette(&sb, paletted.Palette)
	writeSixelBands(&sb, paletted, w, h)
	sb.WriteString("\x1b\\")

	out := maybeWrapTmux(sb.String(), opts.Tmux)

	cols, rows := occupiedCells(w, h, opts)
	return &EncodedFrame{
		Protocol:    Sixel,
		Payload:     []byte(out),
		Cols:        cols,
		Rows:        rows,
		PixelWidth:  w,
		PixelHeight: h,
	}, nil
}

// sixelQuantize reduces the image to at most maxColors colors. Images that
// already fit the bound keep their exact palette; everything else goes
// through median-cut quantization with optional error diffusion.
func sixelQuantize(img *image.RGBA, maxColors int, mode DitherMode) (*image.Paletted, error) {
	pal, exact := exactPalette(img, maxColors)
	if !exact {
		quantizer := median.Quantizer(maxColors)
		pal = quantizer.Palette(img).ColorPalette()

		switch mode {
		case DitherFloydSteinberg:
			d := dither.NewDitherer(pal)
			d.Matrix = dither.FloydSteinberg
			img = flattenToRGBA(d.Dither(img))
		case DitherStucki:
			d := dither.NewDitherer(pal)
			d.Matrix = dither.Stucki
			img = flattenToRGBA(d.Dither(img))
		}
	}
	if len(pal) == 0 || len(pal) > SixelMaxColors {
		return nil, ErrPaletteOverflow
	}

	bounds := img.Bounds()
	dst := image.NewPaletted(bounds, pal)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			dst.SetColorIndex(x, y, uint8(pal.Index(img.At(x, y))))
		}
	}
	return dst, nil
}

// exactPalette collects the image's unique colors if there are at most
// maxColors of them, sorted for output determinism. The second return is
// false when the image needs quantization instead.
func exactPalette(img *image.RGBA, maxColors int) (color.Palette, bool) {
	seen := make(map[color.RGBA]struct{})
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			seen[img.RGBAAt(x, y)] = struct{}{}
			if len(seen) > maxColors {
				return nil, false
			}
		}
	}

	colors := make([]color.RGBA, 0, len(seen))
	for c := range seen {
		colors = append(colors, c)
	}
	sort.Slice(colors, func(i, j int) bool {
		a, b := colors[i], colors[j]
		if a.R != b.R {
			return a.R < b.R
		}
		if a.G != b.G {
			return a.G < b.G
		}
		return a.B < b.B
	})

	pal := make(color.Palette, len(colors))
	for i, c := range colors {
		pal[i] = c
	}
	return pal, true
}

// writeSixelPalette emits one color-definition register per palette entry,
// with channels scaled to the protocol's 0-100 range.
func writeSixelPalette(sb *strings.Builder, pal color.Palette) {
	for i, c := range pal {
		r, g, b, _ := c.RGBA()
		fmt.Fprintf(sb, "#%d;2;%d;%d;%d", i,
			(r>>8)*100/255, (g>>8)*100/255, (b>>8)*100/255)
	}
}

// writeSixelBands encodes the paletted image as horizontal bands of six
// pixel rows. Within a band each used color gets one RLE pass over the
// columns, separated by carriage returns ($), with a line feed (-) between
// bands.
func writeSixelBands(sb *strings.Builder, img *image.Paletted, w, h int) {
	nBands := (h + 5) / 6
	for band := 0; band < nBands; band++ {
		y0 := band * 6

		used := make([]bool, len(img.Palette))
		for dy := 0; dy < 6 && y0+dy < h; dy++ {
			for x := 0; x < w; x++ {
				used[img.ColorIndexAt(x, y0+dy)] = true
			}
		}

		first := true
		for ci := range img.Palette {
			if !used[ci] {
				continue
			}
			if !first {
				sb.WriteByte('$') // return to band start for the next plane
			}
			first = false

			fmt.Fprintf(sb, "#%d", ci)
			writeSixelRuns(sb, img, uint8(ci), y0, w, h)
		}

		if band < nBands-1 {
			sb.WriteByte('-')
		}
	}
}

// writeSixelRuns run-length-encodes one color plane of one band. Each output
// character carries the six vertical pixels of a column; runs of four or
// more identical characters use the !<count> repeat introducer.
func writeSixelRuns(sb *strings.Builder, img *image.Paletted, ci uint8, y0, w, h int) {
	flushRun := func(ch byte, count int) {
		if count >= 4 {
			fmt.Fprintf(sb, "!%d%c", count, ch)
			return
		}
		for i := 0; i < count; i++ {
			sb.WriteByte(ch)
		}
	}

	var runChar byte
	runLen := 0
	for x := 0; x < w; x++ {
		var bits byte
		for dy := 0; dy < 6 && y0+dy < h; dy++ {
			if img.ColorIndexAt(x, y0+dy) == ci {
				bits |= 1 << dy
			}
		}
		ch := bits + 63

		if runLen > 0 && ch == runChar {
			runLen++
			continue
		}
		if runLen > 0 {
			flushRun(runChar, runLen)
		}
		runChar, runLen = ch, 1
	}
	if runLen > 0 {
		flushRun(runChar, runLen)
	}
}

// flattenToRGBA converts any image to RGBA with alpha composited over black,
// since sixel has no transparency channel.
func flattenToRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && isOpaque(rgba) {
		return rgba
	}

	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			// RGBA() is alpha-premultiplied, which is exactly "composited
			// over black".
			r, g, b, _ := img.At(x, y).RGBA()
			dst.SetRGBA(x-bounds.Min.X, y-bounds.Min.Y, color.RGBA{
				R: uint8(r >> 8),
				G: uint8(g >> 8),
				B: uint8(b >> 8),
				A: 0xff,
			})
		}
	}
	return dst
}

func isOpaque(img *image.RGBA) bool {
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			if img.RGBAAt(x, y).A != 0xff {
				return false
			}
		}
	}
	return true
}

// occupiedCells computes the cell area a payload covers: the explicit target
// when set, otherwise the pixel size divided by the cell size, rounded up.
func occupiedCells(pxW, pxH int, opts EncodeOptions) (cols, rows int) {
	cols, rows = opts.Cols, opts.Rows
	cw, ch := opts.CellWidth, opts.CellHeight
	if cw <= 0 {
		cw = 8
	}
	if ch <= 0 {
		ch = 16
	}
	if cols <= 0 {
		cols = (pxW + cw - 1) / cw
	}
	if rows <= 0 {
		rows = (pxH + ch - 1) / ch
	}
	return cols, rows
}
