package termpix

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCaps(cellW, cellH int) *TerminalCapabilities {
	return &TerminalCapabilities{CellWidth: cellW, CellHeight: cellH}
}

func TestTargetPixels(t *testing.T) {
	tests := []struct {
		name         string
		policy       ResizePolicy
		allowUpscale bool
		cols, rows   int
		cellW, cellH int
		srcW, srcH   int
		wantW, wantH int
	}{
		{
			// The 80x80 box exceeds the 64x64 source, so no-upscale keeps the
			// native resolution.
			name:  "contain clamps to source",
			cols:  8, rows: 4, cellW: 10, cellH: 20,
			srcW: 64, srcH: 64,
			wantW: 64, wantH: 64,
		},
		{
			name:  "contain shrinks wide image by width",
			cols:  10, rows: 10, cellW: 8, cellH: 16,
			srcW: 800, srcH: 400,
			wantW: 80, wantH: 40,
		},
		{
			name:  "contain shrinks tall image by height",
			cols:  10, rows: 5, cellW: 8, cellH: 16,
			srcW: 400, srcH: 800,
			wantW: 40, wantH: 80,
		},
		{
			name:         "contain upscales when allowed",
			allowUpscale: true,
			cols:         8, rows: 4, cellW: 10, cellH: 20,
			srcW: 64, srcH: 64,
			wantW: 80, wantH: 80,
		},
		{
			name:   "cover fills the box",
			policy: FitCover,
			cols:   10, rows: 5, cellW: 8, cellH: 16,
			srcW: 800, srcH: 400,
			wantW: 80, wantH: 80,
		},
		{
			name:   "exact ignores aspect",
			policy: Exact,
			cols:   10, rows: 5, cellW: 8, cellH: 16,
			srcW: 800, srcH: 400,
			wantW: 80, wantH: 80,
		},
		{
			name:   "exact clamps per axis without upscale",
			policy: Exact,
			cols:   10, rows: 5, cellW: 8, cellH: 16,
			srcW: 60, srcH: 400,
			wantW: 60, wantH: 80,
		},
		{
			name:  "degenerate request",
			cols:  0, rows: 4, cellW: 8, cellH: 16,
			srcW: 64, srcH: 64,
			wantW: 0, wantH: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &Resizer{Policy: tt.policy, AllowUpscale: tt.allowUpscale}
			w, h := r.TargetPixels(tt.cols, tt.rows, testCaps(tt.cellW, tt.cellH), tt.srcW, tt.srcH)
			assert.Equal(t, tt.wantW, w)
			assert.Equal(t, tt.wantH, h)
		})
	}
}

func TestStillValid(t *testing.T) {
	r := &Resizer{TolerancePx: 8}

	assert.True(t, r.StillValid(64, 64, 64, 64))
	assert.True(t, r.StillValid(64, 64, 72, 64))
	assert.True(t, r.StillValid(64, 64, 56, 58))
	assert.False(t, r.StillValid(64, 64, 73, 64))
	assert.False(t, r.StillValid(64, 64, 64, 80))

	strict := &Resizer{}
	assert.True(t, strict.StillValid(64, 64, 64, 64))
	assert.False(t, strict.StillValid(64, 64, 65, 64))
}

func TestResampleContain(t *testing.T) {
	r := &Resizer{}
	src := gradientImage(100, 50)

	out := r.Resample(src, 50, 25)
	require.NotNil(t, out)
	assert.Equal(t, 50, out.Bounds().Dx())
	assert.Equal(t, 25, out.Bounds().Dy())

	// Same size short-circuits to the original.
	same := r.Resample(src, 100, 50)
	assert.Same(t, src, same.(*image.RGBA))
}

func TestResampleCoverCrops(t *testing.T) {
	r := &Resizer{Policy: FitCover}

	// Left half red, right half blue. Covering a square crop from the wide
	// source must cut both edges and keep the center seam.
	src := image.NewRGBA(image.Rect(0, 0, 200, 100))
	for y := 0; y < 100; y++ {
		for x := 0; x < 200; x++ {
			c := color.RGBA{255, 0, 0, 255}
			if x >= 100 {
				c = color.RGBA{0, 0, 255, 255}
			}
			src.SetRGBA(x, y, c)
		}
	}

	out := r.Resample(src, 50, 50)
	require.NotNil(t, out)
	assert.Equal(t, 50, out.Bounds().Dx())
	assert.Equal(t, 50, out.Bounds().Dy())

	rgba := flattenToRGBA(out)
	left := rgba.RGBAAt(0, 25)
	right := rgba.RGBAAt(49, 25)
	assert.Equal(t, uint8(255), left.R)
	assert.Equal(t, uint8(255), right.B)
}

func TestCropCenter(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			src.SetRGBA(x, y, color.RGBA{uint8(x * 25), uint8(y * 25), 0, 255})
		}
	}

	out := CropCenter(src, 4, 4)
	assert.Equal(t, 4, out.Bounds().Dx())
	assert.Equal(t, 4, out.Bounds().Dy())

	// Pixel (0,0) of the crop is pixel (3,3) of the source.
	rgba := flattenToRGBA(out)
	assert.Equal(t, uint8(75), rgba.RGBAAt(0, 0).R)
	assert.Equal(t, uint8(75), rgba.RGBAAt(0, 0).G)

	// Larger than the source is a no-op.
	assert.Same(t, src, CropCenter(src, 20, 20).(*image.RGBA))
}

func TestParseResizePolicy(t *testing.T) {
	assert.Equal(t, FitContain, ParseResizePolicy("contain"))
	assert.Equal(t, FitCover, ParseResizePolicy("cover"))
	assert.Equal(t, Exact, ParseResizePolicy("exact"))
	assert.Equal(t, FitContain, ParseResizePolicy("bogus"))

	assert.Equal(t, "contain", FitContain.String())
	assert.Equal(t, "cover", FitCover.String())
	assert.Equal(t, "exact", Exact.String())
}
