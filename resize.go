package termpix

import (
	"image"
	"image/draw"

	"github.com/nfnt/resize"
	xdraw "golang.org/x/image/draw"
)

// ResizePolicy controls how an image is scaled to a target cell area.
type ResizePolicy int

const (
	// FitContain scales down preserving aspect ratio so the whole image fits
	// inside the target box.
	FitContain ResizePolicy = iota
	// FitCover scales preserving aspect ratio so the image fills the target
	// box, cropping the overflow from the center.
	FitCover
	// Exact scales to the target box ignoring aspect ratio.
	Exact
)

// String returns the policy name used in config files.
func (p ResizePolicy) String() string {
	switch p {
	case FitCover:
		return "cover"
	case Exact:
		return "exact"
	default:
		return "contain"
	}
}

// ParseResizePolicy maps a config name to a policy. Unknown names mean
// FitContain.
func ParseResizePolicy(name string) ResizePolicy {
	switch name {
	case "cover":
		return FitCover
	case "exact":
		return Exact
	default:
		return FitContain
	}
}

// Resizer computes target pixel resolutions from cell areas using the probed
// cell size, and decides when a cached payload is still close enough to skip
// a re-encode.
type Resizer struct {
	Policy ResizePolicy

	// AllowUpscale permits scaling beyond the source's native resolution.
	// Off by default: an oversized payload wastes terminal bandwidth for no
	// visible gain.
	AllowUpscale bool

	// TolerancePx is the per-axis pixel slack within which a cached frame is
	// reused instead of re-encoded. Absorbs single-cell jitter from terminal
	// reflow.
	TolerancePx int
}

// TargetPixels converts a desired cell area into the pixel resolution the
// image should be resampled to.
func (r *Resizer) TargetPixels(cols, rows int, caps *TerminalCapabilities, srcW, srcH int) (int, int) {
	if cols <= 0 || rows <= 0 || srcW <= 0 || srcH <= 0 {
		return 0, 0
	}

	boxW := cols * caps.CellWidth
	boxH := rows * caps.CellHeight
	if boxW <= 0 || boxH <= 0 {
		return 0, 0
	}

	switch r.Policy {
	case Exact:
		if !r.AllowUpscale {
			boxW = min(boxW, srcW)
			boxH = min(boxH, srcH)
		}
		return boxW, boxH

	case FitCover:
		ratio := max(float64(boxW)/float64(srcW), float64(boxH)/float64(srcH))
		if !r.AllowUpscale && ratio > 1 {
			ratio = 1
		}
		w := int(float64(srcW) * ratio)
		h := int(float64(srcH) * ratio)
		// The crop happens at resample time; the target reports the box,
		// clamped to what the scaled image can actually cover.
		return min(boxW, w), min(boxH, h)

	default: // FitContain
		ratio := min(float64(boxW)/float64(srcW), float64(boxH)/float64(srcH))
		if !r.AllowUpscale && ratio > 1 {
			ratio = 1
		}
		w := int(float64(srcW) * ratio)
		h := int(float64(srcH) * ratio)
		if w < 1 {
			w = 1
		}
		if h < 1 {
			h = 1
		}
		return w, h
	}
}

// StillValid reports whether a payload representing cachedW x cachedH pixels
// can serve a request targeting targetW x targetH without re-encoding.
func (r *Resizer) StillValid(cachedW, cachedH, targetW, targetH int) bool {
	dx := cachedW - targetW
	if dx < 0 {
		dx = -dx
	}
	dy := cachedH - targetH
	if dy < 0 {
		dy = -dy
	}
	return dx <= r.TolerancePx && dy <= r.TolerancePx
}

// Resample scales img to the target pixel size under the resizer's policy.
// FitCover scales to fill and center-crops the overflow.
func (r *Resizer) Resample(img image.Image, targetW, targetH int) image.Image {
	if img == nil || targetW <= 0 || targetH <= 0 {
		return img
	}
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if srcW == targetW && srcH == targetH {
		return img
	}

	if r.Policy == FitCover {
		ratio := max(float64(targetW)/float64(srcW), float64(targetH)/float64(srcH))
		if !r.AllowUpscale && ratio > 1 {
			ratio = 1
		}
		scaledW := int(float64(srcW) * ratio)
		scaledH := int(float64(srcH) * ratio)
		scaled := scaleImage(img, scaledW, scaledH)
		return CropCenter(scaled, targetW, targetH)
	}

	return scaleImage(img, targetW, targetH)
}

// scaleImage resizes with bilinear filtering for quality when shrinking a
// lot, nearest-neighbor otherwise.
func scaleImage(img image.Image, w, h int) image.Image {
	bounds := img.Bounds()
	if bounds.Dx() == w && bounds.Dy() == h {
		return img
	}
	if w <= 0 || h <= 0 {
		return img
	}

	if bounds.Dx()*bounds.Dy() > w*h*4 {
		dst := image.NewRGBA(image.Rect(0, 0, w, h))
		xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)
		return dst
	}
	return resize.Resize(uint(w), uint(h), img, resize.NearestNeighbor)
}

// CropCenter crops an image to the target dimensions around its center.
func CropCenter(img image.Image, targetW, targetH int) image.Image {
	bounds := img.Bounds()
	srcW, srcH := bounds.Dx(), bounds.Dy()
	if targetW >= srcW && targetH >= srcH {
		return img
	}
	if targetW > srcW {
		targetW = srcW
	}
	if targetH > srcH {
		targetH = srcH
	}

	offsetX := (srcW - targetW) / 2
	offsetY := (srcH - targetH) / 2

	dst := image.NewRGBA(image.Rect(0, 0, targetW, targetH))
	draw.Draw(dst, dst.Bounds(), img,
		image.Pt(bounds.Min.X+offsetX, bounds.Min.Y+offsetY), draw.Src)
	return dst
}
