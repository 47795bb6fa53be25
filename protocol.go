package termpix

import "image"

// Protocol identifies a terminal graphics protocol.
type Protocol int

const (
	// Auto selects the best protocol from the probed capabilities.
	Auto Protocol = iota
	// Halfblocks renders the image as colored half-block glyphs. It works on
	// any terminal that supports 24-bit color escape codes and is the
	// universal fallback.
	Halfblocks
	// Sixel is the DEC sixel raster protocol (palette + per-line RLE bands).
	Sixel
	// Kitty is the kitty graphics protocol (chunked base64 APC transfers).
	Kitty
	// ITerm2 is the iTerm2 inline images protocol (whole-file base64 embed).
	ITerm2
)

// String returns the protocol name.
func (p Protocol) String() string {
	switch p {
	case Auto:
		return "auto"
	case Halfblocks:
		return "halfblocks"
	case Sixel:
		return "sixel"
	case Kitty:
		return "kitty"
	case ITerm2:
		return "iterm2"
	default:
		return "unknown"
	}
}

// ParseProtocol converts a protocol name (as found in config files) back to a
// Protocol. Unknown names map to Auto.
func ParseProtocol(name string) Protocol {
	switch name {
	case "halfblocks":
		return Halfblocks
	case "sixel":
		return Sixel
	case "kitty":
		return Kitty
	case "iterm2":
		return ITerm2
	default:
		return Auto
	}
}

// EncodedFrame is a finished, immutable protocol payload together with the
// placement metadata needed to splice it into a screen buffer.
type EncodedFrame struct {
	Protocol Protocol
	Payload  []byte

	// Cell area occupied by the payload when written at the cursor.
	Cols int
	Rows int

	// Pixel area the payload represents, after resizing. Used by the resize
	// tolerance check to decide whether a cached frame is still valid.
	PixelWidth  int
	PixelHeight int
}

// EncodeOptions carries the per-frame parameters shared by all encoders.
type EncodeOptions struct {
	// Target cell area the payload should occupy.
	Cols int
	Rows int

	// Pixel size of one terminal cell, from the capability probe.
	CellWidth  int
	CellHeight int

	// Sixel palette bound. Zero means the protocol maximum (256).
	MaxColors int
	// Dithering applied during sixel palette reduction.
	Dither DitherMode

	// Kitty image id, so multiple images can coexist and be deleted
	// individually.
	ImageID uint32

	// iTerm2 aspect ratio hint.
	PreserveAspectRatio bool

	// Wrap emitted sequences for tmux passthrough.
	Tmux bool
}

// DitherMode selects the error-diffusion matrix used during palette
// reduction.
type DitherMode int

const (
	DitherNone DitherMode = iota
	DitherFloydSteinberg
	DitherStucki
)

// Encoder turns a pixel grid into one protocol's byte stream. Implementations
// are pure: the same image and options always produce byte-identical output.
type Encoder interface {
	// Encode produces the escape sequence payload for the image. The image
	// is expected to already be resampled to its target pixel size.
	Encode(img image.Image, opts EncodeOptions) (*EncodedFrame, error)

	// Protocol returns the protocol this encoder emits.
	Protocol() Protocol
}

// NewEncoder returns the encoder for a specific protocol. Auto is not a
// concrete protocol; resolve it against capabilities first.
func NewEncoder(p Protocol) (Encoder, error) {
	switch p {
	case Sixel:
		return &SixelEncoder{}, nil
	case Kitty:
		return &KittyEncoder{}, nil
	case ITerm2:
		return &ITerm2Encoder{}, nil
	case Halfblocks:
		return &HalfblocksEncoder{}, nil
	default:
		return nil, &UnsupportedProtocolError{Protocol: p}
	}
}

// EncoderFor resolves Auto against the probed capabilities and returns the
// matching encoder. It never fails: with no graphics support the halfblocks
// encoder is returned.
func EncoderFor(p Protocol, caps *TerminalCapabilities) Encoder {
	if p == Auto {
		p = caps.BestProtocol()
	}
	enc, err := NewEncoder(p)
	if err != nil {
		return &HalfblocksEncoder{}
	}
	return enc
}
