package termpix

import (
	"fmt"
	"io"
)

// DisplayKind tells the host UI what to splice into its screen buffer for
// this frame.
type DisplayKind int

const (
	// EmitBytes: write the frame payload at the widget's cell origin.
	EmitBytes DisplayKind = iota
	// ReusePrevious: keep whatever the previous frame drew for this image.
	ReusePrevious
	// EmitPlaceholderGlyphs: draw the neutral filler so layout stays put.
	EmitPlaceholderGlyphs
)

// DisplayAction is the per-frame answer of the render bridge.
type DisplayAction struct {
	Kind  DisplayKind
	Frame *EncodedFrame // set for EmitBytes and ReusePrevious

	// Placeholder payload for EmitPlaceholderGlyphs.
	Placeholder []byte

	// Err carries a decode failure surfaced from a background job. The
	// action is still usable (placeholder); the host decides how to show
	// the error.
	Err error
}

// Bytes returns whatever this action wants written to the terminal, which
// may be nil for ReusePrevious.
func (a DisplayAction) Bytes() []byte {
	switch a.Kind {
	case EmitBytes:
		return a.Frame.Payload
	case EmitPlaceholderGlyphs:
		return a.Placeholder
	default:
		return nil
	}
}

// WriteTo writes the action's payload to the terminal stream. A write
// failure is fatal to this frame's render only, never to the process.
func (a DisplayAction) WriteTo(w io.Writer) (int64, error) {
	data := a.Bytes()
	if len(data) == 0 {
		return 0, nil
	}
	n, err := w.Write(data)
	if err != nil {
		return int64(n), fmt.Errorf("failed to write frame payload: %w", err)
	}
	return int64(n), nil
}

// Bridge is the seam between this library and the host UI framework. The
// host calls Render once per frame per image; Render never blocks, it only
// does cache lookups and, at worst, enqueues background work.
type Bridge struct {
	caps     *TerminalCapabilities
	encoder  Encoder
	cache    *FrameCache
	pipeline *Pipeline
	resizer  Resizer
}

// NewBridge wires a bridge from the probed capabilities and configuration.
func NewBridge(caps *TerminalCapabilities, cfg Config) *Bridge {
	cfg = cfg.withDefaults()

	encoder := EncoderFor(ParseProtocol(cfg.ForceProtocol), caps)
	cache := NewFrameCache(cfg.CacheCapacity)
	resizer := Resizer{
		Policy:       ParseResizePolicy(cfg.Policy),
		AllowUpscale: cfg.AllowUpscale,
		TolerancePx:  cfg.TolerancePx,
	}
	pipeline := NewPipeline(caps, encoder, cache, PipelineOptions{
		Workers:    cfg.Workers,
		MaxPending: cfg.MaxPending,
		Resizer:    resizer,
		Encode: EncodeOptions{
			MaxColors: cfg.MaxColors,
			Dither:    ParseDitherMode(cfg.Dither),
		},
	})

	return &Bridge{
		caps:     caps,
		encoder:  encoder,
		cache:    cache,
		pipeline: pipeline,
		resizer:  resizer,
	}
}

// Close shuts down the background workers.
func (b *Bridge) Close() {
	b.pipeline.Close()
}

// Protocol returns the protocol the bridge encodes to.
func (b *Bridge) Protocol() Protocol {
	return b.encoder.Protocol()
}

// Capabilities returns the probed capabilities the bridge was built with.
func (b *Bridge) Capabilities() *TerminalCapabilities {
	return b.caps
}

// Invalidate drops all cached frames for a content identity. Call it when
// the pixels behind an identity change.
func (b *Bridge) Invalidate(id string) {
	b.cache.Invalidate(id)
}

// Render answers one frame's draw request. Cache hit: emit the payload.
// Miss: schedule background work and reuse the previous payload for this
// identity if one exists, otherwise emit placeholder glyphs.
func (b *Bridge) Render(req RenderRequest) DisplayAction {
	key := CacheKey{ID: req.ID, Cols: req.Cols, Rows: req.Rows, Protocol: b.encoder.Protocol()}

	if frame, ok := b.cache.Get(key); ok {
		return DisplayAction{Kind: EmitBytes, Frame: frame}
	}

	// Near-miss: a frame whose represented pixel area is within tolerance of
	// this request's target still counts as a hit, so single-cell reflow
	// jitter does not trigger a re-encode.
	if frame, ok := b.cache.Match(req.ID, key.Protocol, func(f *EncodedFrame) bool {
		return b.withinTolerance(f, req)
	}); ok {
		return DisplayAction{Kind: EmitBytes, Frame: frame}
	}

	state, jobErr := b.pipeline.Poll(key)
	if state == JobReady {
		// Published between the cache lookup and the poll.
		if frame, ok := b.cache.Get(key); ok {
			return DisplayAction{Kind: EmitBytes, Frame: frame}
		}
	}
	if state != JobPending {
		if _, err := b.pipeline.Submit(req); err != nil {
			return DisplayAction{
				Kind:        EmitPlaceholderGlyphs,
				Placeholder: PlaceholderGlyphs(req.Cols, req.Rows),
				Err:         err,
			}
		}
	}

	if frame, ok := b.cache.Latest(req.ID); ok {
		return DisplayAction{Kind: ReusePrevious, Frame: frame, Err: jobErr}
	}
	return DisplayAction{
		Kind:        EmitPlaceholderGlyphs,
		Placeholder: PlaceholderGlyphs(req.Cols, req.Rows),
		Err:         jobErr,
	}
}

// withinTolerance projects the cached frame's aspect into the request's cell
// box and accepts the frame when the represented pixel areas differ by no
// more than the configured slack.
func (b *Bridge) withinTolerance(f *EncodedFrame, req RenderRequest) bool {
	if b.resizer.TolerancePx <= 0 {
		return false
	}
	r := b.resizer
	r.Policy = req.Policy
	r.AllowUpscale = true
	targetW, targetH := r.TargetPixels(req.Cols, req.Rows, b.caps, f.PixelWidth, f.PixelHeight)
	return b.resizer.StillValid(f.PixelWidth, f.PixelHeight, targetW, targetH)
}
