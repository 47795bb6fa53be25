package termpix

import "image"

// Widget is a viewport-driven image view for TUI frameworks. Each call to
// View renders through the bridge, so a frame is emitted as soon as the
// background pipeline publishes it; until then the previous frame or a
// placeholder keeps the layout stable.
type Widget struct {
	bridge *Bridge

	id     string
	img    image.Image
	data   []byte
	policy ResizePolicy

	cols, rows int
	lastView   string
	lastErr    error
}

// NewWidget creates a widget for a decoded image.
func NewWidget(bridge *Bridge, id string, img image.Image) *Widget {
	return &Widget{bridge: bridge, id: id, img: img}
}

// NewWidgetFromBytes creates a widget whose image is decoded lazily by the
// pipeline's decoder collaborator.
func NewWidgetFromBytes(bridge *Bridge, id string, data []byte) *Widget {
	return &Widget{bridge: bridge, id: id, data: data}
}

// SetSize sets the viewport in character cells.
func (w *Widget) SetSize(cols, rows int) *Widget {
	w.cols, w.rows = cols, rows
	return w
}

// SetPolicy sets the resize policy for this widget.
func (w *Widget) SetPolicy(policy ResizePolicy) *Widget {
	w.policy = policy
	return w
}

// SetImage swaps the pixels behind the widget's identity and invalidates the
// cached frames.
func (w *Widget) SetImage(id string, img image.Image) *Widget {
	w.bridge.Invalidate(w.id)
	w.id = id
	w.img = img
	w.data = nil
	w.lastView = ""
	return w
}

// Err returns the error surfaced by the most recent View, if any.
func (w *Widget) Err() error {
	return w.lastErr
}

// View renders the widget for the current frame. It never blocks.
func (w *Widget) View() string {
	if w.cols <= 0 || w.rows <= 0 {
		return ""
	}

	action := w.bridge.Render(RenderRequest{
		ID:     w.id,
		Image:  w.img,
		Data:   w.data,
		Cols:   w.cols,
		Rows:   w.rows,
		Policy: w.policy,
	})
	w.lastErr = action.Err

	switch action.Kind {
	case EmitBytes:
		w.lastView = string(action.Frame.Payload)
	case ReusePrevious:
		if w.lastView == "" && action.Frame != nil {
			w.lastView = string(action.Frame.Payload)
		}
	case EmitPlaceholderGlyphs:
		return string(action.Placeholder)
	}
	return w.lastView
}
