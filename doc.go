/*
Package termpix renders raster images inside terminal user interfaces.

It probes the attached terminal once at startup for graphics support
(kitty graphics, sixel, iTerm2 inline images) and for the pixel size of one
character cell, then encodes images into the richest protocol available,
falling back to colored half-block glyphs on terminals with no graphics
support at all.

Encoding runs on background workers so the host UI's render loop never
blocks: a frame's draw request either hits the payload cache or schedules
work and reuses the previous payload (or a placeholder) until the new one is
published.

Typical use:

	caps, _ := termpix.Probe(termpix.ProbeOptions{})
	bridge := termpix.NewBridge(caps, termpix.DefaultConfig())
	defer bridge.Close()

	action := bridge.Render(termpix.RenderRequest{
		ID:    "logo",
		Image: img,
		Cols:  40,
		Rows:  20,
	})
	action.WriteTo(os.Stdout)

Or, driven from a TUI framework, wrap the bridge in a Widget and call View
each frame.
*/
package termpix
