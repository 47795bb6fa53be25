package termpix

import (
	"fmt"
	"os"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

// TerminalCapabilities is the immutable result of probing the attached
// terminal. It is constructed once at startup (or on an explicit re-probe
// after a terminal resize) and shared by read-only reference afterwards.
type TerminalCapabilities struct {
	// Graphics protocol support.
	SixelGraphics  bool `toml:"sixel"`
	KittyGraphics  bool `toml:"kitty"`
	ITerm2Graphics bool `toml:"iterm2"`

	// Pixel size of one character cell.
	CellWidth  int `toml:"cell_width"`
	CellHeight int `toml:"cell_height"`

	// Window geometry, when the terminal reported it.
	WindowCols        int `toml:"window_cols"`
	WindowRows        int `toml:"window_rows"`
	WindowPixelWidth  int `toml:"window_pixel_width"`
	WindowPixelHeight int `toml:"window_pixel_height"`

	// Environment snapshot, kept so a persisted capability file can be
	// invalidated when the terminal changes.
	TermName    string `toml:"term"`
	TermProgram string `toml:"term_program"`
	IsTmux      bool   `toml:"tmux"`
}

// BestProtocol picks the richest protocol the terminal supports. With no
// graphics flags set, halfblocks is the only legal choice.
func (c *TerminalCapabilities) BestProtocol() Protocol {
	switch {
	case c.KittyGraphics:
		return Kitty
	case c.SixelGraphics:
		return Sixel
	case c.ITerm2Graphics:
		return ITerm2
	default:
		return Halfblocks
	}
}

// Supports reports whether the terminal can display the given protocol.
// Halfblocks is always supported.
func (c *TerminalCapabilities) Supports(p Protocol) bool {
	switch p {
	case Kitty:
		return c.KittyGraphics
	case Sixel:
		return c.SixelGraphics
	case ITerm2:
		return c.ITerm2Graphics
	case Halfblocks:
		return true
	default:
		return false
	}
}

// DefaultSnapshotPath returns the per-user cache location for the persisted
// capability snapshot.
func DefaultSnapshotPath() (string, error) {
	return xdg.CacheFile("termpix/capabilities.toml")
}

// SaveSnapshot persists the capabilities so later runs can skip the probe
// handshake.
func SaveSnapshot(caps *TerminalCapabilities, path string) error {
	data, err := toml.Marshal(caps)
	if err != nil {
		return fmt.Errorf("failed to marshal capability snapshot: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadSnapshot reads a persisted capability snapshot. The snapshot is only
// returned when it was taken against the same TERM/TERM_PROGRAM pair that is
// active now; otherwise it is stale and the caller should probe again.
func LoadSnapshot(path string) (*TerminalCapabilities, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var caps TerminalCapabilities
	if err := toml.Unmarshal(data, &caps); err != nil {
		return nil, fmt.Errorf("failed to parse capability snapshot: %w", err)
	}

	if caps.TermName != os.Getenv("TERM") || caps.TermProgram != os.Getenv("TERM_PROGRAM") {
		return nil, fmt.Errorf("capability snapshot is for a different terminal (%q/%q)",
			caps.TermName, caps.TermProgram)
	}
	if caps.CellWidth <= 0 || caps.CellHeight <= 0 {
		return nil, fmt.Errorf("capability snapshot has no cell size")
	}

	return &caps, nil
}
