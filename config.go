package termpix

import (
	"fmt"
	"os"
	"time"

	"github.com/adrg/xdg"
	"github.com/pelletier/go-toml/v2"
)

// Config is the library's policy surface. Everything here is a tuning knob,
// not a protocol constant; wire formats and query sequences are fixed.
type Config struct {
	// Policy is the resize policy name: "contain", "cover" or "exact".
	Policy string `toml:"policy"`

	// CacheCapacity bounds the frame cache entry count.
	CacheCapacity int `toml:"cache_capacity"`

	// ProbeTimeoutMS bounds the capability handshake, in milliseconds.
	ProbeTimeoutMS int `toml:"probe_timeout_ms"`

	// Workers is the background encode pool size.
	Workers int `toml:"workers"`

	// MaxPending bounds queued encode jobs before the oldest is dropped.
	MaxPending int `toml:"max_pending"`

	// TolerancePx is the resize jitter slack, per axis.
	TolerancePx int `toml:"tolerance_px"`

	// AllowUpscale permits scaling beyond the source resolution.
	AllowUpscale bool `toml:"allow_upscale"`

	// MaxColors bounds the sixel palette (2-256).
	MaxColors int `toml:"max_colors"`

	// Dither is the sixel dither mode: "none", "floyd-steinberg", "stucki".
	Dither string `toml:"dither"`

	// ForceProtocol overrides protocol auto-selection: "sixel", "kitty",
	// "iterm2", "halfblocks" or "auto".
	ForceProtocol string `toml:"protocol"`

	// UseSnapshot loads/saves the probed capabilities so later runs skip the
	// probe handshake.
	UseSnapshot bool `toml:"use_snapshot"`
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() Config {
	return Config{
		Policy:         "contain",
		CacheCapacity:  DefaultCacheCapacity,
		ProbeTimeoutMS: int(DefaultProbeTimeout / time.Millisecond),
		Workers:        DefaultWorkers,
		MaxPending:     DefaultMaxPending,
		TolerancePx:    8,
		MaxColors:      SixelMaxColors,
		Dither:         "none",
		ForceProtocol:  "auto",
	}
}

// withDefaults fills zero values with the defaults so a partially populated
// Config (or the zero value) behaves sanely.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Policy == "" {
		c.Policy = def.Policy
	}
	if c.CacheCapacity <= 0 {
		c.CacheCapacity = def.CacheCapacity
	}
	if c.ProbeTimeoutMS <= 0 {
		c.ProbeTimeoutMS = def.ProbeTimeoutMS
	}
	if c.Workers <= 0 {
		c.Workers = def.Workers
	}
	if c.MaxPending <= 0 {
		c.MaxPending = def.MaxPending
	}
	if c.MaxColors <= 0 {
		c.MaxColors = def.MaxColors
	}
	if c.Dither == "" {
		c.Dither = def.Dither
	}
	if c.ForceProtocol == "" {
		c.ForceProtocol = def.ForceProtocol
	}
	return c
}

// ProbeTimeout returns the configured probe budget as a duration.
func (c Config) ProbeTimeout() time.Duration {
	if c.ProbeTimeoutMS <= 0 {
		return DefaultProbeTimeout
	}
	return time.Duration(c.ProbeTimeoutMS) * time.Millisecond
}

// ParseDitherMode maps a config name to a DitherMode.
func ParseDitherMode(name string) DitherMode {
	switch name {
	case "floyd-steinberg":
		return DitherFloydSteinberg
	case "stucki":
		return DitherStucki
	default:
		return DitherNone
	}
}

// DefaultConfigPath returns the per-user config file location.
func DefaultConfigPath() (string, error) {
	return xdg.ConfigFile("termpix/config.toml")
}

// LoadConfig reads a TOML config file, layering it over the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg.withDefaults(), nil
}

// SaveConfig writes the configuration to a TOML file.
func SaveConfig(cfg Config, path string) error {
	data, err := toml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Setup is the common startup path: load (or probe and persist) the terminal
// capabilities per the config, then build a bridge.
func Setup(cfg Config) (*Bridge, error) {
	cfg = cfg.withDefaults()

	var caps *TerminalCapabilities
	if cfg.UseSnapshot {
		if path, err := DefaultSnapshotPath(); err == nil {
			if snap, err := LoadSnapshot(path); err == nil {
				caps = snap
			}
		}
	}

	var probeErr error
	if caps == nil {
		caps, probeErr = Probe(ProbeOptions{Timeout: cfg.ProbeTimeout()})
		if cfg.UseSnapshot && probeErr == nil {
			if path, err := DefaultSnapshotPath(); err == nil {
				_ = SaveSnapshot(caps, path) // best effort
			}
		}
	}

	return NewBridge(caps, cfg), nil
}
