package termpix

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/term"
)

// DefaultProbeTimeout bounds how long the probe waits for the terminal to
// answer its capability queries.
const DefaultProbeTimeout = 200 * time.Millisecond

// ProbeOptions configures the capability probe.
type ProbeOptions struct {
	// Timeout is the total budget for the query/response handshake.
	// Zero means DefaultProbeTimeout.
	Timeout time.Duration

	// SkipQueries restricts detection to environment variables. Useful when
	// another component already owns the terminal in raw mode.
	SkipQueries bool
}

// Capability queries sent during the probe handshake. Responses are protocol
// constants, not user-configurable.
const (
	queryDeviceAttrs = "\x1b[c"                                // DA1: ";4" in the reply means sixel
	queryKitty       = "\x1b_Gi=31,s=1,v=1,a=q,t=d,f=24;AAAA\x1b\\" // kitty graphics query
	queryITerm2      = "\x1b[1337n"                            // iTerm2 proprietary report
	queryCellSize    = "\x1b[16t"                              // character cell size in pixels
	queryWindowPx    = "\x1b[14t"                              // text area size in pixels
	queryWindowChars = "\x1b[18t"                              // text area size in cells
)

// Probe detects the attached terminal's graphics protocols and cell pixel
// size. It first consults environment variables, then performs a bounded
// escape-sequence handshake over /dev/tty in raw mode. A silent terminal is
// not a failure: the returned capabilities are usable (halfblocks only) and
// ErrProbeTimeout distinguishes silence from an answered probe.
//
// The terminal mode is restored on every exit path.
func Probe(opts ProbeOptions) (*TerminalCapabilities, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultProbeTimeout
	}

	caps := capsFromEnv()

	if inScreen() {
		// GNU screen swallows graphics sequences and has no passthrough
		// mechanism, so the glyph fallback is the only protocol that works.
		caps.SixelGraphics = false
		caps.KittyGraphics = false
		caps.ITerm2Graphics = false
		applyCellFallback(caps)
		return caps, nil
	}

	if opts.SkipQueries || !isInteractiveTerminal() {
		applyCellFallback(caps)
		return caps, nil
	}

	tty, err := os.OpenFile("/dev/tty", os.O_RDWR, 0)
	if err != nil {
		applyCellFallback(caps)
		return caps, nil
	}
	defer tty.Close()

	if !term.IsTerminal(int(tty.Fd())) {
		applyCellFallback(caps)
		return caps, nil
	}

	oldState, err := term.MakeRaw(int(tty.Fd()))
	if err != nil {
		applyCellFallback(caps)
		return caps, nil
	}
	defer term.Restore(int(tty.Fd()), oldState)

	if caps.IsTmux && !enableTmuxPassthrough() {
		// Without passthrough the wrapped queries never reach the outer
		// terminal, so the handshake cannot answer.
		applyCellFallback(caps)
		return caps, nil
	}

	err = probeTerminal(tty, caps, opts.Timeout)
	applyCellFallback(caps)
	return caps, err
}

// probeTerminal writes the capability queries to rw and parses whatever the
// terminal sends back within the timeout. The caller owns terminal mode. On
// total silence every protocol flag that was not conclusively established
// from the environment is cleared and ErrProbeTimeout is returned.
func probeTerminal(rw io.ReadWriter, caps *TerminalCapabilities, timeout time.Duration) error {
	envConclusive := caps.KittyGraphics || caps.SixelGraphics || caps.ITerm2Graphics

	// DA1 goes out last: terminals answer queries in order, so its reply
	// marks the end of the handshake and everything before it has already
	// arrived.
	queries := []string{
		queryKitty,
		queryITerm2,
		queryCellSize,
		queryWindowPx,
		queryWindowChars,
		queryDeviceAttrs,
	}
	for _, q := range queries {
		if caps.IsTmux {
			q = wrapTmuxPassthrough(q)
		}
		if _, err := io.WriteString(rw, q); err != nil {
			return fmt.Errorf("failed to send capability query: %w", err)
		}
	}

	responseChan := make(chan []byte, 1)
	go func() {
		buf := make([]byte, 2048)
		total := 0
		for total < len(buf) {
			n, err := rw.Read(buf[total:])
			if n > 0 {
				total += n
				// Once the DA1 reply shows up the handshake is complete.
				if hasDeviceAttrsReply(buf[:total]) {
					break
				}
			}
			if err != nil {
				break
			}
		}
		responseChan <- buf[:total]
	}()

	var response []byte
	select {
	case response = <-responseChan:
	case <-time.After(timeout):
	}

	if len(response) == 0 {
		if !envConclusive {
			caps.KittyGraphics = false
			caps.SixelGraphics = false
			caps.ITerm2Graphics = false
		}
		return ErrProbeTimeout
	}

	parseProbeResponses(string(response), caps)
	return nil
}

// hasDeviceAttrsReply reports whether buf contains a complete DA1 reply
// (CSI ? <params> c). Only digits and semicolons may appear between the
// prefix and the terminator, so a partial reply or an unrelated 'c' byte
// does not end the handshake early.
func hasDeviceAttrsReply(buf []byte) bool {
	s := string(buf)
	for {
		i := strings.Index(s, "\x1b[?")
		if i < 0 {
			return false
		}
		s = s[i+3:]
		complete := true
		for j := 0; j < len(s); j++ {
			if s[j] == 'c' {
				break
			}
			if s[j] != ';' && (s[j] < '0' || s[j] > '9') {
				complete = false
				break
			}
			if j == len(s)-1 {
				complete = false // ran out of bytes before the terminator
			}
		}
		if complete && strings.IndexByte(s, 'c') >= 0 {
			return true
		}
	}
}

// parseProbeResponses walks the concatenated terminal replies and updates
// the capability record in place.
func parseProbeResponses(responses string, caps *TerminalCapabilities) {
	for _, part := range strings.Split(responses, "\x1b") {
		if part == "" {
			continue
		}
		switch {
		case strings.HasPrefix(part, "[?") && strings.HasSuffix(part, "c"):
			// Primary device attributes: [?64;1;2;4;...c
			for _, v := range parseSemicolonInts(part[2 : len(part)-1]) {
				if v == 4 {
					caps.SixelGraphics = true
				}
			}

		case strings.HasPrefix(part, "_G") && strings.Contains(part, ";OK"):
			caps.KittyGraphics = true

		case strings.HasPrefix(part, "[1337") || strings.HasPrefix(part, "]1337"):
			caps.ITerm2Graphics = true

		case strings.HasPrefix(part, "[6;") && strings.HasSuffix(part, "t"):
			// Cell size: [6;height;width t
			if vals := parseSemicolonInts(part[3 : len(part)-1]); len(vals) >= 2 {
				caps.CellHeight = vals[0]
				caps.CellWidth = vals[1]
			}

		case strings.HasPrefix(part, "[4;") && strings.HasSuffix(part, "t"):
			// Window size in pixels: [4;height;width t
			if vals := parseSemicolonInts(part[3 : len(part)-1]); len(vals) >= 2 {
				caps.WindowPixelHeight = vals[0]
				caps.WindowPixelWidth = vals[1]
			}

		case strings.HasPrefix(part, "[8;") && strings.HasSuffix(part, "t"):
			// Window size in cells: [8;rows;cols t
			if vals := parseSemicolonInts(part[3 : len(part)-1]); len(vals) >= 2 {
				caps.WindowRows = vals[0]
				caps.WindowCols = vals[1]
			}
		}
	}

	// Terminals that answer the window queries but not CSI 16t still reveal
	// the cell size as pixels-per-window over cells-per-window.
	if caps.CellWidth == 0 && caps.WindowPixelWidth > 0 && caps.WindowCols > 0 {
		caps.CellWidth = caps.WindowPixelWidth / caps.WindowCols
	}
	if caps.CellHeight == 0 && caps.WindowPixelHeight > 0 && caps.WindowRows > 0 {
		caps.CellHeight = caps.WindowPixelHeight / caps.WindowRows
	}
}

func parseSemicolonInts(s string) []int {
	parts := strings.Split(s, ";")
	vals := make([]int, 0, len(parts))
	for _, p := range parts {
		if v, err := strconv.Atoi(p); err == nil {
			vals = append(vals, v)
		}
	}
	return vals
}

// capsFromEnv performs the fast environment-variable detection pass.
func capsFromEnv() *TerminalCapabilities {
	caps := &TerminalCapabilities{
		TermName:    os.Getenv("TERM"),
		TermProgram: os.Getenv("TERM_PROGRAM"),
		IsTmux:      inTmux(),
	}

	termName := strings.ToLower(caps.TermName)
	termProgram := caps.TermProgram

	// Kitty graphics
	switch {
	case os.Getenv("KITTY_WINDOW_ID") != "":
		caps.KittyGraphics = true
	case strings.Contains(termName, "kitty"):
		caps.KittyGraphics = true
	case termProgram == "ghostty":
		caps.KittyGraphics = true
	case termProgram == "WezTerm":
		caps.KittyGraphics = true
		caps.ITerm2Graphics = true // WezTerm speaks both
	case termProgram == "rio":
		caps.KittyGraphics = true
		caps.ITerm2Graphics = true
	}

	// Sixel graphics
	switch {
	case strings.Contains(termName, "sixel"):
		caps.SixelGraphics = true
	case strings.Contains(termName, "mlterm"):
		caps.SixelGraphics = true
	case strings.Contains(termName, "foot"):
		caps.SixelGraphics = true
	case strings.Contains(termName, "wezterm"):
		caps.SixelGraphics = true
	case strings.Contains(termName, "xterm") && os.Getenv("XTERM_VERSION") != "":
		// xterm must be started with -ti 340
		caps.SixelGraphics = true
	case termProgram == "mintty":
		caps.SixelGraphics = true
		caps.ITerm2Graphics = true
	}

	// iTerm2 inline images
	switch {
	case termProgram == "iTerm.app":
		caps.ITerm2Graphics = true
	case termProgram == "vscode" && os.Getenv("TERM_PROGRAM_VERSION") != "":
		caps.ITerm2Graphics = true
	case termProgram == "WarpTerminal":
		caps.ITerm2Graphics = true
	case strings.Contains(strings.ToLower(os.Getenv("LC_TERMINAL")), "iterm"):
		caps.ITerm2Graphics = true
	}

	return caps
}

// applyCellFallback fills in a cell pixel size when no query answered,
// using known defaults per terminal family.
func applyCellFallback(caps *TerminalCapabilities) {
	if caps.CellWidth > 0 && caps.CellHeight > 0 {
		return
	}

	switch {
	case caps.TermProgram == "vscode":
		caps.CellWidth, caps.CellHeight = 7, 14
	case caps.TermProgram == "iTerm.app":
		caps.CellWidth, caps.CellHeight = 8, 16
	case caps.TermProgram == "WezTerm":
		caps.CellWidth, caps.CellHeight = 8, 18
	case caps.TermProgram == "Alacritty":
		caps.CellWidth, caps.CellHeight = 7, 15
	case strings.Contains(strings.ToLower(caps.TermName), "kitty"):
		caps.CellWidth, caps.CellHeight = 8, 16
	case strings.Contains(caps.TermName, "xterm"):
		caps.CellWidth, caps.CellHeight = 7, 14
	default:
		caps.CellWidth, caps.CellHeight = 8, 16
	}
}

// isInteractiveTerminal checks whether stdin is attached to a character
// device.
func isInteractiveTerminal() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
