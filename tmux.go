package termpix

import (
	"os"
	"os/exec"
	"strings"
	"sync"
)

var (
	tmuxPassthroughEnabled bool
	tmuxPassthroughOnce    sync.Once
)

// inTmux checks if we're running inside tmux.
func inTmux() bool {
	return os.Getenv("TMUX") != "" || os.Getenv("TERM_PROGRAM") == "tmux"
}

// inScreen checks if we're running inside GNU screen.
func inScreen() bool {
	return strings.HasPrefix(os.Getenv("TERM"), "screen")
}

// enableTmuxPassthrough asks tmux to forward unknown escape sequences to the
// outer terminal. Graphics protocols do not survive tmux without it. Returns
// whether passthrough is on; the answer is computed once and sticks.
func enableTmuxPassthrough() bool {
	tmuxPassthroughOnce.Do(func() {
		// -p sets the option for the current pane only
		cmd := exec.Command("tmux", "set", "-p", "allow-passthrough", "on")
		cmd.Stdin = nil
		cmd.Stdout = nil
		cmd.Stderr = nil
		if err := cmd.Run(); err == nil {
			tmuxPassthroughEnabled = true
		}
	})
	return tmuxPassthroughEnabled
}

// wrapTmuxPassthrough wraps an escape sequence for tmux passthrough. Every
// ESC inside the sequence must be doubled.
func wrapTmuxPassthrough(seq string) string {
	if !strings.HasPrefix(seq, "\x1b") {
		return seq
	}
	return "\x1bPtmux;\x1b" + strings.ReplaceAll(seq, "\x1b", "\x1b\x1b") + "\x1b\\"
}

// maybeWrapTmux applies passthrough wrapping only when requested.
func maybeWrapTmux(seq string, tmux bool) string {
	if tmux {
		return wrapTmuxPassthrough(seq)
	}
	return seq
}
