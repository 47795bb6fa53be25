package main

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/termpix/termpix"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	statusStyle = lipgloss.NewStyle().Faint(true)
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type tickMsg time.Time

type model struct {
	bridge *termpix.Bridge
	widget *termpix.Widget
	cols   int
	rows   int
	err    error
}

func tick() tea.Cmd {
	return tea.Tick(50*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m model) Init() tea.Cmd {
	return tick()
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.cols = msg.Width
		m.rows = msg.Height
		// Leave room for the title and status lines.
		m.widget.SetSize(m.cols-4, m.rows-4)
	case tickMsg:
		return m, tick()
	}
	return m, nil
}

func (m model) View() string {
	header := titleStyle.Render("termpix demo") +
		statusStyle.Render(fmt.Sprintf("  [%s]  q to quit", m.bridge.Protocol()))

	body := m.widget.View()
	if err := m.widget.Err(); err != nil {
		body = errStyle.Render(err.Error())
	}

	return header + "\n\n" + body
}

func main() {
	cfg := termpix.DefaultConfig()
	if path, err := termpix.DefaultConfigPath(); err == nil {
		if loaded, err := termpix.LoadConfig(path); err == nil {
			cfg = loaded
		}
	}

	bridge, err := termpix.Setup(cfg)
	if err != nil {
		log.Fatalf("setup failed: %v", err)
	}
	defer bridge.Close()

	var widget *termpix.Widget
	if len(os.Args) > 1 {
		data, err := os.ReadFile(os.Args[1])
		if err != nil {
			log.Fatalf("failed to read image: %v", err)
		}
		widget = termpix.NewWidgetFromBytes(bridge, os.Args[1], data)
	} else {
		widget = termpix.NewWidget(bridge, "test-pattern", testPattern())
	}

	p := tea.NewProgram(model{bridge: bridge, widget: widget}, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		log.Fatalf("error running demo: %v", err)
	}
}

// testPattern draws a gradient with color bars, handy for eyeballing every
// protocol without shipping an asset.
func testPattern() image.Image {
	const w, h = 256, 192
	img := image.NewRGBA(image.Rect(0, 0, w, h))

	bars := []color.RGBA{
		{255, 0, 0, 255},
		{0, 255, 0, 255},
		{0, 0, 255, 255},
		{255, 255, 0, 255},
		{0, 255, 255, 255},
		{255, 0, 255, 255},
		{255, 255, 255, 255},
		{0, 0, 0, 255},
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if y < h/2 {
				img.SetRGBA(x, y, bars[x*len(bars)/w])
			} else {
				img.SetRGBA(x, y, color.RGBA{
					R: uint8(x * 255 / w),
					G: uint8(y * 255 / h),
					B: uint8((x + y) * 255 / (w + h)),
					A: 255,
				})
			}
		}
	}
	return img
}
