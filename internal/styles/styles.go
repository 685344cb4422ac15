// Package styles renders CLI output with lipgloss, falling back to plain
// text when color is off.
package styles

import (
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	// Colors - all colors meet WCAG AA contrast (4.5:1) on dark terminals
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	BorderColor    = lipgloss.Color("#6B7280") // Gray
	AccentColor    = lipgloss.Color("#60A5FA") // Blue
)

// ColorEnabled resolves an output.color mode: "always" and "never" are
// literal, "auto" colors only terminals and honors NO_COLOR.
func ColorEnabled(mode string, f *os.File) bool {
	switch strings.ToLower(mode) {
	case "always":
		return true
	case "never":
		return false
	}
	if os.Getenv("NO_COLOR") != "" || f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Force sets the color profile of the default lipgloss renderer, which
// otherwise probes stdout itself and drops colors when it is piped.
func Force(color bool) {
	if color {
		lipgloss.SetColorProfile(termenv.TrueColor)
		return
	}
	lipgloss.SetColorProfile(termenv.Ascii)
}

// Palette holds the styles of one output stream.
type Palette struct {
	color bool

	title    lipgloss.Style
	subtitle lipgloss.Style
	pass     lipgloss.Style
	fail     lipgloss.Style
	warn     lipgloss.Style
	muted    lipgloss.Style
	key      lipgloss.Style
	value    lipgloss.Style
	box      lipgloss.Style
}

// New builds a palette. Without color, styles keep their layout (widths,
// padding, borders) but emit no escape sequences.
func New(color bool) *Palette {
	fg := func(c lipgloss.Color) lipgloss.Style {
		if !color {
			return lipgloss.NewStyle()
		}
		return lipgloss.NewStyle().Foreground(c)
	}

	p := &Palette{
		color:    color,
		title:    fg(PrimaryColor).Bold(color),
		subtitle: fg(MutedColor).Italic(color),
		pass:     fg(SecondaryColor).Bold(color),
		fail:     fg(ErrorColor).Bold(color),
		warn:     fg(WarningColor),
		muted:    fg(MutedColor),
		key:      fg(AccentColor),
		value:    lipgloss.NewStyle(),
		box: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1),
	}
	if color {
		p.box = p.box.BorderForeground(BorderColor)
	}
	return p
}

// Color reports whether the palette emits colors.
func (p *Palette) Color() bool {
	return p.color
}

// Title renders a heading.
func (p *Palette) Title(s string) string { return p.title.Render(s) }

// Subtitle renders secondary heading text.
func (p *Palette) Subtitle(s string) string { return p.subtitle.Render(s) }

// Pass renders a success marker or message.
func (p *Palette) Pass(s string) string { return p.pass.Render(s) }

// Fail renders a failure marker or message.
func (p *Palette) Fail(s string) string { return p.fail.Render(s) }

// Warn renders a warning.
func (p *Palette) Warn(s string) string { return p.warn.Render(s) }

// Muted renders de-emphasized text.
func (p *Palette) Muted(s string) string { return p.muted.Render(s) }

// Box draws a rounded border around s.
func (p *Palette) Box(s string) string { return p.box.Render(s) }

// Status renders "PASS" or "FAIL".
func (p *Palette) Status(ok bool) string {
	if ok {
		return p.Pass("PASS")
	}
	return p.Fail("FAIL")
}

// KeyValues renders aligned "key  value" lines.
func (p *Palette) KeyValues(pairs [][2]string) string {
	width := 0
	for _, kv := range pairs {
		width = max(width, lipgloss.Width(kv[0]))
	}

	keyStyle := p.key.Width(width + 2)
	lines := make([]string, len(pairs))
	for i, kv := range pairs {
		lines[i] = lipgloss.JoinHorizontal(lipgloss.Top, keyStyle.Render(kv[0]), p.value.Render(kv[1]))
	}
	return strings.Join(lines, "\n")
}
