// Package console renders gated notifications for the terminal.
package console

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"afkmon/internal/gate"
	"afkmon/internal/notify"

	"github.com/charmbracelet/lipgloss"
)

// Printer writes notification lines. Colour is decided by the renderer's
// view of w, so plain files and buffers get plain text.
type Printer struct {
	mu     sync.Mutex
	out    io.Writer
	tones  map[notify.Tone]lipgloss.Style
	label  lipgloss.Style
	remote lipgloss.Style
}

// New returns a Printer writing to w.
func New(w io.Writer) *Printer {
	r := lipgloss.NewRenderer(w)
	return &Printer{
		out: w,
		tones: map[notify.Tone]lipgloss.Style{
			notify.ToneEasy: r.NewStyle().Foreground(lipgloss.Color("157")),
			notify.ToneHard: r.NewStyle().Foreground(lipgloss.Color("217")),
			notify.ToneWarn: r.NewStyle().Foreground(lipgloss.Color("215")),
			notify.ToneBad:  r.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("1")),
			notify.ToneGood: r.NewStyle().Foreground(lipgloss.Color("15")).Background(lipgloss.Color("2")),
		},
		label:  r.NewStyle().Foreground(lipgloss.Color("11")),
		remote: r.NewStyle().Foreground(lipgloss.Color("15")),
	}
}

// Format renders the terminal line for act without writing it.
func (p *Printer) Format(act gate.Action) string {
	c := act.Candidate
	text := c.Terminal
	if style, ok := p.tones[c.Tone]; ok {
		head := c.Highlight
		if head == "" || !strings.HasPrefix(text, head) {
			head = text
		}
		text = style.Render(head) + text[len(head):]
	}
	return "[" + act.Stamp + "]" + c.Glyph + " " + text
}

// Show prints whatever act asks to surface locally, including echoed
// remote text in test mode.
func (p *Printer) Show(act gate.Action) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if act.Local {
		fmt.Fprintln(p.out, p.Format(act))
	}
	if act.Echo && act.Remote != nil {
		text := act.Remote.Text
		if act.Remote.Mention {
			text += " @mention"
		}
		fmt.Fprintln(p.out, p.remote.Render("REMOTE:")+" "+text)
	}
}

// Field prints a "Label: value" header line.
func (p *Printer) Field(label, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, p.label.Render(label+":")+" "+value)
}

// Println writes a plain line.
func (p *Printer) Println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, s)
}
