package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Printer writes deployment status lines.
type Printer struct {
	w        io.Writer
	renderer *lipgloss.Renderer
}

// NewPrinter creates a printer writing to w. With color false the output
// carries no escape sequences at all.
func NewPrinter(w io.Writer, color bool) *Printer {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return &Printer{w: w, renderer: r}
}

// ShouldColor reports whether output to f should be colored.
func ShouldColor(f *os.File, noColor bool) bool {
	if noColor || f == nil {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// Writer returns the underlying writer.
func (p *Printer) Writer() io.Writer {
	return p.w
}

// Paint renders s in color c, or as-is when color is off.
func (p *Printer) Paint(c lipgloss.Color, s string) string {
	return p.renderer.NewStyle().Foreground(c).Render(s)
}

// Running announces a pre-command before it starts.
// Shows: [RUNNING] make build
func (p *Printer) Running(cmd string) {
	fmt.Fprintf(p.w, "%s %s\n", p.Paint(ColorPhase, "[RUNNING]"), cmd)
}

// ExitCode reports a finished pre-command. The tag reads SUCCESS for any
// exit code; a non-zero code is colored as a warning and the runner also
// logs it.
// Shows: [SUCCESS] exit code: 0
func (p *Printer) ExitCode(code int) {
	c := ColorOK
	if code != 0 {
		c = ColorWarn
	}
	fmt.Fprintf(p.w, "%s exit code: %d\n", p.Paint(c, "[SUCCESS]"), code)
}

// SyncSucceeded reports a zero rsync exit.
func (p *Printer) SyncSucceeded() {
	fmt.Fprintln(p.w, p.Paint(ColorOK, "rsync successful!"))
}

// SyncFailed reports a non-zero rsync exit, with an optional reason line.
func (p *Printer) SyncFailed(reason string) {
	fmt.Fprintln(p.w, p.Paint(ColorFail, "rsync failure!"))
	if reason != "" {
		fmt.Fprintf(p.w, "  %s\n", p.Paint(ColorDim, reason))
	}
}

// LoginSucceeded reports a passed identity check.
func (p *Printer) LoginSucceeded() {
	fmt.Fprintln(p.w, p.Paint(ColorOK, "SSH login successful!"))
}

// Phase renders a completed phase with its duration.
// Shows: ● Deployed 12.3s
func (p *Printer) Phase(name string, d time.Duration) {
	fmt.Fprintf(p.w, "%s %s %s\n",
		p.Paint(ColorOK, MarkDone),
		name,
		p.Paint(ColorDim, FormatDuration(d)),
	)
}

// Check renders one diagnostic result line.
// Shows:   ✓ rsync            rsync  version 3.2.7
func (p *Printer) Check(symbol string, c lipgloss.Color, name, message string) {
	fmt.Fprintf(p.w, "  %s %-16s %s\n", p.Paint(c, symbol), name, p.Paint(ColorDim, message))
}

// Header renders a bold section title.
func (p *Printer) Header(title string) {
	fmt.Fprintln(p.w, p.renderer.NewStyle().Bold(true).Render(title))
}

// Hint renders indented muted lines under a check result.
func (p *Printer) Hint(text string) {
	for _, line := range strings.Split(text, "\n") {
		fmt.Fprintf(p.w, "    %s\n", p.Paint(ColorDim, line))
	}
}

// Divider renders a full-width rule between a report and its summary.
func (p *Printer) Divider() {
	fmt.Fprintln(p.w, strings.Repeat("\u2501", 60))
}

// FormatDuration renders durations as 0.3s, 12.0s, or 2m05s.
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d / time.Minute)
	seconds := int((d % time.Minute) / time.Second)
	return fmt.Sprintf("%dm%02ds", minutes, seconds)
}
