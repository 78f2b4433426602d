package render

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"

	"github.com/tt-studio/console/internal/model"
	"github.com/tt-studio/console/internal/progress"
)

const defaultBarWidth = 30

// Renderer draws deployment progress to a terminal or a plain stream. On a
// terminal the progress line is redrawn in place; elsewhere a line is
// written only when its content changes.
type Renderer struct {
	out      io.Writer
	tty      bool
	barWidth int
	last     string

	bar     lipgloss.Style
	stage   lipgloss.Style
	dim     lipgloss.Style
	success lipgloss.Style
	failure lipgloss.Style
}

func New(out io.Writer) *Renderer {
	r := &Renderer{out: out, barWidth: defaultBarWidth}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		r.tty = true
		if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
			r.barWidth = min(defaultBarWidth, max(10, w/3))
		}
	}

	lr := lipgloss.NewRenderer(out)
	r.bar = lr.NewStyle().Foreground(lipgloss.Color("39"))
	r.stage = lr.NewStyle().Bold(true)
	r.dim = lr.NewStyle().Faint(true)
	r.success = lr.NewStyle().Foreground(lipgloss.Color("42")).Bold(true)
	r.failure = lr.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	return r
}

// Progress formats the live progress line for st.
func (r *Renderer) Progress(st progress.Status, now time.Time) string {
	snap := st.Snapshot
	stage := snap.Stage
	if stage == "" {
		stage = string(snap.Status)
	}
	if stage == "" {
		stage = "waiting"
	}
	parts := []string{
		r.bar.Render(Bar(snap.Progress, r.barWidth)),
		fmt.Sprintf("%3d%%", Percent(snap.Progress)),
		r.stage.Render(stage),
	}
	if snap.Message != "" && snap.Message != stage {
		parts = append(parts, snap.Message)
	}
	parts = append(parts, r.dim.Render(Elapsed(st.Elapsed(now))))
	if st.Mode != "" {
		parts = append(parts, r.dim.Render("("+string(st.Mode)+")"))
	}
	return strings.Join(parts, " ")
}

// Final formats the closing line once tracking has ended.
func (r *Renderer) Final(st progress.Status, now time.Time) string {
	elapsed := Elapsed(st.Elapsed(now))
	switch {
	case st.Err != nil:
		return r.failure.Render("✗ tracking failed") + ": " + st.Err.Error() + " " + r.dim.Render(elapsed)
	case st.Snapshot.Status.Succeeded():
		msg := "✓ deployment completed"
		if st.Snapshot.Message != "" {
			msg += ": " + st.Snapshot.Message
		}
		return r.success.Render(msg) + " " + r.dim.Render(elapsed)
	case st.Snapshot.Status.Terminal():
		line := r.failure.Render("✗ deployment " + string(st.Snapshot.Status))
		if st.Snapshot.Message != "" {
			line += ": " + st.Snapshot.Message
		}
		return line + " " + r.dim.Render(elapsed)
	default:
		return r.dim.Render("tracking stopped at "+fmt.Sprintf("%d%%", Percent(st.Snapshot.Progress))) + " " + r.dim.Render(elapsed)
	}
}

// Update writes the progress line for st.
func (r *Renderer) Update(st progress.Status, now time.Time) {
	line := r.Progress(st, now)
	if r.tty {
		fmt.Fprint(r.out, "\r\x1b[2K"+line)
		return
	}
	// Elapsed time changes every call; compare without it.
	key := fmt.Sprintf("%s|%s|%d|%s", st.Snapshot.Status, st.Snapshot.Stage, Percent(st.Snapshot.Progress), st.Snapshot.Message)
	if key == r.last {
		return
	}
	r.last = key
	fmt.Fprintln(r.out, line)
}

// Done writes the final line.
func (r *Renderer) Done(st progress.Status, now time.Time) {
	if r.tty {
		fmt.Fprint(r.out, "\r\x1b[2K")
	}
	fmt.Fprintln(r.out, r.Final(st, now))
}

// Bar draws a width-cell bar filled to pct percent.
func Bar(pct float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(math.Round(clamp(pct) / 100 * float64(width)))
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// Percent clamps pct to 0..100 and rounds it.
func Percent(pct float64) int {
	return int(math.Round(clamp(pct)))
}

// Elapsed formats d as 42s, 3m07s or 1h02m.
func Elapsed(d time.Duration) string {
	d = d.Round(time.Second)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%02dm", int(d.Hours()), int(d.Minutes())%60)
	}
}

// Health labels a health status for tables.
func (r *Renderer) Health(s model.HealthStatus) string {
	switch s {
	case model.HealthHealthy:
		return r.success.Render(string(s))
	case model.HealthUnavailable, model.HealthUnhealthy:
		return r.failure.Render(string(s))
	default:
		return r.dim.Render(string(s))
	}
}

func clamp(pct float64) float64 {
	if math.IsNaN(pct) || pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
