package render

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"visits-observer/src/models"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// TerminalRenderer prints a one-line sparkline of the window on every redraw
type TerminalRenderer struct {
	out   io.Writer
	mu    sync.Mutex
	line  lipgloss.Style
	label lipgloss.Style
}

func NewTerminalRenderer(out io.Writer) *TerminalRenderer {
	return &TerminalRenderer{
		out:   out,
		line:  lipgloss.NewStyle().Foreground(lipgloss.Color("#4bc0c0")),
		label: lipgloss.NewStyle().Faint(true),
	}
}

func (r *TerminalRenderer) Redraw(data models.MChartData) {
	if len(data.Values) == 0 {
		return
	}

	last := len(data.Values) - 1
	summary := fmt.Sprintf("%d/%d  count %s  pages %s",
		len(data.Values), data.Capacity,
		humanize.Ftoa(data.Labels[last]), humanize.Ftoa(data.Values[last]))

	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.out, r.line.Render(Sparkline(data.Values))+"  "+r.label.Render(summary))
}

// Sparkline maps values onto eight block heights
func Sparkline(values []float64) string {
	if len(values) == 0 {
		return ""
	}

	min, max := minMax(values)
	var b strings.Builder
	for _, v := range values {
		idx := len(sparkBlocks) / 2
		if max > min {
			idx = int((v - min) / (max - min) * float64(len(sparkBlocks)-1))
		}
		b.WriteRune(sparkBlocks[idx])
	}
	return b.String()
}
