package viz

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Styles is the set of lipgloss styles derived from a Theme.
type Styles struct {
	Title       lipgloss.Style
	Panel       lipgloss.Style
	Subtle      lipgloss.Style
	MetricLabel lipgloss.Style
	MetricValue lipgloss.Style
	Selected    lipgloss.Style
	KeyHint     lipgloss.Style
	Shock       lipgloss.Style
	OK          lipgloss.Style
	Failed      lipgloss.Style
	SparkHigh   lipgloss.Style
	SparkMid    lipgloss.Style
	SparkLow    lipgloss.Style
}

func NewStyles(t Theme) Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(t.Primary),
		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(t.Muted).
			Padding(0, 1),
		Subtle:      lipgloss.NewStyle().Foreground(t.Muted),
		MetricLabel: lipgloss.NewStyle().Foreground(t.Muted),
		MetricValue: lipgloss.NewStyle().Foreground(t.Secondary).Bold(true),
		Selected:    lipgloss.NewStyle().Foreground(t.Accent).Bold(true),
		KeyHint:     lipgloss.NewStyle().Foreground(t.Muted).Italic(true),
		Shock:       lipgloss.NewStyle().Foreground(t.Warning).Bold(true),
		OK:          lipgloss.NewStyle().Foreground(t.Success).Bold(true),
		Failed:      lipgloss.NewStyle().Foreground(t.Error).Bold(true),
		SparkHigh:   lipgloss.NewStyle().Foreground(t.Success),
		SparkMid:    lipgloss.NewStyle().Foreground(t.Warning),
		SparkLow:    lipgloss.NewStyle().Foreground(t.Error),
	}
}

// DefaultStyles uses the first theme.
var DefaultStyles = NewStyles(Themes[0])

// Sparkline renders a mini sparkline from values
func (s Styles) Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}

	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	step := max(len(values)/width, 1)

	var result strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := (values[i*step] - lo) / rng
		idx := min(max(int(norm*float64(len(chars)-1)), 0), len(chars)-1)

		c := string(chars[idx])
		switch {
		case norm > 0.7:
			result.WriteString(s.SparkHigh.Render(c))
		case norm > 0.3:
			result.WriteString(s.SparkMid.Render(c))
		default:
			result.WriteString(s.SparkLow.Render(c))
		}
	}
	return result.String()
}

// Metric renders "label value" with the metric styles.
func (s Styles) Metric(label string, value float64) string {
	return s.MetricLabel.Render(fmt.Sprintf("%-16s", label)) + s.MetricValue.Render(fmt.Sprintf("%.6g", value))
}

// Separator draws a decorative rule.
func (s Styles) Separator(width int) string {
	mid := width / 2
	left := strings.Repeat("─", max(mid-3, 0))
	right := strings.Repeat("─", max(width-mid-3, 0))
	return s.Subtle.Render(left + " ◆ " + right)
}
