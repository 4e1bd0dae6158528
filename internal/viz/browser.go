package viz

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/climsim/internal/climate"
	"github.com/san-kum/climsim/internal/sim"
)

// Browser steps through a completed trajectory one year at a time.
type Browser struct {
	tr     *sim.Trajectory
	title  string
	runErr string
	shocks map[int]sim.ShockEvent

	year  int
	years int
	comp  int
	zoom  bool
	theme int

	styles        Styles
	width, height int
}

// NewBrowser builds a browser for tr. runErr is shown in the header when
// the run stopped early.
func NewBrowser(tr *sim.Trajectory, title, runErr string) Browser {
	days := max(tr.DaysPerYear, 1)
	years := 0
	if n := tr.Len() - 1; n > 0 {
		years = (n + days - 1) / days
	}

	shocks := make(map[int]sim.ShockEvent, len(tr.Shocks))
	for _, sh := range tr.Shocks {
		shocks[sh.Year] = sh
	}

	return Browser{
		tr:     tr,
		title:  title,
		runErr: runErr,
		shocks: shocks,
		years:  years,
		styles: NewStyles(Themes[0]),
		width:  100,
		height: 40,
	}
}

func (b Browser) Init() tea.Cmd { return nil }

func (b Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return b, tea.Quit
		case "left", "h":
			if b.year > 0 {
				b.year--
			}
		case "right", "l":
			if b.year < b.years-1 {
				b.year++
			}
		case "g", "home":
			b.year = 0
		case "G", "end":
			b.year = max(b.years-1, 0)
		case "up", "k":
			b.comp = (b.comp + climate.StateDim - 1) % climate.StateDim
		case "down", "j":
			b.comp = (b.comp + 1) % climate.StateDim
		case "z":
			b.zoom = !b.zoom
		case "t":
			b.theme = (b.theme + 1) % len(Themes)
			b.styles = NewStyles(Themes[b.theme])
		}
	case tea.WindowSizeMsg:
		b.width, b.height = msg.Width, msg.Height
	}
	return b, nil
}

// yearRange returns the first and last trajectory index of a year,
// including the shared boundary point.
func (b Browser) yearRange(year int) (int, int) {
	days := max(b.tr.DaysPerYear, 1)
	first := min(year*days, b.tr.Len()-1)
	last := min((year+1)*days, b.tr.Len()-1)
	return first, last
}

func (b Browser) Year() int      { return b.year }
func (b Browser) Component() int { return b.comp }
func (b Browser) Zoomed() bool   { return b.zoom }
func (b Browser) Theme() string  { return Themes[b.theme].Name }

func (b Browser) View() string {
	s := b.styles
	if b.tr.Len() == 0 {
		return s.Failed.Render("no data") + "\n"
	}

	var out strings.Builder

	header := s.Title.Render("CLIMSIM") + "  " + s.Subtle.Render(b.title)
	if b.runErr != "" {
		header += "  " + s.Failed.Render("stopped: "+b.runErr)
	} else {
		header += "  " + s.OK.Render("complete")
	}
	out.WriteString(header + "\n")
	out.WriteString(s.Separator(min(b.width, 80)) + "\n\n")

	first, last := b.yearRange(b.year)
	series := b.tr.Series(b.comp)
	caption := componentCaptions[b.comp]
	if b.zoom {
		series = series[first : last+1]
		caption += fmt.Sprintf(" (year %d)", b.year)
	}
	chartWidth := min(max(b.width-16, 20), 100)
	chartHeight := min(max(b.height-26, 5), 15)
	out.WriteString(asciigraph.Plot(series,
		asciigraph.Height(chartHeight),
		asciigraph.Width(chartWidth),
		asciigraph.Caption(caption),
	))
	out.WriteString("\n\n")

	out.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		s.Panel.Render(b.yearPanel(first, last)),
		"  ",
		s.Panel.Render(b.metricsPanel()),
	))
	out.WriteString("\n")

	out.WriteString(s.KeyHint.Render("h/l year  j/k component  z zoom  t theme  g/G first/last  q quit") + "\n")
	return out.String()
}

func (b Browser) yearPanel(first, last int) string {
	s := b.styles
	var p strings.Builder

	p.WriteString(s.Title.Render(fmt.Sprintf("Year %d / %d", b.year, max(b.years-1, 0))))
	p.WriteString(s.Subtle.Render(fmt.Sprintf("  t = %g..%g", b.tr.Times[first], b.tr.Times[last])) + "\n\n")

	end := b.tr.States[last]
	for idx, name := range climate.ComponentNames {
		window := b.tr.Series(idx)[first : last+1]
		marker := "  "
		label := fmt.Sprintf("%-4s", name)
		if idx == b.comp {
			marker = s.Selected.Render("▸ ")
			label = s.Selected.Render(label)
		}
		p.WriteString(fmt.Sprintf("%s%s %12.6g  %s\n", marker, label, end[idx], s.Sparkline(window, 24)))
	}

	if sh, ok := b.shocks[b.year]; ok {
		p.WriteString("\n" + s.Shock.Render(fmt.Sprintf("disaster: r -%.4g, p -%.4g (c = %.4g)", sh.LossR, sh.LossP, sh.C)))
	}
	return p.String()
}

func (b Browser) metricsPanel() string {
	s := b.styles
	var p strings.Builder

	p.WriteString(s.Title.Render("Run") + "\n\n")
	p.WriteString(s.Metric("points", float64(b.tr.Len())) + "\n")
	p.WriteString(s.Metric("disasters", float64(len(b.tr.Shocks))) + "\n")

	names := make([]string, 0, len(b.tr.Metrics))
	for name := range b.tr.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		p.WriteString(s.Metric(name, b.tr.Metrics[name]) + "\n")
	}
	return strings.TrimRight(p.String(), "\n")
}

// RunBrowser opens the browser in the alternate screen and blocks until
// the user quits.
func RunBrowser(b Browser) error {
	_, err := tea.NewProgram(b, tea.WithAltScreen()).Run()
	return err
}
