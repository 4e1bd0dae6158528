package analysis

import (
	"fmt"
	"strings"

	"github.com/san-kum/climsim/internal/climate"
	"github.com/san-kum/climsim/internal/sim"
)

type Point struct {
	X, Y float64
}

// PhasePortrait pairs two state components over a run. Section holds the
// year-end samples, a stroboscopic section taken at the disaster clock.
type PhasePortrait struct {
	XIndex, YIndex int
	Points         []Point
	Section        []Point
}

// NewPhasePortrait projects tr onto components xIdx and yIdx.
func NewPhasePortrait(tr *sim.Trajectory, xIdx, yIdx int) (*PhasePortrait, error) {
	if xIdx < 0 || xIdx >= climate.StateDim || yIdx < 0 || yIdx >= climate.StateDim {
		return nil, fmt.Errorf("component index out of range: %d, %d", xIdx, yIdx)
	}
	if tr.Len() == 0 {
		return nil, fmt.Errorf("no data")
	}

	portrait := &PhasePortrait{
		XIndex: xIdx,
		YIndex: yIdx,
		Points: make([]Point, 0, tr.Len()),
	}
	for _, x := range tr.States {
		portrait.Points = append(portrait.Points, Point{X: x[xIdx], Y: x[yIdx]})
	}

	days := max(tr.DaysPerYear, 1)
	for i := days; i < tr.Len(); i += days {
		portrait.Section = append(portrait.Section, portrait.Points[i])
	}
	return portrait, nil
}

func (p *PhasePortrait) Title() string {
	return fmt.Sprintf("%s vs %s", climate.ComponentNames[p.YIndex], climate.ComponentNames[p.XIndex])
}

// ToASCII draws the portrait: '•' for the path, 'o' for year-end samples,
// 'S' and 'E' for the first and last points.
func (p *PhasePortrait) ToASCII(width, height int) string {
	if p == nil || len(p.Points) == 0 || width < 2 || height < 2 {
		return ""
	}

	minX, maxX := p.Points[0].X, p.Points[0].X
	minY, maxY := p.Points[0].Y, p.Points[0].Y
	for _, pt := range p.Points {
		minX, maxX = min(minX, pt.X), max(maxX, pt.X)
		minY, maxY = min(minY, pt.Y), max(maxY, pt.Y)
	}

	rangeX := maxX - minX
	rangeY := maxY - minY
	if rangeX == 0 {
		rangeX = 1
	}
	if rangeY == 0 {
		rangeY = 1
	}
	minX -= rangeX * 0.05
	minY -= rangeY * 0.05
	rangeX *= 1.1
	rangeY *= 1.1

	canvas := make([][]rune, height)
	for i := range canvas {
		canvas[i] = []rune(strings.Repeat(" ", width))
	}

	plot := func(pt Point, r rune) {
		col := int((pt.X - minX) / rangeX * float64(width-1))
		row := height - 1 - int((pt.Y-minY)/rangeY*float64(height-1))
		if row >= 0 && row < height && col >= 0 && col < width {
			canvas[row][col] = r
		}
	}

	for _, pt := range p.Points {
		plot(pt, '•')
	}
	for _, pt := range p.Section {
		plot(pt, 'o')
	}
	plot(p.Points[0], 'S')
	plot(p.Points[len(p.Points)-1], 'E')

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%s  (x: %.4g..%.4g, y: %.4g..%.4g)\n", p.Title(), minX, minX+rangeX, minY, minY+rangeY))
	for _, row := range canvas {
		sb.WriteString(string(row))
		sb.WriteRune('\n')
	}
	return sb.String()
}
