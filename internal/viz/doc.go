// Package viz renders finished climate runs in the terminal.
//
//   - [PlotComponents]: asciigraph line charts, one per state component
//   - [Browser]: a Bubble Tea trajectory browser for a completed run
//
// # Key Bindings
//
//	h/l, left/right - previous/next year
//	j/k, up/down    - select component
//	z               - zoom to the selected year
//	t               - cycle color themes
//	g/G             - first/last year
//	q               - quit
package viz
