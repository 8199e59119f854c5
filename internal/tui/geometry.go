package tui

import (
	"blockplan/internal/editor"
	"blockplan/internal/grid"
)

const (
	gutterWidth = 7
	// Title line, day names, day totals.
	headerRows  = 3
	minColWidth = 6
)

// Row heights tried from finest to coarsest until the window fits.
var rowSteps = []int{15, 30, 60}

// geometry maps terminal cells onto the week grid. Rows are a fixed number
// of minutes; the engine itself works in the window's pixel space, so cells
// are converted with point before they reach it.
type geometry struct {
	win        grid.Window
	colWidth   int
	rows       int
	rowMinutes int
	scroll     int
}

func newGeometry(win grid.Window, width, height, footer int) geometry {
	g := geometry{
		win:      win,
		colWidth: max((width-gutterWidth)/7, minColWidth),
		rows:     max(height-headerRows-footer, 1),
	}
	span := win.EndMinutes() - win.StartMinutes()
	g.rowMinutes = rowSteps[len(rowSteps)-1]
	for _, step := range rowSteps {
		if span/step <= g.rows {
			g.rowMinutes = step
			break
		}
	}
	return g
}

func (g geometry) totalRows() int {
	span := g.win.EndMinutes() - g.win.StartMinutes()
	return (span + g.rowMinutes - 1) / g.rowMinutes
}

func (g geometry) maxScroll() int { return max(g.totalRows()-g.rows, 0) }

// withScroll returns g scrolled by n rows, clamped to the window.
func (g geometry) withScroll(n int) geometry {
	g.scroll = min(max(g.scroll+n, 0), g.maxScroll())
	return g
}

// visibleRows is the number of grid rows actually drawn.
func (g geometry) visibleRows() int { return min(g.rows, g.totalRows()-g.scroll) }

// dayAt returns the day column under screen column x.
func (g geometry) dayAt(x int) (int, bool) {
	if x < gutterWidth {
		return 0, false
	}
	d := (x - gutterWidth) / g.colWidth
	if d > 6 {
		return 0, false
	}
	return d, true
}

// inGrid reports whether screen row y is a drawn grid row.
func (g geometry) inGrid(y int) bool {
	r := y - headerRows
	return r >= 0 && r < g.visibleRows()
}

// rowAt converts screen row y to an absolute grid row, clamped to the
// window so drags past the edge pin to it.
func (g geometry) rowAt(y int) int {
	r := y - headerRows + g.scroll
	return min(max(r, 0), g.totalRows())
}

// rowStart is the minute of day at the top of grid row r.
func (g geometry) rowStart(r int) int {
	return min(g.win.StartMinutes()+r*g.rowMinutes, g.win.EndMinutes())
}

// rowOf is the grid row containing minute m.
func (g geometry) rowOf(m int) int {
	return (m - g.win.StartMinutes()) / g.rowMinutes
}

// point converts a minute of day into the engine's pointer space.
func (g geometry) point(x, minutes int) editor.Point {
	return editor.Point{X: float64(x), Y: g.win.MinutesToOffset(minutes)}
}

// windowLayout gives every day column the full window in pixel space.
type windowLayout struct {
	win grid.Window
}

// Column implements editor.Layout.
func (l windowLayout) Column(dayIndex int) (float64, float64, bool) {
	if dayIndex < 0 || dayIndex > 6 {
		return 0, 0, false
	}
	return 0, l.win.Height(), true
}
