package main

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// SpatialCellSize is about twice the radius of a large ship.
const SpatialCellSize = 100.0

// SpatialGrid is a uniform broad-phase grid over the torus. Cell indices wrap
// on both axes, so a query near one edge also sees the opposite edge.
type SpatialGrid struct {
	cols, rows int
	cellW      float64
	cellH      float64
	cells      [][]int64
}

// NewSpatialGrid sizes a grid for arena. Cells are stretched so that a whole
// number of them spans each axis.
func NewSpatialGrid(arena Arena, cellSize float64) *SpatialGrid {
	cols := int(math.Max(1, math.Floor(arena.W/cellSize)))
	rows := int(math.Max(1, math.Floor(arena.H/cellSize)))
	return &SpatialGrid{
		cols:  cols,
		rows:  rows,
		cellW: arena.W / float64(cols),
		cellH: arena.H / float64(rows),
		cells: make([][]int64, cols*rows),
	}
}

// Clear resets all cells (keeps allocated capacity)
func (g *SpatialGrid) Clear() {
	for i := range g.cells {
		g.cells[i] = g.cells[i][:0]
	}
}

func wrapIndex(i, n int) int {
	i %= n
	if i < 0 {
		i += n
	}
	return i
}

// span returns the wrapped cell ranges covered by the box around pos.
func (g *SpatialGrid) span(pos mgl64.Vec2, radius float64, visit func(idx int)) {
	minCX := int(math.Floor((pos[0] - radius) / g.cellW))
	maxCX := int(math.Floor((pos[0] + radius) / g.cellW))
	minCY := int(math.Floor((pos[1] - radius) / g.cellH))
	maxCY := int(math.Floor((pos[1] + radius) / g.cellH))
	// a box wider than the torus covers each column once
	if maxCX-minCX >= g.cols {
		minCX, maxCX = 0, g.cols-1
	}
	if maxCY-minCY >= g.rows {
		minCY, maxCY = 0, g.rows-1
	}
	for cy := minCY; cy <= maxCY; cy++ {
		for cx := minCX; cx <= maxCX; cx++ {
			visit(wrapIndex(cy, g.rows)*g.cols + wrapIndex(cx, g.cols))
		}
	}
}

// InsertCircle adds id to all cells overlapping its bounding box
func (g *SpatialGrid) InsertCircle(pos mgl64.Vec2, radius float64, id int64) {
	g.span(pos, radius, func(idx int) {
		g.cells[idx] = append(g.cells[idx], id)
	})
}

// QueryBuf appends the ids found in cells overlapping the box around pos to
// buf, each at most once, and returns the extended slice.
func (g *SpatialGrid) QueryBuf(pos mgl64.Vec2, radius float64, buf []int64) []int64 {
	seen := make(map[int64]struct{})
	g.span(pos, radius, func(idx int) {
		for _, id := range g.cells[idx] {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			buf = append(buf, id)
		}
	})
	return buf
}
