package grouping

import (
	"math"

	"github.com/nvandessel/socioscope/internal/models"
)

type cell struct{ x, y int }

// Index is a uniform grid over agent positions. With a cell size equal to the
// query radius, every neighbor of a point lies in the 3x3 block of cells
// around it, so a neighbor query touches a bounded number of candidates on
// sparse populations while returning exactly the agents an exhaustive scan would.
type Index struct {
	size   float64
	agents []models.Agent
	cells  map[cell][]int
}

// NewIndex builds a grid index with the given cell size. A non-positive size
// yields an index that answers every query with no neighbors.
func NewIndex(agents []models.Agent, size float64) *Index {
	idx := &Index{
		size:   size,
		agents: agents,
		cells:  make(map[cell][]int),
	}
	if size <= 0 {
		return idx
	}
	for i, a := range agents {
		c := idx.cellOf(a.Position)
		idx.cells[c] = append(idx.cells[c], i)
	}
	return idx
}

func (idx *Index) cellOf(p models.Position) cell {
	return cell{
		x: int(math.Floor(p.X / idx.size)),
		y: int(math.Floor(p.Y / idx.size)),
	}
}

// Neighbors returns the indices of agents strictly closer than radius to the
// agent at position i, excluding i itself. radius must not exceed the cell size.
func (idx *Index) Neighbors(i int, radius float64) []int {
	if idx.size <= 0 || radius <= 0 {
		return nil
	}
	origin := idx.agents[i]
	c := idx.cellOf(origin.Position)

	var out []int
	for dx := -1; dx <= 1; dx++ {
		for dy := -1; dy <= 1; dy++ {
			for _, j := range idx.cells[cell{c.x + dx, c.y + dy}] {
				if j == i {
					continue
				}
				if models.Distance(origin, idx.agents[j]) < radius {
					out = append(out, j)
				}
			}
		}
	}
	return out
}
