// Package mesh holds the cells, nodes and boundary sides the assembly loop
// walks. A Mesh is immutable once built; assembly references cells by index.
package mesh

import (
	"fmt"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/FEKernel/element"
)

type SubdomainID int

type BoundaryID int

type Node struct {
	ID int
	X  r3.Vec
}

type Cell struct {
	ID    int
	Type  element.Type
	Nodes []int // global node ids in reference element order
	Block SubdomainID
}

// Side is a boundary face of a cell
type Side struct {
	Cell     int
	Index    int // local side index in the cell's reference element
	Boundary BoundaryID
}

type Mesh struct {
	Dim   int
	Nodes []Node
	Cells []Cell
	Sides []Side

	// NodeSets holds the sorted node ids on each boundary
	NodeSets      map[BoundaryID][]int
	BoundaryNames map[string]BoundaryID
	BlockNames    map[string]SubdomainID

	cellNeighbors [][]int
}

func (m *Mesh) NumNodes() int { return len(m.Nodes) }
func (m *Mesh) NumCells() int { return len(m.Cells) }

// Blocks returns the sorted distinct subdomain ids present in the mesh
func (m *Mesh) Blocks() []SubdomainID {
	seen := make(map[SubdomainID]bool)
	var out []SubdomainID
	for _, c := range m.Cells {
		if !seen[c.Block] {
			seen[c.Block] = true
			out = append(out, c.Block)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Boundaries returns the sorted boundary ids that carry sides or nodes
func (m *Mesh) Boundaries() []BoundaryID {
	out := make([]BoundaryID, 0, len(m.NodeSets))
	for b := range m.NodeSets {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Block resolves a block name or numeric id
func (m *Mesh) Block(name string) (SubdomainID, error) {
	if id, ok := m.BlockNames[name]; ok {
		return id, nil
	}
	id, err := strconv.Atoi(name)
	if err != nil {
		return 0, fmt.Errorf("unknown block %q", name)
	}
	for _, b := range m.Blocks() {
		if b == SubdomainID(id) {
			return b, nil
		}
	}
	return 0, fmt.Errorf("block %d not present in mesh", id)
}

// Boundary resolves a boundary name or numeric id
func (m *Mesh) Boundary(name string) (BoundaryID, error) {
	if id, ok := m.BoundaryNames[name]; ok {
		return id, nil
	}
	id, err := strconv.Atoi(name)
	if err != nil {
		return 0, fmt.Errorf("unknown boundary %q", name)
	}
	if _, ok := m.NodeSets[BoundaryID(id)]; !ok {
		return 0, fmt.Errorf("boundary %d not present in mesh", id)
	}
	return BoundaryID(id), nil
}

// CellsIn returns the ids of cells whose block is in blocks, or all cells
// when blocks is empty
func (m *Mesh) CellsIn(blocks []SubdomainID) []int {
	out := make([]int, 0, len(m.Cells))
	for i, c := range m.Cells {
		if len(blocks) == 0 || ContainsBlock(blocks, c.Block) {
			out = append(out, i)
		}
	}
	return out
}

// SidesOn returns the boundary sides tagged with b
func (m *Mesh) SidesOn(b BoundaryID) []Side {
	var out []Side
	for _, s := range m.Sides {
		if s.Boundary == b {
			out = append(out, s)
		}
	}
	return out
}

// CellCoords writes the physical coordinates of a cell's nodes into dst
func (m *Mesh) CellCoords(cell int, dst []r3.Vec) []r3.Vec {
	nodes := m.Cells[cell].Nodes
	if cap(dst) < len(nodes) {
		dst = make([]r3.Vec, len(nodes))
	}
	dst = dst[:len(nodes)]
	for a, n := range nodes {
		dst[a] = m.Nodes[n].X
	}
	return dst
}

// Centroid is the average of a cell's node coordinates
func (m *Mesh) Centroid(cell int) r3.Vec {
	var c r3.Vec
	nodes := m.Cells[cell].Nodes
	for _, n := range nodes {
		c = r3.Add(c, m.Nodes[n].X)
	}
	return r3.Scale(1/float64(len(nodes)), c)
}

// AssignBlocks retags every cell with the block returned by f for its centroid
func (m *Mesh) AssignBlocks(f func(centroid r3.Vec) SubdomainID) {
	for i := range m.Cells {
		m.Cells[i].Block = f(m.Centroid(i))
	}
}

// CellNeighbors returns, for each cell, the sorted ids of cells sharing at
// least one node with it
func (m *Mesh) CellNeighbors() [][]int {
	if m.cellNeighbors != nil {
		return m.cellNeighbors
	}
	nodeCells := make([][]int, len(m.Nodes))
	for i, c := range m.Cells {
		for _, n := range c.Nodes {
			nodeCells[n] = append(nodeCells[n], i)
		}
	}
	nbrs := make([][]int, len(m.Cells))
	for i, c := range m.Cells {
		seen := map[int]bool{i: true}
		for _, n := range c.Nodes {
			for _, j := range nodeCells[n] {
				if !seen[j] {
					seen[j] = true
					nbrs[i] = append(nbrs[i], j)
				}
			}
		}
		sort.Ints(nbrs[i])
	}
	m.cellNeighbors = nbrs
	return nbrs
}

// Validate checks node references and element node counts
func (m *Mesh) Validate() error {
	for i, c := range m.Cells {
		el, err := element.Get(c.Type)
		if err != nil {
			return fmt.Errorf("cell %d: %w", i, err)
		}
		if np := el.GetProperties().Np; len(c.Nodes) != np {
			return fmt.Errorf("cell %d: %v needs %d nodes, has %d", i, c.Type, np, len(c.Nodes))
		}
		for _, n := range c.Nodes {
			if n < 0 || n >= len(m.Nodes) {
				return fmt.Errorf("cell %d: node %d out of range", i, n)
			}
		}
	}
	for _, s := range m.Sides {
		if s.Cell < 0 || s.Cell >= len(m.Cells) {
			return fmt.Errorf("side references cell %d out of range", s.Cell)
		}
	}
	return nil
}

func ContainsBlock(blocks []SubdomainID, b SubdomainID) bool {
	for _, x := range blocks {
		if x == b {
			return true
		}
	}
	return false
}

func ContainsBoundary(boundaries []BoundaryID, b BoundaryID) bool {
	for _, x := range boundaries {
		if x == b {
			return true
		}
	}
	return false
}
