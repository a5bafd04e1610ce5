package fem

import (
	"github.com/notargets/FEKernel/mesh"
)

// DofMap numbers the dofs of one system. Nodal dofs are numbered node-major
// (all variables of node 0, then node 1, ...), elemental dofs follow.
type DofMap struct {
	vars     []*Variable
	nodeDofs [][]int // [node][var] -> dof, -1 when inactive
	cellDofs [][]int // [cell][var] -> dof, -1 when inactive
	nodeOf   []int   // dof -> node, -1 for elemental dofs
	varOf    []int   // dof -> variable index
	n        int
}

func NewDofMap(m *mesh.Mesh, vars []*Variable) *DofMap {
	d := &DofMap{
		vars:     vars,
		nodeDofs: make([][]int, m.NumNodes()),
		cellDofs: make([][]int, m.NumCells()),
	}
	// a node carries a Lagrange variable when any adjacent cell is in its blocks
	active := make([][]bool, m.NumNodes())
	for n := range active {
		active[n] = make([]bool, len(vars))
	}
	for _, c := range m.Cells {
		for vi, v := range vars {
			if v.Family != Lagrange || !v.ActiveOn(c.Block) {
				continue
			}
			for _, n := range c.Nodes {
				active[n][vi] = true
			}
		}
	}
	for n := range d.nodeDofs {
		d.nodeDofs[n] = make([]int, len(vars))
		for vi := range vars {
			d.nodeDofs[n][vi] = -1
			if active[n][vi] {
				d.nodeDofs[n][vi] = d.n
				d.nodeOf = append(d.nodeOf, n)
				d.varOf = append(d.varOf, vi)
				d.n++
			}
		}
	}
	for ci, c := range m.Cells {
		d.cellDofs[ci] = make([]int, len(vars))
		for vi, v := range vars {
			d.cellDofs[ci][vi] = -1
			if v.Family == Constant && v.ActiveOn(c.Block) {
				d.cellDofs[ci][vi] = d.n
				d.nodeOf = append(d.nodeOf, -1)
				d.varOf = append(d.varOf, vi)
				d.n++
			}
		}
	}
	return d
}

func (d *DofMap) NumDofs() int { return d.n }

func (d *DofMap) Variables() []*Variable { return d.vars }

// NodeDof returns the dof of variable v at node, -1 when inactive there
func (d *DofMap) NodeDof(node int, v *Variable) int {
	return d.nodeDofs[node][v.Index]
}

// CellDof returns the elemental dof of a Constant variable, -1 when inactive
func (d *DofMap) CellDof(cell int, v *Variable) int {
	return d.cellDofs[cell][v.Index]
}

// VariableOf returns the variable that owns dof
func (d *DofMap) VariableOf(dof int) *Variable { return d.vars[d.varOf[dof]] }

// NodeOf returns the node a nodal dof lives on, -1 for elemental dofs
func (d *DofMap) NodeOf(dof int) int { return d.nodeOf[dof] }

// LocalDofs writes the global dofs of v on cell into dst in local shape
// function order. It returns nil when v is inactive on the cell.
func (d *DofMap) LocalDofs(m *mesh.Mesh, cell int, v *Variable, dst []int) []int {
	c := &m.Cells[cell]
	if !v.ActiveOn(c.Block) {
		return dst[:0]
	}
	dst = dst[:0]
	switch v.Family {
	case Lagrange:
		for _, n := range c.Nodes {
			dst = append(dst, d.nodeDofs[n][v.Index])
		}
	case Constant:
		dst = append(dst, d.cellDofs[cell][v.Index])
	}
	return dst
}
