package fem

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/FEKernel/mesh"
)

// ObjectBase carries the wiring every object shares. Physics objects embed
// it and add their capabilities.
type ObjectBase struct {
	name       string
	variable   *Variable
	blocks     []mesh.SubdomainID
	boundaries []mesh.BoundaryID
	coupled    []*Variable
}

// NewObjectBase builds the shared wiring for objects constructed in code
func NewObjectBase(name string, v *Variable, blocks []mesh.SubdomainID, boundaries []mesh.BoundaryID) *ObjectBase {
	return &ObjectBase{name: name, variable: v, blocks: blocks, boundaries: boundaries}
}

func (b *ObjectBase) Name() string { return b.name }
func (b *ObjectBase) Variable() *Variable { return b.variable }
func (b *ObjectBase) Blocks() []mesh.SubdomainID { return b.blocks }
func (b *ObjectBase) Boundaries() []mesh.BoundaryID { return b.boundaries }
func (b *ObjectBase) CoupledVariables() []*Variable { return b.coupled }

// Couple records a coupled variable
func (b *ObjectBase) Couple(v *Variable) {
	for _, c := range b.coupled {
		if c == v {
			return
		}
	}
	b.coupled = append(b.coupled, v)
}

// NodeContext is the view of one boundary node handed to nodal objects
type NodeContext struct {
	Node int
	X    r3.Vec
	Time float64

	dofs *DofMap
	u    []float64
}

func NewNodeContext(dofs *DofMap, u []float64) *NodeContext {
	return &NodeContext{dofs: dofs, u: u}
}

// Value returns the nodal value of v, 0 when v has no dof at this node
func (n *NodeContext) Value(v *Variable) float64 {
	d := n.dofs.NodeDof(n.Node, v)
	if d < 0 {
		return 0
	}
	return n.u[d]
}
