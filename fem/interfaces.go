package fem

import (
	"github.com/notargets/FEKernel/ad"
	"github.com/notargets/FEKernel/mesh"
)

// Object is implemented by every physics object
type Object interface {
	Name() string
}

// BlockRestricted objects only run on cells of their blocks; an empty list
// means every block
type BlockRestricted interface {
	Blocks() []mesh.SubdomainID
}

// BoundaryRestricted objects run on sides or nodes of their boundaries
type BoundaryRestricted interface {
	Boundaries() []mesh.BoundaryID
}

// VariableBound objects contribute to the rows of one variable
type VariableBound interface {
	Variable() *Variable
}

// CouplingDeclarer lists the variables an object reads besides its own.
// Off-diagonal Jacobian blocks are assembled only for these.
type CouplingDeclarer interface {
	CoupledVariables() []*Variable
}

// ResidualProvider returns the pointwise residual including the test
// function. The assembler multiplies by JxW.
type ResidualProvider interface {
	ComputeQpResidual(q *Qp) float64
}

// JacobianProvider returns ∂R/∂u_j for the object's own variable
type JacobianProvider interface {
	ComputeQpJacobian(q *Qp) float64
}

// OffDiagJacobianProvider returns ∂R/∂v_j for a declared coupled variable
type OffDiagJacobianProvider interface {
	ComputeQpOffDiagJacobian(q *Qp, jvar *Variable) float64
}

// ADResidualProvider returns the residual as a dual number; its partials
// supply every Jacobian entry of the row
type ADResidualProvider interface {
	ComputeQpADResidual(q *Qp) ad.Dual
}

// MaterialComputer writes the current value of its declared properties
type MaterialComputer interface {
	ComputeQpProperties(q *Qp)
}

// StatefulInitializer sets initial values of stateful properties
type StatefulInitializer interface {
	InitQpStatefulProperties(q *Qp)
}

// AuxComputer returns the pointwise value an elemental auxiliary variable
// takes the volume average of
type AuxComputer interface {
	ComputeValue(q *Qp) float64
}

// PostprocessorIntegrand is integrated over the object's cells or sides.
// Finalize reduces the integral and measure to the reported value.
type PostprocessorIntegrand interface {
	ComputeQpIntegral(q *Qp) float64
	Finalize(integral, measure float64) float64
}

// PostprocessorInitializer resets per-worker state before each pass
type PostprocessorInitializer interface {
	Initialize()
}

// NodalResidualProvider replaces residual rows at boundary nodes
type NodalResidualProvider interface {
	ComputeNodalResidual(n *NodeContext) float64
	ComputeNodalJacobian(n *NodeContext) float64
}
