package physics

import (
	"github.com/notargets/FEKernel/fem"
)

// NeumannBC imposes a flux h on the boundary: -h·test
type NeumannBC struct {
	*fem.ObjectBase
	value float64
}

func newNeumannBC(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	return &NeumannBC{ObjectBase: b, value: s.Params().Float("value")}, nil
}

func (bc *NeumannBC) ComputeQpResidual(q *fem.Qp) float64 {
	return -bc.value * q.Test()
}

// VacuumBC is the Marshak condition α/2·u·test
type VacuumBC struct {
	*fem.ObjectBase
	alpha float64
}

func newVacuumBC(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	return &VacuumBC{ObjectBase: b, alpha: s.Params().Float("alpha")}, nil
}

func (bc *VacuumBC) ComputeQpResidual(q *fem.Qp) float64 {
	return bc.alpha / 2 * q.Value(bc.Variable()) * q.Test()
}

func (bc *VacuumBC) ComputeQpJacobian(q *fem.Qp) float64 {
	return bc.alpha / 2 * q.Phi() * q.Test()
}

// DirichletBC replaces the rows of boundary nodes with u - value
type DirichletBC struct {
	*fem.ObjectBase
	value float64
}

func newDirichletBC(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	if b.Variable().Family != fem.Lagrange {
		return nil, &fem.UnresolvedCouplingError{Object: s.Name(), Variable: b.Variable().Name,
			Reason: "nodal conditions need a nodal (LAGRANGE) variable"}
	}
	return &DirichletBC{ObjectBase: b, value: s.Params().Float("value")}, nil
}

func (bc *DirichletBC) ComputeNodalResidual(n *fem.NodeContext) float64 {
	return n.Value(bc.Variable()) - bc.value
}

func (bc *DirichletBC) ComputeNodalJacobian(*fem.NodeContext) float64 { return 1 }
