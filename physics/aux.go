package physics

import (
	"github.com/notargets/FEKernel/fem"
	"github.com/notargets/FEKernel/material"
)

// MaterialRealAux stores the cell average of a material property
type MaterialRealAux struct {
	*fem.ObjectBase
	prop *material.ReadHandle[float64]
}

func newMaterialRealAux(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	h, err := fem.GetMaterialProperty[float64](s, s.Params().String("property"))
	if err != nil {
		return nil, err
	}
	return &MaterialRealAux{ObjectBase: b, prop: h}, nil
}

func (a *MaterialRealAux) ComputeValue(q *fem.Qp) float64 { return a.prop.At(q) }

// VariableGradientAux stores the cell average of one gradient component
type VariableGradientAux struct {
	*fem.ObjectBase
	v         *fem.Variable
	component int
}

func newVariableGradientAux(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	v, err := s.CoupledOne("gradient_variable")
	if err != nil {
		return nil, err
	}
	return &VariableGradientAux{ObjectBase: b, v: v, component: s.Params().Int("component")}, nil
}

func (a *VariableGradientAux) ComputeValue(q *fem.Qp) float64 {
	g := q.Gradient(a.v)
	switch a.component {
	case 0:
		return g.X
	case 1:
		return g.Y
	}
	return g.Z
}
