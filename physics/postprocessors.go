package physics

import (
	"fmt"
	"math"

	"github.com/notargets/FEKernel/fem"
	"github.com/notargets/FEKernel/material"
)

// ElementIntegralVariable is ∫u over its blocks
type ElementIntegralVariable struct {
	*fem.ObjectBase
	v *fem.Variable
}

func newElementIntegralVariable(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	v, err := s.CoupledOne("variable")
	if err != nil {
		return nil, err
	}
	return &ElementIntegralVariable{ObjectBase: b, v: v}, nil
}

func (p *ElementIntegralVariable) ComputeQpIntegral(q *fem.Qp) float64 { return q.Value(p.v) }

func (p *ElementIntegralVariable) Finalize(integral, _ float64) float64 { return integral }

// ElementAverageValue is ∫u / |Ω| over its blocks
type ElementAverageValue struct {
	ElementIntegralVariable
}

func newElementAverageValue(s *fem.Setup) (fem.Object, error) {
	o, err := newElementIntegralVariable(s)
	if err != nil {
		return nil, err
	}
	return &ElementAverageValue{ElementIntegralVariable: *o.(*ElementIntegralVariable)}, nil
}

func (p *ElementAverageValue) Finalize(integral, measure float64) float64 {
	if measure == 0 {
		return 0
	}
	return integral / measure
}

// ElementIntegralMaterialProperty is ∫p over its blocks
type ElementIntegralMaterialProperty struct {
	*fem.ObjectBase
	prop *material.ReadHandle[float64]
}

func newElementIntegralMaterialProperty(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	h, err := fem.GetMaterialProperty[float64](s, s.Params().String("mat_prop"))
	if err != nil {
		return nil, err
	}
	return &ElementIntegralMaterialProperty{ObjectBase: b, prop: h}, nil
}

func (p *ElementIntegralMaterialProperty) ComputeQpIntegral(q *fem.Qp) float64 { return p.prop.At(q) }

func (p *ElementIntegralMaterialProperty) Finalize(integral, _ float64) float64 { return integral }

// SideIntegralVariable is ∫u over its boundaries
type SideIntegralVariable struct {
	ElementIntegralVariable
}

func newSideIntegralVariable(s *fem.Setup) (fem.Object, error) {
	o, err := newElementIntegralVariable(s)
	if err != nil {
		return nil, err
	}
	return &SideIntegralVariable{ElementIntegralVariable: *o.(*ElementIntegralVariable)}, nil
}

// ElementExtremeValue is the largest or smallest qp value of a variable over
// its blocks. Each worker keeps its own extreme, indexed by Qp.ThreadID, and
// Finalize reduces them.
type ElementExtremeValue struct {
	*fem.ObjectBase
	v     *fem.Variable
	max   bool
	slots []float64
}

func newElementExtremeValue(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	v, err := s.CoupledOne("variable")
	if err != nil {
		return nil, err
	}
	p := &ElementExtremeValue{ObjectBase: b, v: v, slots: make([]float64, s.Workers())}
	switch t := s.Params().String("value_type"); t {
	case "max":
		p.max = true
	case "min":
	default:
		return nil, fmt.Errorf("%s: value_type must be max or min, got %q", s.Name(), t)
	}
	p.Initialize()
	return p, nil
}

func (p *ElementExtremeValue) Initialize() {
	start := math.Inf(1)
	if p.max {
		start = math.Inf(-1)
	}
	for i := range p.slots {
		p.slots[i] = start
	}
}

func (p *ElementExtremeValue) ComputeQpIntegral(q *fem.Qp) float64 {
	u := q.Value(p.v)
	slot := &p.slots[q.ThreadID()]
	if (p.max && u > *slot) || (!p.max && u < *slot) {
		*slot = u
	}
	return 0
}

func (p *ElementExtremeValue) Finalize(_, _ float64) float64 {
	out := p.slots[0]
	for _, v := range p.slots[1:] {
		if (p.max && v > out) || (!p.max && v < out) {
			out = v
		}
	}
	return out
}
