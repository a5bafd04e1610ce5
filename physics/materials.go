package physics

import (
	"fmt"

	"github.com/notargets/FEKernel/ad"
	"github.com/notargets/FEKernel/fem"
	"github.com/notargets/FEKernel/material"
)

// GenericConstantMaterial declares prop_names[i] = prop_values[i]
type GenericConstantMaterial struct {
	*fem.ObjectBase
	props  []*material.WriteHandle[float64]
	values []float64
}

func newGenericConstantMaterial(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	names, values := s.Params().Strings("prop_names"), s.Params().Floats("prop_values")
	if len(names) != len(values) {
		return nil, fmt.Errorf("%s: %d prop_names but %d prop_values", s.Name(), len(names), len(values))
	}
	m := &GenericConstantMaterial{ObjectBase: b, values: values}
	for _, name := range names {
		h, err := fem.DeclareProperty[float64](s, name)
		if err != nil {
			return nil, err
		}
		m.props = append(m.props, h)
	}
	return m, nil
}

func (m *GenericConstantMaterial) ComputeQpProperties(q *fem.Qp) {
	for i, h := range m.props {
		h.Set(q, m.values[i])
	}
}

// LinearMaterial is k0 + k1·u
type LinearMaterial struct {
	*fem.ObjectBase
	prop   *material.WriteHandle[float64]
	v      *fem.Variable
	k0, k1 float64
}

func newLinearMaterial(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	v, err := s.CoupledOne("variable")
	if err != nil {
		return nil, err
	}
	h, err := fem.DeclareProperty[float64](s, s.Params().String("prop_name"))
	if err != nil {
		return nil, err
	}
	return &LinearMaterial{ObjectBase: b, prop: h, v: v,
		k0: s.Params().Float("k0"), k1: s.Params().Float("k1")}, nil
}

func (m *LinearMaterial) ComputeQpProperties(q *fem.Qp) {
	m.prop.Set(q, m.k0+m.k1*q.Value(m.v))
}

// ADLinearMaterial is LinearMaterial carrying derivatives with respect to u
type ADLinearMaterial struct {
	*fem.ObjectBase
	prop   *material.WriteHandle[ad.Dual]
	v      *fem.Variable
	k0, k1 float64
}

func newADLinearMaterial(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	v, err := s.CoupledOne("variable")
	if err != nil {
		return nil, err
	}
	h, err := fem.DeclareProperty[ad.Dual](s, s.Params().String("prop_name"))
	if err != nil {
		return nil, err
	}
	return &ADLinearMaterial{ObjectBase: b, prop: h, v: v,
		k0: s.Params().Float("k0"), k1: s.Params().Float("k1")}, nil
}

func (m *ADLinearMaterial) ComputeQpProperties(q *fem.Qp) {
	m.prop.Set(q, q.ADValue(m.v).Scale(m.k1).AddScalar(m.k0))
}

// DependentMaterial declares prop_name = factor · source
type DependentMaterial struct {
	*fem.ObjectBase
	prop   *material.WriteHandle[float64]
	source *material.ReadHandle[float64]
	factor float64
}

func newDependentMaterial(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	h, err := fem.DeclareProperty[float64](s, s.Params().String("prop_name"))
	if err != nil {
		return nil, err
	}
	src, err := fem.GetMaterialProperty[float64](s, s.Params().String("source"))
	if err != nil {
		return nil, err
	}
	return &DependentMaterial{ObjectBase: b, prop: h, source: src, factor: s.Params().Float("factor")}, nil
}

func (m *DependentMaterial) ComputeQpProperties(q *fem.Qp) {
	m.prop.Set(q, m.factor*m.source.At(q))
}

// StatefulAccumulator integrates rate (times the coupled variable when one
// is given) over time: p = p_old + dt·rate·u
type StatefulAccumulator struct {
	*fem.ObjectBase
	prop    *material.WriteHandle[float64]
	old     *material.ReadHandle[float64]
	v       *fem.Variable
	rate    float64
	initial float64
}

func newStatefulAccumulator(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	name := s.Params().String("prop_name")
	h, err := fem.DeclareProperty[float64](s, name)
	if err != nil {
		return nil, err
	}
	old, err := fem.GetMaterialPropertyOld[float64](s, name)
	if err != nil {
		return nil, err
	}
	m := &StatefulAccumulator{ObjectBase: b, prop: h, old: old,
		rate: s.Params().Float("rate"), initial: s.Params().Float("initial")}
	if s.Params().Has("variable") {
		if m.v, err = s.CoupledOne("variable"); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *StatefulAccumulator) InitQpStatefulProperties(q *fem.Qp) {
	m.prop.Set(q, m.initial)
}

func (m *StatefulAccumulator) ComputeQpProperties(q *fem.Qp) {
	src := m.rate
	if m.v != nil {
		src *= q.Value(m.v)
	}
	m.prop.Set(q, m.old.At(q)+q.Dt()*src)
}
