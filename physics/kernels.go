package physics

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/FEKernel/ad"
	"github.com/notargets/FEKernel/fem"
	"github.com/notargets/FEKernel/material"
)

// BodyForce is a constant volumetric source: -f·test
type BodyForce struct {
	*fem.ObjectBase
	value float64
}

func newBodyForce(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	return &BodyForce{ObjectBase: b, value: s.Params().Float("value")}, nil
}

func (k *BodyForce) ComputeQpResidual(q *fem.Qp) float64 {
	return -k.value * q.Test()
}

// Diffusion is the Laplacian: ∇u·∇test
type Diffusion struct {
	*fem.ObjectBase
}

func newDiffusion(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	return &Diffusion{ObjectBase: b}, nil
}

func (k *Diffusion) ComputeQpResidual(q *fem.Qp) float64 {
	return r3.Dot(q.Gradient(k.Variable()), q.GradTest())
}

func (k *Diffusion) ComputeQpJacobian(q *fem.Qp) float64 {
	return r3.Dot(q.GradPhi(), q.GradTest())
}

// MatDiffusion scales diffusion by a material property: D∇u·∇test. The
// Jacobian treats D as independent of u.
type MatDiffusion struct {
	*fem.ObjectBase
	d *material.ReadHandle[float64]
}

func newMatDiffusion(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	d, err := fem.GetMaterialProperty[float64](s, s.Params().String("diffusivity"))
	if err != nil {
		return nil, err
	}
	return &MatDiffusion{ObjectBase: b, d: d}, nil
}

func (k *MatDiffusion) ComputeQpResidual(q *fem.Qp) float64 {
	return k.d.At(q) * r3.Dot(q.Gradient(k.Variable()), q.GradTest())
}

func (k *MatDiffusion) ComputeQpJacobian(q *fem.Qp) float64 {
	return k.d.At(q) * r3.Dot(q.GradPhi(), q.GradTest())
}

// ADMatDiffusion is MatDiffusion with a dual valued diffusivity; its
// Jacobian includes the dependence of D on the solution
type ADMatDiffusion struct {
	*fem.ObjectBase
	d *material.ReadHandle[ad.Dual]
}

func newADMatDiffusion(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	d, err := fem.GetMaterialProperty[ad.Dual](s, s.Params().String("diffusivity"))
	if err != nil {
		return nil, err
	}
	return &ADMatDiffusion{ObjectBase: b, d: d}, nil
}

func (k *ADMatDiffusion) ComputeQpADResidual(q *fem.Qp) ad.Dual {
	return k.d.At(q).Mul(q.ADGradient(k.Variable()).Dot(q.GradTest()))
}

// Reaction is a linear sink: λu·test
type Reaction struct {
	*fem.ObjectBase
	rate float64
}

func newReaction(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	return &Reaction{ObjectBase: b, rate: s.Params().Float("rate")}, nil
}

func (k *Reaction) ComputeQpResidual(q *fem.Qp) float64 {
	return k.rate * q.Value(k.Variable()) * q.Test()
}

func (k *Reaction) ComputeQpJacobian(q *fem.Qp) float64 {
	return k.rate * q.Phi() * q.Test()
}

// CoupledForce drives a variable with another one: -c·v·test
type CoupledForce struct {
	*fem.ObjectBase
	v    *fem.Variable
	coef float64
}

func newCoupledForce(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	v, err := s.CoupledOne("v")
	if err != nil {
		return nil, err
	}
	return &CoupledForce{ObjectBase: b, v: v, coef: s.Params().Float("coef")}, nil
}

func (k *CoupledForce) ComputeQpResidual(q *fem.Qp) float64 {
	return -k.coef * q.Value(k.v) * q.Test()
}

func (k *CoupledForce) ComputeQpJacobian(q *fem.Qp) float64 {
	if k.v == k.Variable() {
		return -k.coef * q.Phi() * q.Test()
	}
	return 0
}

func (k *CoupledForce) ComputeQpOffDiagJacobian(q *fem.Qp, jvar *fem.Variable) float64 {
	if jvar == k.v {
		return -k.coef * q.Phi() * q.Test()
	}
	return 0
}

// TimeDerivative is the mass term: u̇·test
type TimeDerivative struct {
	*fem.ObjectBase
}

func newTimeDerivative(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	return &TimeDerivative{ObjectBase: b}, nil
}

func (k *TimeDerivative) ComputeQpResidual(q *fem.Qp) float64 {
	return q.ValueDot(k.Variable()) * q.Test()
}

func (k *TimeDerivative) ComputeQpJacobian(q *fem.Qp) float64 {
	return q.DuDotDu() * q.Phi() * q.Test()
}

// SteadyValue pins a variable weakly: (u - value)·test
type SteadyValue struct {
	*fem.ObjectBase
	value float64
}

func newSteadyValue(s *fem.Setup) (fem.Object, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	return &SteadyValue{ObjectBase: b, value: s.Params().Float("value")}, nil
}

func (k *SteadyValue) ComputeQpResidual(q *fem.Qp) float64 {
	return (q.Value(k.Variable()) - k.value) * q.Test()
}

func (k *SteadyValue) ComputeQpJacobian(q *fem.Qp) float64 {
	return q.Phi() * q.Test()
}
