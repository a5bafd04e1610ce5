package fem

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/FEKernel/ad"
	"github.com/notargets/FEKernel/mesh"
)

// Qp is the view of one quadrature point handed to physics objects. Test
// and trial indices are set by the assembly loop before each call; objects
// must treat it as read-only.
type Qp struct {
	cache      *QpCache
	q          int
	i, j       int
	ivar, jvar *Variable
}

// SetTest selects test function i of v, used by the assembly loop
func (p *Qp) SetTest(v *Variable, i int) {
	p.ivar, p.i = v, i
}

// SetTrial selects trial function j of v, used by the assembly loop
func (p *Qp) SetTrial(v *Variable, j int) {
	p.jvar, p.j = v, j
}

// CellID and Index locate the point for material property handles
func (p *Qp) CellID() int { return p.cache.cell }
func (p *Qp) Index() int { return p.q }

func (p *Qp) Cell() *mesh.Cell { return &p.cache.sys.Mesh.Cells[p.cache.cell] }

// Side is the local side index for boundary evaluation, -1 in the volume
func (p *Qp) Side() int { return p.cache.side }

func (p *Qp) Point() r3.Vec { return p.cache.xyz[p.q] }
func (p *Qp) JxW() float64 { return p.cache.jxw[p.q] }
func (p *Qp) Normal() r3.Vec { return p.cache.normal[p.q] }
func (p *Qp) Time() float64 { return p.cache.time }
func (p *Qp) Dt() float64 { return p.cache.dt }
func (p *Qp) ThreadID() int { return p.cache.threadID }

// TestIndex and TrialIndex are the local shape function numbers in use
func (p *Qp) TestIndex() int { return p.i }
func (p *Qp) TrialIndex() int { return p.j }

func (p *Qp) Test() float64 { return p.cache.shape(p.ivar, p.q, p.i) }

func (p *Qp) GradTest() r3.Vec { return p.cache.gradShape(p.ivar, p.q, p.i) }

func (p *Qp) Phi() float64 { return p.cache.shape(p.jvar, p.q, p.j) }

func (p *Qp) GradPhi() r3.Vec { return p.cache.gradShape(p.jvar, p.q, p.j) }

// Value returns v interpolated at the point
func (p *Qp) Value(v *Variable) float64 {
	if v.Aux {
		return p.cache.auxValues[v.Index][p.q]
	}
	return p.cache.values[v.Index][p.q]
}

func (p *Qp) Gradient(v *Variable) r3.Vec {
	if v.Aux {
		return p.cache.auxGrads[v.Index][p.q]
	}
	return p.cache.grads[v.Index][p.q]
}

// ValueOld is v at the last accepted step; auxiliary variables have no history
func (p *Qp) ValueOld(v *Variable) float64 {
	if v.Aux {
		return p.Value(v)
	}
	return p.cache.old[v.Index][p.q]
}

func (p *Qp) ValueOlder(v *Variable) float64 {
	if v.Aux {
		return p.Value(v)
	}
	return p.cache.older[v.Index][p.q]
}

// ValueDot is the discrete time derivative of v
func (p *Qp) ValueDot(v *Variable) float64 {
	if v.Aux {
		return 0
	}
	return p.cache.dot[v.Index][p.q]
}

// DuDotDu is ∂uDot/∂u, the leading time integrator coefficient
func (p *Qp) DuDotDu() float64 { return p.cache.coeffs[0] }

// ADValue is v with derivatives with respect to its global dofs. Auxiliary
// variables are constants.
func (p *Qp) ADValue(v *Variable) ad.Dual {
	if v.Aux || !p.cache.computeAD {
		return ad.Constant(p.Value(v))
	}
	return p.cache.adValues[v.Index][p.q]
}

func (p *Qp) ADGradient(v *Variable) ad.Vec {
	if v.Aux || !p.cache.computeAD {
		return ad.ConstVec(p.Gradient(v))
	}
	return p.cache.adGrads[v.Index][p.q]
}

// ADValueDot is the time derivative of v as a dual number
func (p *Qp) ADValueDot(v *Variable) ad.Dual {
	if v.Aux {
		return ad.Constant(0)
	}
	c := p.cache.coeffs
	return p.ADValue(v).Scale(c[0]).AddScalar(c[1]*p.ValueOld(v) + c[2]*p.ValueOlder(v))
}
