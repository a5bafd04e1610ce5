// Package ad implements forward-mode automatic differentiation with sparse
// derivative storage. A Dual carries a value and the partial derivatives of
// that value with respect to a set of global degree-of-freedom indices.
package ad

import (
	"fmt"
	"math"
	"sort"
	"strings"
)

// Partial is a single derivative entry: ∂value/∂dof[Index]
type Partial struct {
	Index int
	D     float64
}

// Dual is a value with sparse first derivatives. Partials are kept sorted by
// Index with no duplicates; the zero value is the constant 0.
type Dual struct {
	V  float64
	Ds []Partial
}

// Constant returns a Dual with no derivatives
func Constant(v float64) Dual {
	return Dual{V: v}
}

// Variable returns a Dual seeded with ∂v/∂dof[index] = 1
func Variable(v float64, index int) Dual {
	return Dual{V: v, Ds: []Partial{{Index: index, D: 1}}}
}

// Seeded returns a Dual seeded with ∂v/∂dof[index] = d
func Seeded(v float64, index int, d float64) Dual {
	if d == 0 {
		return Dual{V: v}
	}
	return Dual{V: v, Ds: []Partial{{Index: index, D: d}}}
}

// FromPartials builds a Dual from unsorted partials, merging duplicates
func FromPartials(v float64, partials []Partial) Dual {
	ds := make([]Partial, len(partials))
	copy(ds, partials)
	sort.Slice(ds, func(i, j int) bool { return ds[i].Index < ds[j].Index })
	out := ds[:0]
	for _, p := range ds {
		if n := len(out); n > 0 && out[n-1].Index == p.Index {
			out[n-1].D += p.D
			continue
		}
		out = append(out, p)
	}
	return Dual{V: v, Ds: out}
}

// Value returns the scalar value
func (a Dual) Value() float64 { return a.V }

// Partials returns the derivative entries sorted by index
func (a Dual) Partials() []Partial { return a.Ds }

// Deriv returns ∂a/∂dof[index], zero when index is not present
func (a Dual) Deriv(index int) float64 {
	k := sort.Search(len(a.Ds), func(i int) bool { return a.Ds[i].Index >= index })
	if k < len(a.Ds) && a.Ds[k].Index == index {
		return a.Ds[k].D
	}
	return 0
}

// IsFinite reports whether the value and every partial are finite
func (a Dual) IsFinite() bool {
	if math.IsNaN(a.V) || math.IsInf(a.V, 0) {
		return false
	}
	for _, p := range a.Ds {
		if math.IsNaN(p.D) || math.IsInf(p.D, 0) {
			return false
		}
	}
	return true
}

// combine returns ca*a.Ds + cb*b.Ds merged by index
func combine(ca float64, a []Partial, cb float64, b []Partial) []Partial {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]Partial, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Index == b[j].Index:
			out = append(out, Partial{a[i].Index, ca*a[i].D + cb*b[j].D})
			i++
			j++
		case a[i].Index < b[j].Index:
			out = append(out, Partial{a[i].Index, ca * a[i].D})
			i++
		default:
			out = append(out, Partial{b[j].Index, cb * b[j].D})
			j++
		}
	}
	for ; i < len(a); i++ {
		out = append(out, Partial{a[i].Index, ca * a[i].D})
	}
	for ; j < len(b); j++ {
		out = append(out, Partial{b[j].Index, cb * b[j].D})
	}
	return out
}

func scaled(c float64, a []Partial) []Partial {
	if len(a) == 0 {
		return nil
	}
	out := make([]Partial, len(a))
	for i, p := range a {
		out[i] = Partial{p.Index, c * p.D}
	}
	return out
}

// Add returns a + b
func (a Dual) Add(b Dual) Dual {
	return Dual{V: a.V + b.V, Ds: combine(1, a.Ds, 1, b.Ds)}
}

// Sub returns a - b
func (a Dual) Sub(b Dual) Dual {
	return Dual{V: a.V - b.V, Ds: combine(1, a.Ds, -1, b.Ds)}
}

// Mul returns a * b
func (a Dual) Mul(b Dual) Dual {
	return Dual{V: a.V * b.V, Ds: combine(b.V, a.Ds, a.V, b.Ds)}
}

// Div returns a / b
func (a Dual) Div(b Dual) Dual {
	inv := 1 / b.V
	return Dual{V: a.V * inv, Ds: combine(inv, a.Ds, -a.V*inv*inv, b.Ds)}
}

// Scale returns s * a
func (a Dual) Scale(s float64) Dual {
	return Dual{V: s * a.V, Ds: scaled(s, a.Ds)}
}

// AddScalar returns a + c
func (a Dual) AddScalar(c float64) Dual {
	return Dual{V: a.V + c, Ds: a.Ds}
}

// Neg returns -a
func (a Dual) Neg() Dual {
	return a.Scale(-1)
}

// chain applies f(a) with f'(a) = df
func chain(a Dual, f, df float64) Dual {
	return Dual{V: f, Ds: scaled(df, a.Ds)}
}

// Pow returns a^p
func Pow(a Dual, p float64) Dual {
	return chain(a, math.Pow(a.V, p), p*math.Pow(a.V, p-1))
}

// Sqrt returns √a
func Sqrt(a Dual) Dual {
	s := math.Sqrt(a.V)
	return chain(a, s, 0.5/s)
}

// Exp returns e^a
func Exp(a Dual) Dual {
	e := math.Exp(a.V)
	return chain(a, e, e)
}

// Log returns ln(a)
func Log(a Dual) Dual {
	return chain(a, math.Log(a.V), 1/a.V)
}

// Sin returns sin(a)
func Sin(a Dual) Dual {
	return chain(a, math.Sin(a.V), math.Cos(a.V))
}

// Cos returns cos(a)
func Cos(a Dual) Dual {
	return chain(a, math.Cos(a.V), -math.Sin(a.V))
}

// Tanh returns tanh(a)
func Tanh(a Dual) Dual {
	t := math.Tanh(a.V)
	return chain(a, t, 1-t*t)
}

func (a Dual) String() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%g", a.V))
	if len(a.Ds) > 0 {
		sb.WriteString(" {")
		for i, p := range a.Ds {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("d%d: %g", p.Index, p.D))
		}
		sb.WriteString("}")
	}
	return sb.String()
}
