package element

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Rule is a quadrature rule in an element's reference space
type Rule struct {
	Points  []r3.Vec
	Weights []float64
}

func (r Rule) Len() int { return len(r.Weights) }

// NewRule returns a rule with n points per direction for the element type.
// Triangles use a collapsed Gauss-Jacobi rule with n×n points.
func NewRule(t Type, n int) Rule {
	if n < 1 {
		panic(fmt.Sprintf("quadrature for %v needs at least one point, got %d", t, n))
	}
	switch t {
	case Point0:
		return Rule{Points: []r3.Vec{{}}, Weights: []float64{1}}
	case Edge2, Edge3:
		x, w := GaussLegendre(n)
		r := Rule{}
		for i := range x {
			r.Points = append(r.Points, r3.Vec{X: x[i]})
			r.Weights = append(r.Weights, w[i])
		}
		return r
	case Quad4:
		x, w := GaussLegendre(n)
		r := Rule{}
		for j := range x {
			for i := range x {
				r.Points = append(r.Points, r3.Vec{X: x[i], Y: x[j]})
				r.Weights = append(r.Weights, w[i]*w[j])
			}
		}
		return r
	case Hex8:
		x, w := GaussLegendre(n)
		r := Rule{}
		for k := range x {
			for j := range x {
				for i := range x {
					r.Points = append(r.Points, r3.Vec{X: x[i], Y: x[j], Z: x[k]})
					r.Weights = append(r.Weights, w[i]*w[j]*w[k])
				}
			}
		}
		return r
	case Tri3:
		// Duffy collapse: r = (1+a)(1-b)/4, s = (1+b)/2, dr ds = (1-b)/8 da db
		a, wa := GaussLegendre(n)
		b, wb := JacobiGQ(1, 0, n-1)
		r := Rule{}
		for j := range b {
			for i := range a {
				r.Points = append(r.Points, r3.Vec{
					X: 0.25 * (1 + a[i]) * (1 - b[j]),
					Y: 0.5 * (1 + b[j]),
				})
				r.Weights = append(r.Weights, wa[i]*wb[j]/8)
			}
		}
		return r
	}
	panic(fmt.Sprintf("no quadrature rule for %v", t))
}

// GaussLegendre returns the n-point Gauss-Legendre rule on [-1,1]
func GaussLegendre(n int) (x, w []float64) {
	return JacobiGQ(0, 0, n-1)
}

// JacobiGQ computes the N+1 point Gauss quadrature for the Jacobi weight
// (1-x)^alpha (1+x)^beta using the Golub-Welsch eigenvalue method
func JacobiGQ(alpha, beta float64, N int) (X, W []float64) {
	if N == 0 {
		return []float64{-(alpha - beta) / (alpha + beta + 2.)}, []float64{Gamma0(alpha, beta)}
	}

	h1 := make([]float64, N+1)
	for i := 0; i < N+1; i++ {
		h1[i] = 2*float64(i) + alpha + beta
	}

	// main diagonal: d0[i] = -(β²-α²)/((2i+α+β)*(2i+α+β+2))
	d0 := make([]float64, N+1)
	fac := beta*beta - alpha*alpha
	for i := 0; i < N+1; i++ {
		val := h1[i]
		d0[i] = fac / (val * (val + 2.))
	}

	// Handle division by zero
	eps := 1.e-16
	if alpha+beta < 10*eps {
		d0[0] = 0.
	}

	d1 := make([]float64, N)
	for i := 0; i < N; i++ {
		ip1 := float64(i + 1)
		val := h1[i]
		d1[i] = 2.0 / (val + 2.0) * math.Sqrt(
			ip1*(ip1+alpha+beta)*(ip1+alpha)*(ip1+beta)/(val+1)/(val+3),
		)
	}

	JJ := newSymTriDiagonal(d0, d1)

	var eig mat.EigenSym
	if ok := eig.Factorize(JJ, true); !ok {
		panic("eigenvalue decomposition failed")
	}
	X = eig.Values(nil)

	VVr := mat.NewDense(len(X), len(X), nil)
	eig.VectorsTo(VVr)
	W = make([]float64, len(X))
	g0 := Gamma0(alpha, beta)
	for i := range W {
		v := VVr.At(0, i)
		W[i] = v * v * g0
	}
	return X, W
}

// Gamma0 is the integral of the Jacobi weight over [-1,1]
func Gamma0(alpha, beta float64) float64 {
	ab1 := alpha + beta + 1.
	a1 := alpha + 1.
	b1 := beta + 1.
	return math.Gamma(a1) * math.Gamma(b1) * math.Pow(2, ab1) / ab1 / math.Gamma(ab1)
}

func newSymTriDiagonal(d0, d1 []float64) *mat.SymDense {
	n := len(d0)
	T := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		T.SetSym(i, i, d0[i])
		if i < n-1 {
			T.SetSym(i, i+1, d1[i])
		}
	}
	return T
}
