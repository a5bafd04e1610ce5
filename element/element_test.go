package element

import (
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

var allTypes = []Type{Point0, Edge2, Edge3, Tri3, Quad4, Hex8}

func TestGaussLegendre_ExactForPolynomials(t *testing.T) {
	for n := 1; n <= 5; n++ {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			x, w := GaussLegendre(n)
			require.Len(t, x, n)
			// exact through degree 2n-1
			for p := 0; p <= 2*n-1; p++ {
				var sum float64
				for i := range x {
					sum += w[i] * math.Pow(x[i], float64(p))
				}
				expected := 0.0
				if p%2 == 0 {
					expected = 2 / float64(p+1)
				}
				assert.InDelta(t, expected, sum, 1e-12, "degree %d", p)
			}
		})
	}
}

func TestJacobiGQ_Weight(t *testing.T) {
	// ∫(1-x) dx = 2, ∫x(1-x) dx = -2/3 on [-1,1]
	x, w := JacobiGQ(1, 0, 2)
	assert.InDelta(t, 2.0, floats.Sum(w), 1e-12)
	var m1 float64
	for i := range x {
		m1 += w[i] * x[i]
	}
	assert.InDelta(t, -2.0/3.0, m1, 1e-12)
}

func TestNewRule_Volumes(t *testing.T) {
	testCases := []struct {
		typ    Type
		volume float64
	}{
		{Point0, 1},
		{Edge2, 2},
		{Edge3, 2},
		{Tri3, 0.5},
		{Quad4, 4},
		{Hex8, 8},
	}
	for _, tc := range testCases {
		t.Run(tc.typ.String(), func(t *testing.T) {
			for n := 1; n <= 3; n++ {
				r := NewRule(tc.typ, n)
				assert.InDelta(t, tc.volume, floats.Sum(r.Weights), 1e-12)
			}
		})
	}
}

func TestNewRule_TriangleMoments(t *testing.T) {
	// ∫ x dA = 1/6, ∫ x y dA = 1/24, ∫ x² dA = 1/12 on the unit triangle
	r := NewRule(Tri3, 3)
	var mx, mxy, mxx float64
	for q, p := range r.Points {
		mx += r.Weights[q] * p.X
		mxy += r.Weights[q] * p.X * p.Y
		mxx += r.Weights[q] * p.X * p.X
		assert.True(t, p.X >= 0 && p.Y >= 0 && p.X+p.Y <= 1)
	}
	assert.InDelta(t, 1.0/6.0, mx, 1e-12)
	assert.InDelta(t, 1.0/24.0, mxy, 1e-12)
	assert.InDelta(t, 1.0/12.0, mxx, 1e-12)
}

func TestShape_PartitionOfUnityAndKronecker(t *testing.T) {
	for _, typ := range allTypes {
		t.Run(typ.String(), func(t *testing.T) {
			el := MustGet(typ)
			np := el.GetProperties().Np
			n := make([]float64, np)
			dn := make([]r3.Vec, np)
			for _, p := range el.DefaultRule().Points {
				el.Shape(p, n)
				assert.InDelta(t, 1.0, floats.Sum(n), 1e-14)
				el.ShapeDeriv(p, dn)
				var sum r3.Vec
				for _, d := range dn {
					sum = r3.Add(sum, d)
				}
				assert.InDelta(t, 0.0, r3.Norm(sum), 1e-14)
			}
			for a, xa := range el.NodeCoords() {
				el.Shape(xa, n)
				for b := range n {
					expected := 0.0
					if a == b {
						expected = 1
					}
					assert.InDelta(t, expected, n[b], 1e-14)
				}
			}
		})
	}
}

func TestShapeDeriv_MatchesFiniteDifference(t *testing.T) {
	xi := r3.Vec{X: 0.21, Y: 0.13, Z: -0.37}
	h := 1e-6
	for _, typ := range []Type{Edge2, Edge3, Tri3, Quad4, Hex8} {
		t.Run(typ.String(), func(t *testing.T) {
			el := MustGet(typ)
			np := el.GetProperties().Np
			dim := int(el.GetProperties().Dimensions)
			dn := make([]r3.Vec, np)
			el.ShapeDeriv(xi, dn)
			np1, nm1 := make([]float64, np), make([]float64, np)
			dirs := []r3.Vec{{X: h}, {Y: h}, {Z: h}}
			for d := 0; d < dim; d++ {
				el.Shape(r3.Add(xi, dirs[d]), np1)
				el.Shape(r3.Sub(xi, dirs[d]), nm1)
				for a := 0; a < np; a++ {
					fd := (np1[a] - nm1[a]) / (2 * h)
					analytic := []float64{dn[a].X, dn[a].Y, dn[a].Z}[d]
					assert.InDelta(t, fd, analytic, 1e-8, "node %d dir %d", a, d)
				}
			}
		})
	}
}

func TestSideMap_LandsOnSideNodes(t *testing.T) {
	for _, typ := range []Type{Edge2, Tri3, Quad4, Hex8} {
		t.Run(typ.String(), func(t *testing.T) {
			el := MustGet(typ)
			sideEl := MustGet(el.SideType())
			coords := el.NodeCoords()
			for s := 0; s < el.NumSides(); s++ {
				nodes := el.SideNodes(s)
				for a, xa := range sideEl.NodeCoords() {
					got := SideMap(el, s, xa)
					assert.InDelta(t, 0.0, r3.Norm(r3.Sub(got, coords[nodes[a]])), 1e-14)
				}
			}
		})
	}
}

func TestParseType(t *testing.T) {
	for _, typ := range allTypes {
		got, err := ParseType(typ.String())
		require.NoError(t, err)
		assert.Equal(t, typ, got)
	}
	_, err := ParseType("PRISM6")
	assert.Error(t, err)
}
