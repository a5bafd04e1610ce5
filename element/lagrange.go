package element

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// point0 is the zero-dimensional side of a 1D element
type point0 struct{}

func (point0) GetProperties() ElementProperties {
	return ElementProperties{Name: "Point", ShortName: "Point0", Type: Point0, Np: 1, Dimensions: D0}
}
func (point0) NodeCoords() []r3.Vec { return []r3.Vec{{}} }
func (point0) Shape(_ r3.Vec, n []float64) { n[0] = 1 }
func (point0) ShapeDeriv(_ r3.Vec, dn []r3.Vec) { dn[0] = r3.Vec{} }
func (point0) NumSides() int { return 0 }
func (point0) SideNodes(int) []int { return nil }
func (point0) SideType() Type { return Point0 }
func (point0) DefaultRule() Rule { return NewRule(Point0, 1) }

type edge2 struct{}

func (edge2) GetProperties() ElementProperties {
	return ElementProperties{Name: "Lagrange Edge Order 1", ShortName: "Edge2", Type: Edge2,
		Order: 1, Np: 2, NFaces: 2, Dimensions: D1}
}

func (edge2) NodeCoords() []r3.Vec {
	return []r3.Vec{{X: -1}, {X: 1}}
}

func (edge2) Shape(xi r3.Vec, n []float64) {
	n[0] = 0.5 * (1 - xi.X)
	n[1] = 0.5 * (1 + xi.X)
}

func (edge2) ShapeDeriv(_ r3.Vec, dn []r3.Vec) {
	dn[0] = r3.Vec{X: -0.5}
	dn[1] = r3.Vec{X: 0.5}
}

func (edge2) NumSides() int { return 2 }
func (edge2) SideNodes(side int) []int { return []int{side} }
func (edge2) SideType() Type { return Point0 }
func (edge2) DefaultRule() Rule { return NewRule(Edge2, 2) }

// edge3 orders its nodes left, right, middle
type edge3 struct{}

func (edge3) GetProperties() ElementProperties {
	return ElementProperties{Name: "Lagrange Edge Order 2", ShortName: "Edge3", Type: Edge3,
		Order: 2, Np: 3, NFaces: 2, Dimensions: D1}
}

func (edge3) NodeCoords() []r3.Vec {
	return []r3.Vec{{X: -1}, {X: 1}, {X: 0}}
}

func (edge3) Shape(xi r3.Vec, n []float64) {
	x := xi.X
	n[0] = 0.5 * x * (x - 1)
	n[1] = 0.5 * x * (x + 1)
	n[2] = 1 - x*x
}

func (edge3) ShapeDeriv(xi r3.Vec, dn []r3.Vec) {
	x := xi.X
	dn[0] = r3.Vec{X: x - 0.5}
	dn[1] = r3.Vec{X: x + 0.5}
	dn[2] = r3.Vec{X: -2 * x}
}

func (edge3) NumSides() int { return 2 }
func (edge3) SideNodes(side int) []int { return []int{side} }
func (edge3) SideType() Type { return Point0 }
func (edge3) DefaultRule() Rule { return NewRule(Edge3, 3) }

type tri3 struct{}

var tri3Sides = [][]int{{0, 1}, {1, 2}, {2, 0}}

func (tri3) GetProperties() ElementProperties {
	return ElementProperties{Name: "Lagrange Triangle Order 1", ShortName: "Tri3", Type: Tri3,
		Order: 1, Np: 3, NFaces: 3, Dimensions: D2}
}

func (tri3) NodeCoords() []r3.Vec {
	return []r3.Vec{{}, {X: 1}, {Y: 1}}
}

func (tri3) Shape(xi r3.Vec, n []float64) {
	n[0] = 1 - xi.X - xi.Y
	n[1] = xi.X
	n[2] = xi.Y
}

func (tri3) ShapeDeriv(_ r3.Vec, dn []r3.Vec) {
	dn[0] = r3.Vec{X: -1, Y: -1}
	dn[1] = r3.Vec{X: 1}
	dn[2] = r3.Vec{Y: 1}
}

func (tri3) NumSides() int { return 3 }
func (tri3) SideNodes(side int) []int { return tri3Sides[side] }
func (tri3) SideType() Type { return Edge2 }
func (tri3) DefaultRule() Rule { return NewRule(Tri3, 2) }

type quad4 struct{}

var (
	quad4Nodes = []r3.Vec{{X: -1, Y: -1}, {X: 1, Y: -1}, {X: 1, Y: 1}, {X: -1, Y: 1}}
	quad4Sides = [][]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}}
)

func (quad4) GetProperties() ElementProperties {
	return ElementProperties{Name: "Lagrange Quadrilateral Order 1", ShortName: "Quad4", Type: Quad4,
		Order: 1, Np: 4, NFaces: 4, Dimensions: D2}
}

func (quad4) NodeCoords() []r3.Vec { return quad4Nodes }

func (quad4) Shape(xi r3.Vec, n []float64) {
	for a, p := range quad4Nodes {
		n[a] = 0.25 * (1 + p.X*xi.X) * (1 + p.Y*xi.Y)
	}
}

func (quad4) ShapeDeriv(xi r3.Vec, dn []r3.Vec) {
	for a, p := range quad4Nodes {
		dn[a] = r3.Vec{
			X: 0.25 * p.X * (1 + p.Y*xi.Y),
			Y: 0.25 * p.Y * (1 + p.X*xi.X),
		}
	}
}

func (quad4) NumSides() int { return 4 }
func (quad4) SideNodes(side int) []int { return quad4Sides[side] }
func (quad4) SideType() Type { return Edge2 }
func (quad4) DefaultRule() Rule { return NewRule(Quad4, 2) }

type hex8 struct{}

var (
	hex8Nodes = []r3.Vec{
		{X: -1, Y: -1, Z: -1}, {X: 1, Y: -1, Z: -1}, {X: 1, Y: 1, Z: -1}, {X: -1, Y: 1, Z: -1},
		{X: -1, Y: -1, Z: 1}, {X: 1, Y: -1, Z: 1}, {X: 1, Y: 1, Z: 1}, {X: -1, Y: 1, Z: 1},
	}
	// bottom, front, right, back, left, top
	hex8Sides = [][]int{
		{0, 3, 2, 1}, {0, 1, 5, 4}, {1, 2, 6, 5}, {2, 3, 7, 6}, {3, 0, 4, 7}, {4, 5, 6, 7},
	}
)

func (hex8) GetProperties() ElementProperties {
	return ElementProperties{Name: "Lagrange Hexahedron Order 1", ShortName: "Hex8", Type: Hex8,
		Order: 1, Np: 8, NFaces: 6, Dimensions: D3}
}

func (hex8) NodeCoords() []r3.Vec { return hex8Nodes }

func (hex8) Shape(xi r3.Vec, n []float64) {
	for a, p := range hex8Nodes {
		n[a] = 0.125 * (1 + p.X*xi.X) * (1 + p.Y*xi.Y) * (1 + p.Z*xi.Z)
	}
}

func (hex8) ShapeDeriv(xi r3.Vec, dn []r3.Vec) {
	for a, p := range hex8Nodes {
		fx, fy, fz := 1+p.X*xi.X, 1+p.Y*xi.Y, 1+p.Z*xi.Z
		dn[a] = r3.Vec{
			X: 0.125 * p.X * fy * fz,
			Y: 0.125 * p.Y * fx * fz,
			Z: 0.125 * p.Z * fx * fy,
		}
	}
}

func (hex8) NumSides() int { return 6 }
func (hex8) SideNodes(side int) []int { return hex8Sides[side] }
func (hex8) SideType() Type { return Quad4 }
func (hex8) DefaultRule() Rule { return NewRule(Hex8, 2) }
