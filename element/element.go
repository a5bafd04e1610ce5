package element

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

type Dimensionality uint8

const (
	D0 Dimensionality = iota
	D1
	D2
	D3
)

type Type uint8

const (
	Point0 Type = iota
	Edge2
	Edge3
	Tri3
	Quad4
	Hex8
)

var typeNames = map[Type]string{
	Point0: "POINT0",
	Edge2:  "EDGE2",
	Edge3:  "EDGE3",
	Tri3:   "TRI3",
	Quad4:  "QUAD4",
	Hex8:   "HEX8",
}

func (t Type) String() string {
	if s, ok := typeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Type(%d)", t)
}

// ParseType maps a name such as "QUAD4" to an element Type
func ParseType(name string) (Type, error) {
	for t, s := range typeNames {
		if s == name {
			return t, nil
		}
	}
	return 0, fmt.Errorf("unknown element type %q", name)
}

// Element is the reference-space description every cell type provides.
// Shape functions and their reference derivatives are evaluated into caller
// owned slices of length GetProperties().Np.
type Element interface {
	GetProperties() ElementProperties

	// Node coordinates in reference space
	NodeCoords() []r3.Vec

	Shape(xi r3.Vec, n []float64)
	ShapeDeriv(xi r3.Vec, dn []r3.Vec) // ∂N/∂ξ, ∂N/∂η, ∂N/∂ζ in X, Y, Z

	// Sides
	NumSides() int
	SideNodes(side int) []int // local node indices on a side, ordered for the side element
	SideType() Type

	// DefaultRule returns the quadrature rule used for volume integration
	DefaultRule() Rule
}

// Get returns the reference element for a type
func Get(t Type) (Element, error) {
	switch t {
	case Point0:
		return point0{}, nil
	case Edge2:
		return edge2{}, nil
	case Edge3:
		return edge3{}, nil
	case Tri3:
		return tri3{}, nil
	case Quad4:
		return quad4{}, nil
	case Hex8:
		return hex8{}, nil
	}
	return nil, fmt.Errorf("no reference element for %v", t)
}

// MustGet is Get for types known at compile time
func MustGet(t Type) Element {
	el, err := Get(t)
	if err != nil {
		panic(err)
	}
	return el
}

// SideMap maps a point in the side's reference space into the parent
// element's reference space through the side element's shape functions.
func SideMap(el Element, side int, xiSide r3.Vec) r3.Vec {
	sideEl := MustGet(el.SideType())
	nodes := el.SideNodes(side)
	n := make([]float64, len(nodes))
	sideEl.Shape(xiSide, n)
	coords := el.NodeCoords()
	var xi r3.Vec
	for a, ln := range nodes {
		xi = r3.Add(xi, r3.Scale(n[a], coords[ln]))
	}
	return xi
}
