package mesh

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/FEKernel/element"
)

// Boundary ids assigned by the structured generators
const (
	Left BoundaryID = iota
	Right
	Bottom
	Top
	Back
	Front
)

var generatedBoundaryNames = map[string]BoundaryID{
	"left": Left, "right": Right, "bottom": Bottom, "top": Top, "back": Back, "front": Front,
}

// NewLine meshes [x0,x1] with n Edge2 or Edge3 cells
func NewLine(n int, x0, x1 float64, typ element.Type) (*Mesh, error) {
	if n < 1 {
		return nil, fmt.Errorf("line mesh needs at least one cell, got %d", n)
	}
	m := &Mesh{Dim: 1}
	switch typ {
	case element.Edge2:
		h := (x1 - x0) / float64(n)
		for i := 0; i <= n; i++ {
			m.addNode(r3.Vec{X: x0 + float64(i)*h})
		}
		for i := 0; i < n; i++ {
			m.addCell(typ, []int{i, i + 1})
		}
	case element.Edge3:
		h := (x1 - x0) / float64(2*n)
		for i := 0; i <= 2*n; i++ {
			m.addNode(r3.Vec{X: x0 + float64(i)*h})
		}
		for i := 0; i < n; i++ {
			m.addCell(typ, []int{2 * i, 2*i + 2, 2*i + 1})
		}
	default:
		return nil, fmt.Errorf("line mesh does not support %v", typ)
	}
	lo, hi := r3.Vec{X: x0}, r3.Vec{X: x1}
	m.tagExterior(boxClassifier(lo, hi, 1))
	return m, nil
}

// NewRectangle meshes [x0,x1]×[y0,y1] with nx×ny Quad4 cells, or twice as
// many Tri3 cells when typ is Tri3
func NewRectangle(nx, ny int, x0, x1, y0, y1 float64, typ element.Type) (*Mesh, error) {
	if nx < 1 || ny < 1 {
		return nil, fmt.Errorf("rectangle mesh needs at least one cell per direction, got %dx%d", nx, ny)
	}
	if typ != element.Quad4 && typ != element.Tri3 {
		return nil, fmt.Errorf("rectangle mesh does not support %v", typ)
	}
	m := &Mesh{Dim: 2}
	hx, hy := (x1-x0)/float64(nx), (y1-y0)/float64(ny)
	for j := 0; j <= ny; j++ {
		for i := 0; i <= nx; i++ {
			m.addNode(r3.Vec{X: x0 + float64(i)*hx, Y: y0 + float64(j)*hy})
		}
	}
	id := func(i, j int) int { return i + j*(nx+1) }
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			n0, n1, n2, n3 := id(i, j), id(i+1, j), id(i+1, j+1), id(i, j+1)
			if typ == element.Quad4 {
				m.addCell(typ, []int{n0, n1, n2, n3})
				continue
			}
			m.addCell(typ, []int{n0, n1, n2})
			m.addCell(typ, []int{n0, n2, n3})
		}
	}
	m.tagExterior(boxClassifier(r3.Vec{X: x0, Y: y0}, r3.Vec{X: x1, Y: y1}, 2))
	return m, nil
}

// NewBox meshes the axis aligned box [lo,hi] with nx×ny×nz Hex8 cells
func NewBox(nx, ny, nz int, lo, hi r3.Vec) (*Mesh, error) {
	if nx < 1 || ny < 1 || nz < 1 {
		return nil, fmt.Errorf("box mesh needs at least one cell per direction, got %dx%dx%d", nx, ny, nz)
	}
	m := &Mesh{Dim: 3}
	h := r3.Vec{
		X: (hi.X - lo.X) / float64(nx),
		Y: (hi.Y - lo.Y) / float64(ny),
		Z: (hi.Z - lo.Z) / float64(nz),
	}
	for k := 0; k <= nz; k++ {
		for j := 0; j <= ny; j++ {
			for i := 0; i <= nx; i++ {
				m.addNode(r3.Vec{
					X: lo.X + float64(i)*h.X,
					Y: lo.Y + float64(j)*h.Y,
					Z: lo.Z + float64(k)*h.Z,
				})
			}
		}
	}
	id := func(i, j, k int) int { return i + (nx+1)*(j+(ny+1)*k) }
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				m.addCell(element.Hex8, []int{
					id(i, j, k), id(i+1, j, k), id(i+1, j+1, k), id(i, j+1, k),
					id(i, j, k+1), id(i+1, j, k+1), id(i+1, j+1, k+1), id(i, j+1, k+1),
				})
			}
		}
	}
	m.tagExterior(boxClassifier(lo, hi, 3))
	return m, nil
}

func (m *Mesh) addNode(x r3.Vec) {
	m.Nodes = append(m.Nodes, Node{ID: len(m.Nodes), X: x})
}

func (m *Mesh) addCell(typ element.Type, nodes []int) {
	m.Cells = append(m.Cells, Cell{ID: len(m.Cells), Type: typ, Nodes: nodes})
}

// boxClassifier maps a side centroid on the boundary of [lo,hi] to the
// generator boundary id of the face it lies on
func boxClassifier(lo, hi r3.Vec, dim int) func(r3.Vec) (BoundaryID, bool) {
	size := r3.Norm(r3.Sub(hi, lo))
	tol := 1e-10 * math.Max(size, 1)
	return func(c r3.Vec) (BoundaryID, bool) {
		lows := []float64{c.X - lo.X, c.Y - lo.Y, c.Z - lo.Z}
		highs := []float64{hi.X - c.X, hi.Y - c.Y, hi.Z - c.Z}
		for d := 0; d < dim; d++ {
			if math.Abs(lows[d]) < tol {
				return BoundaryID(2 * d), true
			}
			if math.Abs(highs[d]) < tol {
				return BoundaryID(2*d + 1), true
			}
		}
		return 0, false
	}
}

// tagExterior finds sides that belong to exactly one cell and tags them
// with the boundary returned by classify
func (m *Mesh) tagExterior(classify func(r3.Vec) (BoundaryID, bool)) {
	type owner struct{ cell, side, count int }
	faces := make(map[string]*owner)
	var keys []string
	for ci, c := range m.Cells {
		el := element.MustGet(c.Type)
		for s := 0; s < el.NumSides(); s++ {
			local := el.SideNodes(s)
			global := make([]int, len(local))
			for a, ln := range local {
				global[a] = c.Nodes[ln]
			}
			sort.Ints(global)
			key := fmt.Sprint(global)
			if o, ok := faces[key]; ok {
				o.count++
				continue
			}
			faces[key] = &owner{cell: ci, side: s, count: 1}
			keys = append(keys, key)
		}
	}
	m.NodeSets = make(map[BoundaryID][]int)
	m.BoundaryNames = make(map[string]BoundaryID)
	for _, key := range keys {
		o := faces[key]
		if o.count != 1 {
			continue
		}
		c := m.Cells[o.cell]
		el := element.MustGet(c.Type)
		var centroid r3.Vec
		local := el.SideNodes(o.side)
		for _, ln := range local {
			centroid = r3.Add(centroid, m.Nodes[c.Nodes[ln]].X)
		}
		centroid = r3.Scale(1/float64(len(local)), centroid)
		b, ok := classify(centroid)
		if !ok {
			continue
		}
		m.Sides = append(m.Sides, Side{Cell: o.cell, Index: o.side, Boundary: b})
		for _, ln := range local {
			m.NodeSets[b] = append(m.NodeSets[b], c.Nodes[ln])
		}
	}
	for b, nodes := range m.NodeSets {
		m.NodeSets[b] = uniqueSorted(nodes)
	}
	for name, b := range generatedBoundaryNames {
		if _, ok := m.NodeSets[b]; ok {
			m.BoundaryNames[name] = b
		}
	}
}

func uniqueSorted(in []int) []int {
	sort.Ints(in)
	out := in[:0]
	for _, v := range in {
		if len(out) == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
