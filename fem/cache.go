package fem

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/FEKernel/ad"
	"github.com/notargets/FEKernel/element"
	"github.com/notargets/FEKernel/mesh"
)

// refKey identifies precomputed reference data: a cell type, a side (-1 for
// the volume) and the rule order (0 for the element default)
type refKey struct {
	typ   element.Type
	side  int
	order int
}

// refData holds shape values at the reference quadrature points
type refData struct {
	weights []float64
	xiSide  []r3.Vec    // side reference points, side rules only
	n       [][]float64 // [q][a]
	dn      [][]r3.Vec  // [q][a]
	sideN   [][]float64
	sideDn  [][]r3.Vec
}

// Systems bundles what a cache interpolates from
type Systems struct {
	Mesh    *mesh.Mesh
	Dofs    *DofMap
	AuxDofs *DofMap
	Order   int // quadrature points per direction, 0 for element defaults
}

// QpCache holds shape functions, geometry and interpolated variable values
// at the quadrature points of one cell or side. Each assembly worker owns one
// cache; a refresh overwrites the previous cell.
type QpCache struct {
	sys       Systems
	threadID  int
	refs      map[refKey]*refData
	computeAD bool

	sol    *Solution
	aux    []float64
	time   float64
	dt     float64
	coeffs [3]float64

	cell   int
	side   int
	nqp    int
	coords []r3.Vec
	xyz    []r3.Vec
	jxw    []float64
	normal []r3.Vec
	phi    [][]float64 // Lagrange shape values [q][a]
	grad   [][]r3.Vec  // physical gradients [q][a]

	localDofs    [][]int // per nonlinear variable
	localAuxDofs [][]int

	values, old, older, dot [][]float64 // [var][q]
	grads                   [][]r3.Vec
	auxValues               [][]float64
	auxGrads                [][]r3.Vec
	adValues                [][]ad.Dual
	adGrads                 [][]ad.Vec

	qp Qp
}

func NewQpCache(sys Systems, threadID int) *QpCache {
	if sys.AuxDofs == nil {
		sys.AuxDofs = NewDofMap(sys.Mesh, nil)
	}
	c := &QpCache{
		sys:      sys,
		threadID: threadID,
		refs:     make(map[refKey]*refData),
		cell:     -1,
		side:     -1,
	}
	nv, na := len(sys.Dofs.Variables()), len(sys.AuxDofs.Variables())
	c.localDofs = make([][]int, nv)
	c.values = make([][]float64, nv)
	c.old = make([][]float64, nv)
	c.older = make([][]float64, nv)
	c.dot = make([][]float64, nv)
	c.grads = make([][]r3.Vec, nv)
	c.adValues = make([][]ad.Dual, nv)
	c.adGrads = make([][]ad.Vec, nv)
	c.localAuxDofs = make([][]int, na)
	c.auxValues = make([][]float64, na)
	c.auxGrads = make([][]r3.Vec, na)
	c.qp.cache = c
	return c
}

func (c *QpCache) ThreadID() int { return c.threadID }

// EnableAD turns on interpolation of dual-number values for AD objects
func (c *QpCache) EnableAD(on bool) { c.computeAD = on }

// SetSolution points the cache at the nonlinear and auxiliary solutions
func (c *QpCache) SetSolution(sol *Solution, aux []float64) {
	c.sol = sol
	c.aux = aux
}

// SetTime sets the time, step and time derivative coefficients
func (c *QpCache) SetTime(t, dt float64, a0, a1, a2 float64) {
	c.time, c.dt = t, dt
	c.coeffs = [3]float64{a0, a1, a2}
}

func (c *QpCache) Cell() int { return c.cell }
func (c *QpCache) Side() int { return c.side }
func (c *QpCache) NumQp() int { return c.nqp }

// LocalDofs returns the global dofs of v on the current cell
func (c *QpCache) LocalDofs(v *Variable) []int {
	if v.Aux {
		return c.localAuxDofs[v.Index]
	}
	return c.localDofs[v.Index]
}

// NumShape returns the number of local shape functions of v on the current cell
func (c *QpCache) NumShape(v *Variable) int {
	return len(c.LocalDofs(v))
}

// At positions the cache's Qp at quadrature point q
func (c *QpCache) At(q int) *Qp {
	c.qp.q = q
	return &c.qp
}

// NumQpFor returns the number of volume quadrature points of a cell, used
// to size material storage
func (c *QpCache) NumQpFor(cell int) int {
	return len(c.ref(c.sys.Mesh.Cells[cell].Type, -1).weights)
}

func (c *QpCache) ref(t element.Type, side int) *refData {
	key := refKey{typ: t, side: side, order: c.sys.Order}
	if r, ok := c.refs[key]; ok {
		return r
	}
	el := element.MustGet(t)
	np := el.GetProperties().Np
	r := &refData{}
	var pts []r3.Vec
	if side < 0 {
		rule := el.DefaultRule()
		if c.sys.Order > 0 {
			rule = element.NewRule(t, c.sys.Order)
		}
		pts, r.weights = rule.Points, rule.Weights
	} else {
		sideEl := element.MustGet(el.SideType())
		rule := sideEl.DefaultRule()
		if c.sys.Order > 0 {
			rule = element.NewRule(el.SideType(), c.sys.Order)
		}
		r.xiSide, r.weights = rule.Points, rule.Weights
		ns := sideEl.GetProperties().Np
		for _, xs := range rule.Points {
			pts = append(pts, element.SideMap(el, side, xs))
			sn, sdn := make([]float64, ns), make([]r3.Vec, ns)
			sideEl.Shape(xs, sn)
			sideEl.ShapeDeriv(xs, sdn)
			r.sideN = append(r.sideN, sn)
			r.sideDn = append(r.sideDn, sdn)
		}
	}
	for _, xi := range pts {
		n, dn := make([]float64, np), make([]r3.Vec, np)
		el.Shape(xi, n)
		el.ShapeDeriv(xi, dn)
		r.n = append(r.n, n)
		r.dn = append(r.dn, dn)
	}
	c.refs[key] = r
	return r
}

func (c *QpCache) resize(nqp, np int) {
	c.nqp = nqp
	grow := func(n int) {
		for len(c.phi) < n {
			c.phi = append(c.phi, nil)
			c.grad = append(c.grad, nil)
		}
	}
	grow(nqp)
	for q := 0; q < nqp; q++ {
		if cap(c.phi[q]) < np {
			c.phi[q] = make([]float64, np)
			c.grad[q] = make([]r3.Vec, np)
		}
		c.phi[q] = c.phi[q][:np]
		c.grad[q] = c.grad[q][:np]
	}
	if cap(c.xyz) < nqp {
		c.xyz = make([]r3.Vec, nqp)
		c.jxw = make([]float64, nqp)
		c.normal = make([]r3.Vec, nqp)
	}
	c.xyz, c.jxw, c.normal = c.xyz[:nqp], c.jxw[:nqp], c.normal[:nqp]
}

// Refresh recomputes geometry, shape functions and variable values at the
// volume quadrature points of cell
func (c *QpCache) Refresh(cell int) error {
	m := c.sys.Mesh
	t := m.Cells[cell].Type
	r := c.ref(t, -1)
	c.cell, c.side = cell, -1
	if err := c.geometry(cell, r); err != nil {
		return err
	}
	for q := range c.jxw {
		c.jxw[q] *= r.weights[q]
	}
	c.interpolate()
	return nil
}

// RefreshSide recomputes everything at the quadrature points of one side of
// cell, including outward unit normals
func (c *QpCache) RefreshSide(cell, side int) error {
	m := c.sys.Mesh
	cl := &m.Cells[cell]
	el := element.MustGet(cl.Type)
	r := c.ref(cl.Type, side)
	c.cell, c.side = cell, side
	if err := c.geometry(cell, r); err != nil {
		return err
	}

	sideNodes := el.SideNodes(side)
	var sideCentroid r3.Vec
	for _, ln := range sideNodes {
		sideCentroid = r3.Add(sideCentroid, c.coords[ln])
	}
	sideCentroid = r3.Scale(1/float64(len(sideNodes)), sideCentroid)
	out := r3.Sub(sideCentroid, m.Centroid(cell))
	sideDim := int(el.GetProperties().Dimensions) - 1

	for q := 0; q < c.nqp; q++ {
		var t0, t1 r3.Vec
		for b, ln := range sideNodes {
			x := c.coords[ln]
			t0 = r3.Add(t0, r3.Scale(r.sideDn[q][b].X, x))
			t1 = r3.Add(t1, r3.Scale(r.sideDn[q][b].Y, x))
		}
		var n r3.Vec
		var measure float64
		switch sideDim {
		case 0:
			n, measure = r3.Vec{X: 1}, 1
		case 1:
			measure = r3.Norm(t0)
			n = r3.Vec{X: t0.Y, Y: -t0.X}
		case 2:
			n = r3.Cross(t0, t1)
			measure = r3.Norm(n)
		}
		if measure == 0 {
			return fmt.Errorf("cell %d side %d: degenerate side", cell, side)
		}
		n = r3.Unit(n)
		if r3.Dot(n, out) < 0 {
			n = r3.Scale(-1, n)
		}
		c.normal[q] = n
		c.jxw[q] = measure * r.weights[q]
	}
	c.interpolate()
	return nil
}

// geometry evaluates the isoparametric map at the points of r
func (c *QpCache) geometry(cell int, r *refData) error {
	m := c.sys.Mesh
	cl := &m.Cells[cell]
	el := element.MustGet(cl.Type)
	dim := int(el.GetProperties().Dimensions)
	np := el.GetProperties().Np
	c.coords = m.CellCoords(cell, c.coords)
	c.resize(len(r.weights), np)

	var J, Jinv mat.Dense
	if dim > 0 {
		J.ReuseAs(dim, dim)
	}
	for q := 0; q < c.nqp; q++ {
		var x r3.Vec
		for a := 0; a < np; a++ {
			x = r3.Add(x, r3.Scale(r.n[q][a], c.coords[a]))
			c.phi[q][a] = r.n[q][a]
		}
		c.xyz[q] = x
		if dim == 0 {
			c.jxw[q] = 1
			continue
		}
		J.Zero()
		for a := 0; a < np; a++ {
			for i := 0; i < dim; i++ {
				for j := 0; j < dim; j++ {
					J.Set(i, j, J.At(i, j)+component(c.coords[a], i)*component(r.dn[q][a], j))
				}
			}
		}
		det := mat.Det(&J)
		if det == 0 || math.IsNaN(det) {
			return fmt.Errorf("cell %d: singular mapping at quadrature point %d", cell, q)
		}
		if err := Jinv.Inverse(&J); err != nil {
			return fmt.Errorf("cell %d: %w", cell, err)
		}
		c.jxw[q] = math.Abs(det)
		// ∇x N = J^{-T} ∇ξ N
		for a := 0; a < np; a++ {
			var g [3]float64
			for i := 0; i < dim; i++ {
				for j := 0; j < dim; j++ {
					g[i] += Jinv.At(j, i) * component(r.dn[q][a], j)
				}
			}
			c.grad[q][a] = r3.Vec{X: g[0], Y: g[1], Z: g[2]}
		}
	}
	return nil
}

func component(v r3.Vec, i int) float64 {
	switch i {
	case 0:
		return v.X
	case 1:
		return v.Y
	}
	return v.Z
}

func (c *QpCache) shape(v *Variable, q, a int) float64 {
	if v.Family == Constant {
		return 1
	}
	return c.phi[q][a]
}

func (c *QpCache) gradShape(v *Variable, q, a int) r3.Vec {
	if v.Family == Constant {
		return r3.Vec{}
	}
	return c.grad[q][a]
}

func fit[T any](s []T, n int) []T {
	if cap(s) < n {
		return make([]T, n)
	}
	s = s[:n]
	var zero T
	for i := range s {
		s[i] = zero
	}
	return s
}

func (c *QpCache) interpolate() {
	m := c.sys.Mesh
	a0, a1, a2 := c.coeffs[0], c.coeffs[1], c.coeffs[2]
	for _, v := range c.sys.Dofs.Variables() {
		i := v.Index
		c.localDofs[i] = c.sys.Dofs.LocalDofs(m, c.cell, v, c.localDofs[i])
		c.values[i] = fit(c.values[i], c.nqp)
		c.old[i] = fit(c.old[i], c.nqp)
		c.older[i] = fit(c.older[i], c.nqp)
		c.dot[i] = fit(c.dot[i], c.nqp)
		c.grads[i] = fit(c.grads[i], c.nqp)
		if c.computeAD {
			c.adValues[i] = fit(c.adValues[i], c.nqp)
			c.adGrads[i] = fit(c.adGrads[i], c.nqp)
		}
		if c.sol == nil {
			continue
		}
		dofs := c.localDofs[i]
		for q := 0; q < c.nqp; q++ {
			var u, uo, uoo float64
			var g r3.Vec
			for a, dof := range dofs {
				phi := c.shape(v, q, a)
				u += phi * c.sol.Current[dof]
				uo += phi * c.sol.Old[dof]
				uoo += phi * c.sol.Older[dof]
				g = r3.Add(g, r3.Scale(c.sol.Current[dof], c.gradShape(v, q, a)))
			}
			c.values[i][q], c.old[i][q], c.older[i][q] = u, uo, uoo
			c.grads[i][q] = g
			c.dot[i][q] = a0*u + a1*uo + a2*uoo
			if !c.computeAD {
				continue
			}
			pv := make([]ad.Partial, len(dofs))
			px := make([]ad.Partial, len(dofs))
			py := make([]ad.Partial, len(dofs))
			pz := make([]ad.Partial, len(dofs))
			for a, dof := range dofs {
				gs := c.gradShape(v, q, a)
				pv[a] = ad.Partial{Index: dof, D: c.shape(v, q, a)}
				px[a] = ad.Partial{Index: dof, D: gs.X}
				py[a] = ad.Partial{Index: dof, D: gs.Y}
				pz[a] = ad.Partial{Index: dof, D: gs.Z}
			}
			c.adValues[i][q] = ad.FromPartials(u, pv)
			c.adGrads[i][q] = ad.Vec{
				X: ad.FromPartials(g.X, px),
				Y: ad.FromPartials(g.Y, py),
				Z: ad.FromPartials(g.Z, pz),
			}
		}
	}
	for _, v := range c.sys.AuxDofs.Variables() {
		i := v.Index
		c.localAuxDofs[i] = c.sys.AuxDofs.LocalDofs(m, c.cell, v, c.localAuxDofs[i])
		c.auxValues[i] = fit(c.auxValues[i], c.nqp)
		c.auxGrads[i] = fit(c.auxGrads[i], c.nqp)
		if c.aux == nil {
			continue
		}
		for q := 0; q < c.nqp; q++ {
			var u float64
			var g r3.Vec
			for a, dof := range c.localAuxDofs[i] {
				u += c.shape(v, q, a) * c.aux[dof]
				g = r3.Add(g, r3.Scale(c.aux[dof], c.gradShape(v, q, a)))
			}
			c.auxValues[i][q] = u
			c.auxGrads[i][q] = g
		}
	}
}
