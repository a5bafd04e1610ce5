package runner

import (
	"context"
	"fmt"
	"math"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"github.com/notargets/FEKernel/fem"
)

type passMode int

const (
	modeAux passMode = iota
	modeResidual
	modeJacobian
	modePostprocess
)

func (m passMode) String() string {
	switch m {
	case modeAux:
		return "aux"
	case modeResidual:
		return "residual"
	case modeJacobian:
		return "jacobian"
	case modePostprocess:
		return "postprocess"
	}
	return fmt.Sprintf("passMode(%d)", int(m))
}

// pass carries the outputs of one sweep over the cells
type pass struct {
	mode passMode
	res  *GlobalVector
	jac  *SparseMatrix
	pp   *GlobalVector // integral and measure of postprocessor i at 2i and 2i+1
}

// workspace is the scratch owned by one worker id
type workspace struct {
	re     mat.VecDense
	ke     mat.Dense
	cols   []int
	colPos map[int]int
}

func newWorkspace() *workspace {
	return &workspace{colPos: make(map[int]int)}
}

func finite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func (r *Runner) coefficients() (a0, a1, a2 float64) {
	if !r.integrator.Transient() || r.dt <= 0 {
		return 0, 0, 0
	}
	return r.integrator.Coefficients(r.dt, r.dtOld)
}

// load copies u into the current solution; nil keeps the current iterate
func (r *Runner) load(u []float64) error {
	if !r.ready {
		return ErrNotSetUp
	}
	if u == nil {
		return nil
	}
	if len(u) != r.sol.Len() {
		return fmt.Errorf("solution has %d values, system has %d dofs", len(u), r.sol.Len())
	}
	copy(r.sol.Current, u)
	return nil
}

// prepare drops material values that depend on the solution and brings the
// auxiliary variables up to date
func (r *Runner) prepare(ctx context.Context) error {
	r.store.InvalidateVolatile()
	if !r.plan.hasAux {
		return nil
	}
	if err := r.run(ctx, &pass{mode: modeAux}); err != nil {
		return err
	}
	// materials computed during the aux pass saw the previous aux values
	r.store.InvalidateVolatile()
	return nil
}

// EvaluateResidual assembles the residual at u. Nodal boundary conditions
// replace their rows after the element loop. On error nothing is returned.
func (r *Runner) EvaluateResidual(ctx context.Context, u []float64) (*GlobalVector, error) {
	if err := r.load(u); err != nil {
		return nil, err
	}
	if err := r.prepare(ctx); err != nil {
		r.log.Warn("aux evaluation failed", "err", err)
		return nil, err
	}
	ps := &pass{mode: modeResidual, res: NewGlobalVector(r.dofs.NumDofs())}
	if err := r.run(ctx, ps); err != nil {
		r.log.Warn("residual evaluation failed", "err", err)
		return nil, err
	}
	if err := r.applyNodal(ps); err != nil {
		r.log.Warn("residual evaluation failed", "err", err)
		return nil, err
	}
	r.store.MarkEvaluated()
	return ps.res, nil
}

// EvaluateJacobian assembles the Jacobian at u on the pattern built by Setup
func (r *Runner) EvaluateJacobian(ctx context.Context, u []float64) (*SparseMatrix, error) {
	if err := r.load(u); err != nil {
		return nil, err
	}
	if err := r.prepare(ctx); err != nil {
		r.log.Warn("aux evaluation failed", "err", err)
		return nil, err
	}
	ps := &pass{mode: modeJacobian, jac: NewSparseMatrix(r.plan.pattern)}
	if err := r.run(ctx, ps); err != nil {
		r.log.Warn("jacobian evaluation failed", "err", err)
		return nil, err
	}
	if err := r.applyNodal(ps); err != nil {
		r.log.Warn("jacobian evaluation failed", "err", err)
		return nil, err
	}
	r.store.MarkEvaluated()
	return ps.jac, nil
}

// run sweeps every partition with at most Workers goroutines
func (r *Runner) run(ctx context.Context, ps *pass) error {
	computeAD := ps.mode == modeJacobian && r.plan.hasAD
	a0, a1, a2 := r.coefficients()
	for _, c := range r.caches {
		c.SetSolution(r.sol, r.aux)
		c.SetTime(r.time, r.dt, a0, a1, a2)
		c.EnableAD(computeAD)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.Workers)
	for pi := range r.layout.Partitions {
		part := &r.layout.Partitions[pi]
		g.Go(func() error {
			for _, cell := range part.Elements {
				if err := gctx.Err(); err != nil {
					return err
				}
				id := r.pool.Acquire()
				err := r.visit(id, cell, ps)
				r.pool.Release(id)
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

func (bp *blockPlan) needsVolume(mode passMode) bool {
	switch mode {
	case modeAux:
		return len(bp.aux) > 0
	case modeResidual, modeJacobian:
		return len(bp.kernels) > 0
	case modePostprocess:
		return len(bp.pps) > 0
	}
	return false
}

func (sw *sideWork) needed(mode passMode) bool {
	switch mode {
	case modeResidual, modeJacobian:
		return len(sw.bcs) > 0
	case modePostprocess:
		return len(sw.pps) > 0
	}
	return false
}

// visit evaluates everything scheduled on one cell with the cache and
// scratch of worker id
func (r *Runner) visit(id, cell int, ps *pass) error {
	c := r.caches[id]
	w := r.work[id]
	bp := r.plan.blocks[r.Mesh.Cells[cell].Block]

	if bp.needsVolume(ps.mode) {
		if err := c.Refresh(cell); err != nil {
			return err
		}
		if c.NumQp() > 0 {
			r.computeMaterials(c, bp)
			var err error
			switch ps.mode {
			case modeAux:
				err = r.computeAux(c, bp)
			case modeResidual:
				for _, k := range bp.kernels {
					if err = residual(c, w, k, ps.res); err != nil {
						break
					}
				}
			case modeJacobian:
				for _, k := range bp.kernels {
					if err = jacobian(c, w, k, ps.jac); err != nil {
						break
					}
				}
			case modePostprocess:
				err = integrate(c, bp.pps, ps.pp)
			}
			if err != nil {
				return err
			}
		}
	}

	for _, sw := range r.plan.sides[cell] {
		if !sw.needed(ps.mode) {
			continue
		}
		if err := c.RefreshSide(cell, sw.side); err != nil {
			return err
		}
		switch ps.mode {
		case modeResidual:
			for _, k := range sw.bcs {
				if err := residual(c, w, k, ps.res); err != nil {
					return err
				}
			}
		case modeJacobian:
			for _, k := range sw.bcs {
				if err := jacobian(c, w, k, ps.jac); err != nil {
					return err
				}
			}
		case modePostprocess:
			if err := integrate(c, sw.pps, ps.pp); err != nil {
				return err
			}
		}
	}
	return nil
}

// computeMaterials evaluates the block's materials in dependency order,
// skipping producers whose values on this cell are still valid
func (r *Runner) computeMaterials(c *fem.QpCache, bp *blockPlan) {
	cell := c.Cell()
	for _, mr := range bp.materials {
		if r.store.Cached(mr.name, cell) {
			continue
		}
		for q := 0; q < c.NumQp(); q++ {
			mr.compute.ComputeQpProperties(c.At(q))
		}
		r.store.MarkComputed(mr.name, cell)
	}
}

// computeAux writes the volume average of each aux kernel's value into the
// cell's elemental dof
func (r *Runner) computeAux(c *fem.QpCache, bp *blockPlan) error {
	cell := c.Cell()
	for _, ar := range bp.aux {
		dof := r.auxDofs.CellDof(cell, ar.v)
		if dof < 0 {
			continue
		}
		var sum, measure float64
		for q := 0; q < c.NumQp(); q++ {
			p := c.At(q)
			v := ar.compute.ComputeValue(p)
			if !finite(v) {
				return &EvaluationError{Object: ar.name, Element: cell, Qp: q, Err: ErrNonFinite}
			}
			sum += p.JxW() * v
			measure += p.JxW()
		}
		if measure > 0 {
			r.aux[dof] = sum / measure
		}
	}
	return nil
}

func integrate(c *fem.QpCache, pps []*ppRecord, out *GlobalVector) error {
	for _, pr := range pps {
		var sum, measure float64
		for q := 0; q < c.NumQp(); q++ {
			p := c.At(q)
			v := pr.pp.ComputeQpIntegral(p)
			if !finite(v) {
				return &EvaluationError{Object: pr.name, Element: c.Cell(), Qp: q, Err: ErrNonFinite}
			}
			sum += p.JxW() * v
			measure += p.JxW()
		}
		out.Add(2*pr.index, sum)
		out.Add(2*pr.index+1, measure)
	}
	return nil
}

// residual accumulates one object's contribution into a local vector and
// scatters it
func residual(c *fem.QpCache, w *workspace, k *contribution, res *GlobalVector) error {
	rows := c.LocalDofs(k.v)
	n := len(rows)
	if n == 0 {
		return nil
	}
	w.re.Reset()
	w.re.ReuseAsVec(n)
	for q := 0; q < c.NumQp(); q++ {
		p := c.At(q)
		jxw := p.JxW()
		for i := 0; i < n; i++ {
			p.SetTest(k.v, i)
			var v float64
			if k.adRes != nil {
				v = k.adRes.ComputeQpADResidual(p).Value()
			} else {
				v = k.res.ComputeQpResidual(p)
			}
			if !finite(v) {
				return &EvaluationError{Object: k.name, Element: c.Cell(), Qp: q, Err: ErrNonFinite}
			}
			w.re.SetVec(i, w.re.AtVec(i)+jxw*v)
		}
	}
	for i, dof := range rows {
		res.Add(dof, w.re.AtVec(i))
	}
	return nil
}

// jacobian accumulates the on-diagonal block and the blocks of declared
// couplings. Objects with neither Jacobian capability nor AD contribute
// nothing.
func jacobian(c *fem.QpCache, w *workspace, k *contribution, jac *SparseMatrix) error {
	rows := c.LocalDofs(k.v)
	if len(rows) == 0 {
		return nil
	}
	if k.adRes != nil {
		return adJacobian(c, w, k, rows, jac)
	}
	if k.jac != nil {
		err := localBlock(c, w, k, k.v, rows, rows, jac, func(p *fem.Qp) float64 {
			return k.jac.ComputeQpJacobian(p)
		})
		if err != nil {
			return err
		}
	}
	if k.off == nil {
		return nil
	}
	for _, jv := range k.coupled {
		cols := c.LocalDofs(jv)
		if len(cols) == 0 {
			continue
		}
		err := localBlock(c, w, k, jv, rows, cols, jac, func(p *fem.Qp) float64 {
			return k.off.ComputeQpOffDiagJacobian(p, jv)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func localBlock(c *fem.QpCache, w *workspace, k *contribution, jv *fem.Variable, rows, cols []int,
	jac *SparseMatrix, f func(p *fem.Qp) float64) error {
	w.ke.Reset()
	w.ke.ReuseAs(len(rows), len(cols))
	for q := 0; q < c.NumQp(); q++ {
		p := c.At(q)
		jxw := p.JxW()
		for i := range rows {
			p.SetTest(k.v, i)
			for j := range cols {
				p.SetTrial(jv, j)
				v := f(p)
				if !finite(v) {
					return &EvaluationError{Object: k.name, Element: c.Cell(), Qp: q, Err: ErrNonFinite}
				}
				w.ke.Set(i, j, w.ke.At(i, j)+jxw*v)
			}
		}
	}
	for i, row := range rows {
		for j, col := range cols {
			jac.Add(row, col, w.ke.At(i, j))
		}
	}
	return nil
}

// adJacobian takes every Jacobian entry of the object's rows from the
// partials of its dual residual. Partials outside the object's own and
// coupled dofs are dropped.
func adJacobian(c *fem.QpCache, w *workspace, k *contribution, rows []int, jac *SparseMatrix) error {
	w.cols = w.cols[:0]
	clear(w.colPos)
	addCols := func(dofs []int) {
		for _, d := range dofs {
			if _, ok := w.colPos[d]; !ok {
				w.colPos[d] = len(w.cols)
				w.cols = append(w.cols, d)
			}
		}
	}
	addCols(rows)
	for _, cv := range k.coupled {
		addCols(c.LocalDofs(cv))
	}
	w.ke.Reset()
	w.ke.ReuseAs(len(rows), len(w.cols))
	for q := 0; q < c.NumQp(); q++ {
		p := c.At(q)
		jxw := p.JxW()
		for i := range rows {
			p.SetTest(k.v, i)
			d := k.adRes.ComputeQpADResidual(p)
			if !d.IsFinite() {
				return &EvaluationError{Object: k.name, Element: c.Cell(), Qp: q, Err: ErrNonFinite}
			}
			for _, pt := range d.Partials() {
				if j, ok := w.colPos[pt.Index]; ok {
					w.ke.Set(i, j, w.ke.At(i, j)+jxw*pt.D)
				}
			}
		}
	}
	for i, row := range rows {
		for j, col := range w.cols {
			jac.Add(row, col, w.ke.At(i, j))
		}
	}
	return nil
}

// applyNodal replaces the residual or Jacobian rows of nodal boundary
// conditions. It runs after the element loop on a single goroutine.
func (r *Runner) applyNodal(ps *pass) error {
	nc := fem.NewNodeContext(r.dofs, r.sol.Current)
	nc.Time = r.time
	for _, nr := range r.plan.nodal {
		for _, node := range nr.nodes {
			dof := r.dofs.NodeDof(node, nr.v)
			if dof < 0 {
				continue
			}
			nc.Node = node
			nc.X = r.Mesh.Nodes[node].X
			switch ps.mode {
			case modeResidual:
				v := nr.bc.ComputeNodalResidual(nc)
				if !finite(v) {
					return &EvaluationError{Object: nr.name, Element: node, Qp: -1, Err: ErrNonFinite}
				}
				ps.res.Set(dof, v)
			case modeJacobian:
				v := nr.bc.ComputeNodalJacobian(nc)
				if !finite(v) {
					return &EvaluationError{Object: nr.name, Element: node, Qp: -1, Err: ErrNonFinite}
				}
				ps.jac.ZeroRow(dof)
				ps.jac.Set(dof, dof, v)
			}
		}
	}
	return nil
}

// Postprocess integrates every postprocessor at the current solution and
// returns the finalized values by name
func (r *Runner) Postprocess(ctx context.Context) (map[string]float64, error) {
	if !r.ready {
		return nil, ErrNotSetUp
	}
	if err := r.prepare(ctx); err != nil {
		return nil, err
	}
	for _, pr := range r.plan.pps {
		if init, ok := pr.pp.(fem.PostprocessorInitializer); ok {
			init.Initialize()
		}
	}
	ps := &pass{mode: modePostprocess, pp: NewGlobalVector(2 * len(r.plan.pps))}
	if err := r.run(ctx, ps); err != nil {
		return nil, err
	}
	out := make(map[string]float64, len(r.plan.pps))
	for _, pr := range r.plan.pps {
		out[pr.name] = pr.pp.Finalize(ps.pp.At(2*pr.index), ps.pp.At(2*pr.index+1))
	}
	return out, nil
}
