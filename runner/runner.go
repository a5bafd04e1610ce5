// Package runner assembles residuals and Jacobians of a set of physics
// objects over a mesh. Cells are split into partitions that worker
// goroutines visit concurrently; each worker holds an id from an IDPool that
// owns its value cache and local blocks.
package runner

import (
	"fmt"
	"log/slog"

	"github.com/notargets/FEKernel/fem"
	"github.com/notargets/FEKernel/material"
	"github.com/notargets/FEKernel/mesh"
	"github.com/notargets/FEKernel/partitions"
	"github.com/notargets/FEKernel/runner/builder"
	"github.com/notargets/FEKernel/utils"
)

type objectSpec struct {
	typ  string
	name string
	raw  map[string]interface{}
}

// Runner orchestrates setup and assembly of one problem
type Runner struct {
	*builder.Builder
	Mesh     *mesh.Mesh
	Registry *fem.Registry

	log *slog.Logger

	vars    []*fem.Variable
	auxVars []*fem.Variable
	byName  map[string]*fem.Variable
	specs   []objectSpec

	// rebuilt by Setup
	store   *material.Store
	objects []*objectRecord
	plan    *plan
	dofs    *fem.DofMap
	auxDofs *fem.DofMap
	sol     *fem.Solution
	aux     []float64
	layout  *partitions.PartitionLayout
	pool    *IDPool
	caches  []*fem.QpCache
	work    []*workspace
	ready   bool

	integrator      fem.TimeIntegrator
	time, dt, dtOld float64
}

// NewRunner creates a Runner for mesh m building objects from reg. A nil
// logger discards output.
func NewRunner(m *mesh.Mesh, reg *fem.Registry, cfg builder.Config, log *slog.Logger) *Runner {
	if m == nil {
		panic("runner needs a mesh")
	}
	if reg == nil {
		panic("runner needs an object registry")
	}
	if log == nil {
		log = utils.Discard()
	}
	return &Runner{
		Builder:    builder.NewBuilder(cfg),
		Mesh:       m,
		Registry:   reg,
		log:        log,
		byName:     make(map[string]*fem.Variable),
		integrator: fem.Steady{},
	}
}

func (r *Runner) addVariable(name string, family fem.Family, aux bool, blocks []string) (*fem.Variable, error) {
	if name == "" {
		return nil, fmt.Errorf("variable needs a name")
	}
	if _, ok := r.byName[name]; ok {
		return nil, fmt.Errorf("variable %q already added", name)
	}
	v := &fem.Variable{Name: name, Family: family, Aux: aux}
	for _, b := range blocks {
		id, err := r.Mesh.Block(b)
		if err != nil {
			return nil, fmt.Errorf("variable %q: %w", name, err)
		}
		v.Blocks = append(v.Blocks, id)
	}
	if aux {
		v.Index = len(r.auxVars)
		r.auxVars = append(r.auxVars, v)
	} else {
		v.Index = len(r.vars)
		r.vars = append(r.vars, v)
	}
	r.byName[name] = v
	r.ready = false
	return v, nil
}

// AddVariable adds a nonlinear variable restricted to the named blocks, or
// to all blocks when none are given
func (r *Runner) AddVariable(name string, family fem.Family, blocks ...string) (*fem.Variable, error) {
	return r.addVariable(name, family, false, blocks)
}

// AddAuxVariable adds an auxiliary variable; only elemental (Constant)
// auxiliary variables can be computed by aux kernels
func (r *Runner) AddAuxVariable(name string, family fem.Family, blocks ...string) (*fem.Variable, error) {
	return r.addVariable(name, family, true, blocks)
}

// AddObject records an object to be built by the next Setup
func (r *Runner) AddObject(typ, name string, raw map[string]interface{}) error {
	if _, ok := r.Registry.Lookup(typ); !ok {
		return fmt.Errorf("%s: unknown object type %q", name, typ)
	}
	for _, s := range r.specs {
		if s.name == name {
			return fmt.Errorf("object %q already added", name)
		}
	}
	r.specs = append(r.specs, objectSpec{typ: typ, name: name, raw: raw})
	r.ready = false
	return nil
}

// Setup builds every object, resolves couplings, material order and the
// Jacobian pattern, partitions the cells and sizes all storage. It must be
// called again after variables or objects change; the first error aborts it
// and leaves the runner unusable.
func (r *Runner) Setup() error {
	r.ready = false
	if len(r.vars) == 0 {
		return fmt.Errorf("problem has no nonlinear variables")
	}
	store := material.NewStore(r.Mesh.Blocks())
	env := fem.Env{Mesh: r.Mesh, Store: store, Variables: r.byName, Workers: r.Workers}
	objects := make([]*objectRecord, 0, len(r.specs))
	for _, s := range r.specs {
		obj, e, err := r.Registry.Build(s.typ, s.name, s.raw, env)
		if err != nil {
			return err
		}
		objects = append(objects, &objectRecord{obj: obj, typ: s.typ, kind: e.Kind})
	}

	dofs := fem.NewDofMap(r.Mesh, r.vars)
	auxDofs := fem.NewDofMap(r.Mesh, r.auxVars)
	pl, err := resolve(r.Mesh, store, dofs, objects)
	if err != nil {
		return err
	}
	layout, err := r.Partition(r.Mesh, r.Mesh.CellsIn(nil))
	if err != nil {
		return err
	}

	sys := fem.Systems{Mesh: r.Mesh, Dofs: dofs, AuxDofs: auxDofs, Order: r.QuadratureOrder}
	r.caches = make([]*fem.QpCache, r.Workers)
	r.work = make([]*workspace, r.Workers)
	for id := range r.caches {
		r.caches[id] = fem.NewQpCache(sys, id)
		r.work[id] = newWorkspace()
	}
	nqp := make([]int, r.Mesh.NumCells())
	for c := range nqp {
		nqp[c] = r.caches[0].NumQpFor(c)
	}
	store.Allocate(nqp)
	store.EnableCache(r.MaterialCache)
	for name, mr := range pl.mats {
		store.SetVolatile(name, mr.volatile)
	}

	r.store, r.objects, r.plan = store, objects, pl
	r.dofs, r.auxDofs = dofs, auxDofs
	r.sol = fem.NewSolution(dofs.NumDofs())
	r.aux = make([]float64, auxDofs.NumDofs())
	r.layout = layout
	r.pool = NewIDPool(r.Workers)
	r.ready = true

	if err := r.initStateful(); err != nil {
		r.ready = false
		return err
	}

	r.log.Info("setup complete",
		"objects", len(objects),
		"dofs", dofs.NumDofs(),
		"aux_dofs", auxDofs.NumDofs(),
		"nnz", pl.pattern.NNZ(),
		"elements", r.GetTotalElements(),
		"partitions", layout.NumPartitions,
		"kpart_max", layout.KpartMax,
		"workers", r.Workers,
		"material_cache", store.CacheEnabled())
	stats := layout.Statistics(r.Mesh.CellNeighbors())
	r.log.Debug("partition balance",
		"imbalance", stats.Imbalance,
		"cut_edges", stats.CutEdges,
		"min_elements", stats.MinElements,
		"max_elements", stats.MaxElements)
	for _, b := range r.Mesh.Blocks() {
		order := r.MaterialOrder(b)
		var volatile []string
		for _, name := range order {
			if store.IsVolatile(name) {
				volatile = append(volatile, name)
			}
		}
		r.log.Debug("material order", "block", b, "materials", order, "volatile", volatile)
	}
	return nil
}

// initStateful runs the stateful initializers of every material on every
// cell and copies the result into the old and older states
func (r *Runner) initStateful() error {
	if !r.store.HasStateful() {
		return nil
	}
	c := r.caches[0]
	a0, a1, a2 := r.coefficients()
	c.SetSolution(r.sol, r.aux)
	c.SetTime(r.time, r.dt, a0, a1, a2)
	c.EnableAD(false)
	for cell := range r.Mesh.Cells {
		bp := r.plan.blocks[r.Mesh.Cells[cell].Block]
		if len(bp.materials) == 0 {
			continue
		}
		if err := c.Refresh(cell); err != nil {
			return err
		}
		for _, mr := range bp.materials {
			for q := 0; q < c.NumQp(); q++ {
				if mr.init != nil {
					mr.init.InitQpStatefulProperties(c.At(q))
				} else {
					mr.compute.ComputeQpProperties(c.At(q))
				}
			}
		}
	}
	r.store.SeedStateful()
	r.store.InvalidateCache()
	return nil
}

// SetInitialCondition sets the current, old and older solution and
// reinitializes stateful material properties from it
func (r *Runner) SetInitialCondition(u []float64) error {
	if !r.ready {
		return ErrNotSetUp
	}
	if len(u) != r.sol.Len() {
		return fmt.Errorf("initial condition has %d values, system has %d dofs", len(u), r.sol.Len())
	}
	r.sol.Seed(u)
	return r.initStateful()
}

func (r *Runner) Dofs() *fem.DofMap { return r.dofs }
func (r *Runner) AuxDofs() *fem.DofMap { return r.auxDofs }
func (r *Runner) Store() *material.Store { return r.store }
func (r *Runner) Solution() *fem.Solution { return r.sol }
func (r *Runner) Layout() *partitions.PartitionLayout { return r.layout }
func (r *Runner) Pattern() *Pattern { return r.plan.pattern }

// AuxSolution returns the auxiliary values computed by the last pass
func (r *Runner) AuxSolution() []float64 { return r.aux }

// Variable looks up a nonlinear or auxiliary variable by name
func (r *Runner) Variable(name string) (*fem.Variable, bool) {
	v, ok := r.byName[name]
	return v, ok
}

func (r *Runner) Variables() []*fem.Variable { return r.vars }

// MaterialOrder returns the names of the materials on block b in the order
// they are evaluated
func (r *Runner) MaterialOrder(b mesh.SubdomainID) []string {
	bp, ok := r.plan.blocks[b]
	if !ok {
		return nil
	}
	out := make([]string, len(bp.materials))
	for i, mr := range bp.materials {
		out[i] = mr.name
	}
	return out
}

// Postprocessors returns the postprocessor names in the order they were added
func (r *Runner) Postprocessors() []string {
	out := make([]string, len(r.plan.pps))
	for i, pr := range r.plan.pps {
		out[i] = pr.name
	}
	return out
}
