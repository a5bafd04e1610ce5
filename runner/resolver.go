package runner

import (
	"errors"
	"fmt"
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"

	"github.com/notargets/FEKernel/fem"
	"github.com/notargets/FEKernel/material"
	"github.com/notargets/FEKernel/mesh"
)

// objectRecord is one constructed object and the kind it was registered as
type objectRecord struct {
	obj  fem.Object
	typ  string
	kind fem.Kind
}

// contribution caches the capabilities of a kernel or integrated BC
type contribution struct {
	name  string
	v     *fem.Variable
	res   fem.ResidualProvider
	jac   fem.JacobianProvider
	off   fem.OffDiagJacobianProvider
	adRes fem.ADResidualProvider

	// coupled are the nonlinear variables other than v whose Jacobian
	// columns this object fills
	coupled []*fem.Variable
}

type materialRecord struct {
	name     string
	compute  fem.MaterialComputer
	init     fem.StatefulInitializer
	blocks   []mesh.SubdomainID
	coupled  []*fem.Variable
	volatile bool
}

type auxRecord struct {
	name    string
	v       *fem.Variable
	compute fem.AuxComputer
}

type ppRecord struct {
	name  string
	index int
	pp    fem.PostprocessorIntegrand
}

type nodalRecord struct {
	name  string
	v     *fem.Variable
	bc    fem.NodalResidualProvider
	nodes []int
}

// blockPlan lists what runs on the cells of one block, in execution order
type blockPlan struct {
	materials []*materialRecord
	kernels   []*contribution
	aux       []*auxRecord
	pps       []*ppRecord
}

// sideWork lists what runs on one boundary side of a cell
type sideWork struct {
	side int
	bcs  []*contribution
	pps  []*ppRecord
}

// plan is everything Setup resolves once and the evaluations reuse
type plan struct {
	blocks  map[mesh.SubdomainID]*blockPlan
	sides   map[int][]*sideWork // by cell
	nodal   []*nodalRecord
	pps     []*ppRecord
	mats    map[string]*materialRecord
	pattern *Pattern
	hasAD   bool
	hasAux  bool
}

// propertyUse is a current-state property read by one object
type propertyUse struct {
	prop   string
	blocks []mesh.SubdomainID
}

func blocksOf(o fem.Object) []mesh.SubdomainID {
	if br, ok := o.(fem.BlockRestricted); ok {
		return br.Blocks()
	}
	return nil
}

func boundariesOf(o fem.Object) []mesh.BoundaryID {
	if br, ok := o.(fem.BoundaryRestricted); ok {
		return br.Boundaries()
	}
	return nil
}

func coupledOf(o fem.Object) []*fem.Variable {
	if cd, ok := o.(fem.CouplingDeclarer); ok {
		return cd.CoupledVariables()
	}
	return nil
}

// variableBlocks returns the blocks a variable-bound object runs on. Omitted
// blocks default to those of the variable; explicit blocks must carry it.
func variableBlocks(m *mesh.Mesh, name string, v *fem.Variable, blocks []mesh.SubdomainID) ([]mesh.SubdomainID, error) {
	if len(blocks) == 0 {
		var out []mesh.SubdomainID
		for _, b := range m.Blocks() {
			if v.ActiveOn(b) {
				out = append(out, b)
			}
		}
		return out, nil
	}
	for _, b := range blocks {
		if !v.ActiveOn(b) {
			return nil, &fem.UnresolvedCouplingError{Object: name, Variable: v.Name,
				Reason: fmt.Sprintf("variable is not defined on block %d", b)}
		}
	}
	return blocks, nil
}

// nonlinearCoupling checks that every coupled variable exists where the
// object runs and returns the nonlinear ones other than self
func nonlinearCoupling(name string, self *fem.Variable, coupled []*fem.Variable, blocks []mesh.SubdomainID) ([]*fem.Variable, error) {
	var out []*fem.Variable
	for _, cv := range coupled {
		for _, b := range blocks {
			if !cv.ActiveOn(b) {
				return nil, &fem.UnresolvedCouplingError{Object: name, Variable: cv.Name,
					Reason: fmt.Sprintf("coupled variable is not defined on block %d", b)}
			}
		}
		if cv.Aux || cv == self {
			continue
		}
		out = append(out, cv)
	}
	return out, nil
}

func newContribution(name string, obj fem.Object, v *fem.Variable) *contribution {
	k := &contribution{name: name, v: v}
	k.res, _ = obj.(fem.ResidualProvider)
	k.jac, _ = obj.(fem.JacobianProvider)
	k.off, _ = obj.(fem.OffDiagJacobianProvider)
	k.adRes, _ = obj.(fem.ADResidualProvider)
	return k
}

func appendUnique(vs []*fem.Variable, more ...*fem.Variable) []*fem.Variable {
	for _, v := range more {
		found := false
		for _, u := range vs {
			if u == v {
				found = true
				break
			}
		}
		if !found {
			vs = append(vs, v)
		}
	}
	return vs
}

// resolve validates the object set against the mesh, store and dof map and
// builds the execution plan. It returns the first setup error found.
func resolve(m *mesh.Mesh, store *material.Store, dofs *fem.DofMap, objects []*objectRecord) (*plan, error) {
	if err := store.Validate(); err != nil {
		return nil, err
	}
	pl := &plan{
		blocks: make(map[mesh.SubdomainID]*blockPlan),
		sides:  make(map[int][]*sideWork),
		mats:   make(map[string]*materialRecord),
	}
	meshBlocks := m.Blocks()
	for _, b := range meshBlocks {
		pl.blocks[b] = &blockPlan{}
	}

	uses := make(map[string][]propertyUse)
	for _, prop := range store.Names() {
		for _, c := range store.Consumers(prop) {
			if c.State != material.Current {
				continue
			}
			uses[c.Object] = append(uses[c.Object], propertyUse{prop: prop, blocks: c.Blocks})
		}
	}

	// materials first: kernels need their coupling for AD columns
	var matNames []string
	for _, o := range objects {
		if o.kind != fem.KindMaterial {
			continue
		}
		name := o.obj.Name()
		mr := &materialRecord{name: name, blocks: blocksOf(o.obj)}
		mr.compute = o.obj.(fem.MaterialComputer)
		mr.init, _ = o.obj.(fem.StatefulInitializer)
		if len(mr.blocks) == 0 {
			mr.blocks = meshBlocks
		}
		for _, cv := range coupledOf(o.obj) {
			for _, b := range mr.blocks {
				if !cv.ActiveOn(b) {
					return nil, &fem.UnresolvedCouplingError{Object: name, Variable: cv.Name,
						Reason: fmt.Sprintf("coupled variable is not defined on block %d", b)}
				}
			}
			if !cv.Aux {
				mr.coupled = appendUnique(mr.coupled, cv)
			}
		}
		mr.volatile = len(coupledOf(o.obj)) > 0
		pl.mats[name] = mr
		matNames = append(matNames, name)
	}
	sort.Strings(matNames)
	markVolatile(store, pl.mats, matNames, uses)

	for _, b := range meshBlocks {
		order, err := orderMaterials(store, b, pl.mats, matNames, uses)
		if err != nil {
			return nil, err
		}
		pl.blocks[b].materials = order
	}

	for _, o := range objects {
		name := o.obj.Name()
		switch o.kind {
		case fem.KindKernel:
			v := o.obj.(fem.VariableBound).Variable()
			blocks, err := variableBlocks(m, name, v, blocksOf(o.obj))
			if err != nil {
				return nil, err
			}
			k := newContribution(name, o.obj, v)
			if k.coupled, err = nonlinearCoupling(name, v, coupledOf(o.obj), blocks); err != nil {
				return nil, err
			}
			if k.adRes != nil {
				pl.hasAD = true
				for _, u := range uses[name] {
					for _, b := range blocks {
						if !mesh.ContainsBlock(u.blocks, b) {
							continue
						}
						producer := store.Producers(u.prop)[b]
						for _, cv := range materialVariables(store, pl.mats, producer, uses, map[string]bool{}) {
							if cv != v {
								k.coupled = appendUnique(k.coupled, cv)
							}
						}
					}
				}
			}
			for _, b := range blocks {
				pl.blocks[b].kernels = append(pl.blocks[b].kernels, k)
			}

		case fem.KindIntegratedBC:
			v := o.obj.(fem.VariableBound).Variable()
			k := newContribution(name, o.obj, v)
			if k.adRes != nil {
				pl.hasAD = true
			}
			var err error
			if k.coupled, err = nonlinearCoupling(name, v, coupledOf(o.obj), nil); err != nil {
				return nil, err
			}
			for _, bid := range boundariesOf(o.obj) {
				for _, s := range m.SidesOn(bid) {
					if !v.ActiveOn(m.Cells[s.Cell].Block) {
						continue
					}
					sw := pl.side(s.Cell, s.Index)
					sw.bcs = append(sw.bcs, k)
				}
			}

		case fem.KindNodalBC:
			v := o.obj.(fem.VariableBound).Variable()
			nr := &nodalRecord{name: name, v: v, bc: o.obj.(fem.NodalResidualProvider)}
			var nodes []int
			for _, bid := range boundariesOf(o.obj) {
				nodes = append(nodes, m.NodeSets[bid]...)
			}
			nr.nodes = uniqueInts(nodes)
			pl.nodal = append(pl.nodal, nr)

		case fem.KindAuxKernel:
			v := o.obj.(fem.VariableBound).Variable()
			blocks, err := variableBlocks(m, name, v, blocksOf(o.obj))
			if err != nil {
				return nil, err
			}
			if _, err := nonlinearCoupling(name, v, coupledOf(o.obj), blocks); err != nil {
				return nil, err
			}
			ar := &auxRecord{name: name, v: v, compute: o.obj.(fem.AuxComputer)}
			for _, b := range blocks {
				pl.blocks[b].aux = append(pl.blocks[b].aux, ar)
			}
			pl.hasAux = true

		case fem.KindPostprocessor:
			pr := &ppRecord{name: name, index: len(pl.pps), pp: o.obj.(fem.PostprocessorIntegrand)}
			pl.pps = append(pl.pps, pr)
			if bids := boundariesOf(o.obj); len(bids) > 0 {
				for _, bid := range bids {
					for _, s := range m.SidesOn(bid) {
						sw := pl.side(s.Cell, s.Index)
						sw.pps = append(sw.pps, pr)
					}
				}
				continue
			}
			blocks := blocksOf(o.obj)
			if len(blocks) == 0 {
				blocks = meshBlocks
			}
			for _, b := range blocks {
				pl.blocks[b].pps = append(pl.blocks[b].pps, pr)
			}
		}
	}

	pl.pattern = buildPattern(m, dofs, pl)
	return pl, nil
}

func (pl *plan) side(cell, index int) *sideWork {
	for _, sw := range pl.sides[cell] {
		if sw.side == index {
			return sw
		}
	}
	sw := &sideWork{side: index}
	pl.sides[cell] = append(pl.sides[cell], sw)
	return sw
}

// markVolatile propagates solution dependence through current-state
// property reads until nothing changes
func markVolatile(store *material.Store, mats map[string]*materialRecord, names []string, uses map[string][]propertyUse) {
	for changed := true; changed; {
		changed = false
		for _, name := range names {
			mr := mats[name]
			if mr.volatile {
				continue
			}
			for _, u := range uses[name] {
				for _, producer := range store.Producers(u.prop) {
					if p, ok := mats[producer]; ok && p.volatile {
						mr.volatile = true
						changed = true
					}
				}
			}
		}
	}
}

// materialVariables returns the nonlinear variables a material's values
// depend on, through the properties it reads
func materialVariables(store *material.Store, mats map[string]*materialRecord, name string,
	uses map[string][]propertyUse, seen map[string]bool) []*fem.Variable {
	mr, ok := mats[name]
	if !ok || seen[name] {
		return nil
	}
	seen[name] = true
	out := append([]*fem.Variable(nil), mr.coupled...)
	for _, u := range uses[name] {
		for _, producer := range store.Producers(u.prop) {
			out = appendUnique(out, materialVariables(store, mats, producer, uses, seen)...)
		}
	}
	return out
}

// orderMaterials sorts the materials active on block b so that producers run
// before the materials reading their current values. Graph node ids follow
// name order, which makes the result independent of declaration order.
func orderMaterials(store *material.Store, b mesh.SubdomainID, mats map[string]*materialRecord,
	names []string, uses map[string][]propertyUse) ([]*materialRecord, error) {
	g := simple.NewDirectedGraph()
	var active []string
	id := make(map[string]int64)
	for _, name := range names {
		if !mesh.ContainsBlock(mats[name].blocks, b) {
			continue
		}
		id[name] = int64(len(active))
		g.AddNode(simple.Node(len(active)))
		active = append(active, name)
	}
	for _, name := range active {
		for _, u := range uses[name] {
			if !mesh.ContainsBlock(u.blocks, b) {
				continue
			}
			producer, ok := id[store.Producers(u.prop)[b]]
			if !ok {
				continue
			}
			if producer == id[name] {
				return nil, &CycleError{Block: b, Materials: []string{name, name}}
			}
			g.SetEdge(g.NewEdge(simple.Node(producer), simple.Node(id[name])))
		}
	}
	sorted, err := topo.SortStabilized(g, func(nodes []graph.Node) {
		sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID() < nodes[j].ID() })
	})
	if err != nil {
		var cycles topo.Unorderable
		if !errors.As(err, &cycles) || len(cycles) == 0 {
			return nil, fmt.Errorf("order materials on block %d: %w", b, err)
		}
		var members []string
		for _, n := range cycles[0] {
			members = append(members, active[n.ID()])
		}
		sort.Strings(members)
		return nil, &CycleError{Block: b, Materials: members}
	}
	out := make([]*materialRecord, len(sorted))
	for i, n := range sorted {
		out[i] = mats[active[n.ID()]]
	}
	return out, nil
}

// buildPattern collects every (row, column) the element loop may touch
func buildPattern(m *mesh.Mesh, dofs *fem.DofMap, pl *plan) *Pattern {
	pb := newPatternBuilder(dofs.NumDofs())
	var rows, cols, more []int
	add := func(cell int, k *contribution) {
		rows = dofs.LocalDofs(m, cell, k.v, rows)
		cols = append(cols[:0], rows...)
		for _, cv := range k.coupled {
			more = dofs.LocalDofs(m, cell, cv, more)
			cols = append(cols, more...)
		}
		pb.add(rows, cols)
	}
	for cell := range m.Cells {
		for _, k := range pl.blocks[m.Cells[cell].Block].kernels {
			add(cell, k)
		}
		for _, sw := range pl.sides[cell] {
			for _, k := range sw.bcs {
				add(cell, k)
			}
		}
	}
	return pb.build()
}

func uniqueInts(in []int) []int {
	sort.Ints(in)
	out := in[:0]
	for i, v := range in {
		if i == 0 || v != in[i-1] {
			out = append(out, v)
		}
	}
	return out
}
