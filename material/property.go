package material

import (
	"fmt"
	"sort"

	"github.com/notargets/FEKernel/mesh"
)

// State selects a temporal copy of a property
type State int

const (
	Current State = iota
	Old
	Older
)

func (s State) String() string {
	switch s {
	case Current:
		return "current"
	case Old:
		return "old"
	case Older:
		return "older"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Locator addresses one quadrature point of one cell
type Locator interface {
	CellID() int
	Index() int
}

// Consumer records one read handle handed out by the store
type Consumer struct {
	Object string
	Blocks []mesh.SubdomainID
	State  State
}

// entry is the type-erased view of a Property the Store manages
type entry interface {
	propName() string
	typeName() string
	producers() map[mesh.SubdomainID]string
	consumers() []Consumer
	isStateful() bool
	allocate(nqp []int)
	advance()
	seed()
}

// Property is a typed per-cell per-qp array in three temporal states
type Property[T any] struct {
	name     string
	owners   map[mesh.SubdomainID]string
	readers  []Consumer
	stateful bool
	data     [3][][]T
}

func (p *Property[T]) propName() string { return p.name }

func (p *Property[T]) typeName() string {
	var zero T
	return fmt.Sprintf("%T", zero)
}

func (p *Property[T]) producers() map[mesh.SubdomainID]string { return p.owners }
func (p *Property[T]) consumers() []Consumer { return p.readers }
func (p *Property[T]) isStateful() bool { return p.stateful }

func (p *Property[T]) allocate(nqp []int) {
	states := 1
	if p.stateful {
		states = 3
	}
	for s := 0; s < 3; s++ {
		if s >= states {
			p.data[s] = nil
			continue
		}
		p.data[s] = make([][]T, len(nqp))
		for c, n := range nqp {
			p.data[s][c] = make([]T, n)
		}
	}
}

// advance shifts current→old→older and seeds the recycled current with old
func (p *Property[T]) advance() {
	if !p.stateful {
		return
	}
	cur, old, older := p.data[Current], p.data[Old], p.data[Older]
	p.data[Older], p.data[Old], p.data[Current] = old, cur, older
	for c := range p.data[Current] {
		copy(p.data[Current][c], p.data[Old][c])
	}
}

// seed copies current into old and older, used after stateful initialization
func (p *Property[T]) seed() {
	if !p.stateful {
		return
	}
	for c := range p.data[Current] {
		copy(p.data[Old][c], p.data[Current][c])
		copy(p.data[Older][c], p.data[Current][c])
	}
}

func (p *Property[T]) blocks() []mesh.SubdomainID {
	out := make([]mesh.SubdomainID, 0, len(p.owners))
	for b := range p.owners {
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// WriteHandle is held by the producing material
type WriteHandle[T any] struct {
	p *Property[T]
}

func (h *WriteHandle[T]) Name() string { return h.p.name }

// Set writes the current value at a quadrature point
func (h *WriteHandle[T]) Set(loc Locator, v T) {
	h.p.data[Current][loc.CellID()][loc.Index()] = v
}

// At reads back the current value at a quadrature point
func (h *WriteHandle[T]) At(loc Locator) T {
	return h.p.data[Current][loc.CellID()][loc.Index()]
}

// ReadHandle is held by a consumer; it is bound to one temporal state
type ReadHandle[T any] struct {
	p     *Property[T]
	state State
}

func (h *ReadHandle[T]) Name() string { return h.p.name }
func (h *ReadHandle[T]) State() State { return h.state }

// At reads the bound state at a quadrature point
func (h *ReadHandle[T]) At(loc Locator) T {
	return h.p.data[h.state][loc.CellID()][loc.Index()]
}
