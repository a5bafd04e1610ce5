// Package material owns the per quadrature point material property arrays.
// Producers declare a property on a set of blocks and receive a WriteHandle;
// consumers receive ReadHandles bound to the current, old or older state.
// Handles are resolved while objects are constructed, never during assembly.
package material

import (
	"fmt"
	"sort"

	"github.com/notargets/FEKernel/mesh"
)

type Store struct {
	meshBlocks []mesh.SubdomainID
	props      map[string]entry
	allocated  bool

	// evaluated is set once an evaluation has written the current state and
	// cleared by AdvanceTimestep
	evaluated bool

	cacheEnabled bool
	valid        map[string][]bool // producer -> per-cell validity
	volatile     map[string]bool
}

// NewStore creates a store for a mesh with the given blocks. Declarations and
// requests without blocks cover all of them.
func NewStore(meshBlocks []mesh.SubdomainID) *Store {
	b := make([]mesh.SubdomainID, len(meshBlocks))
	copy(b, meshBlocks)
	return &Store{
		meshBlocks: b,
		props:      make(map[string]entry),
		valid:      make(map[string][]bool),
		volatile:   make(map[string]bool),
	}
}

func (s *Store) expand(blocks []mesh.SubdomainID) []mesh.SubdomainID {
	if len(blocks) == 0 {
		return s.meshBlocks
	}
	return blocks
}

func lookup[T any](s *Store, name, object string) (*Property[T], error) {
	e, ok := s.props[name]
	if !ok {
		if s.allocated {
			panic(fmt.Sprintf("material property %q requested by %s after allocation", name, object))
		}
		p := &Property[T]{name: name, owners: make(map[mesh.SubdomainID]string)}
		s.props[name] = p
		return p, nil
	}
	p, ok := e.(*Property[T])
	if !ok {
		var zero T
		return nil, &TypeMismatchError{Property: name, Object: object,
			Declared: e.typeName(), Requested: fmt.Sprintf("%T", zero)}
	}
	return p, nil
}

// Declare registers producer as the source of name on blocks
func Declare[T any](s *Store, name, producer string, blocks []mesh.SubdomainID) (*WriteHandle[T], error) {
	p, err := lookup[T](s, name, producer)
	if err != nil {
		return nil, err
	}
	for _, b := range s.expand(blocks) {
		if existing, ok := p.owners[b]; ok {
			return nil, &DuplicateDeclarationError{Property: name, Producer: producer, Existing: existing, Block: b}
		}
	}
	for _, b := range s.expand(blocks) {
		p.owners[b] = producer
	}
	if _, ok := s.valid[producer]; !ok {
		s.valid[producer] = nil
	}
	return &WriteHandle[T]{p: p}, nil
}

func request[T any](s *Store, name, consumer string, blocks []mesh.SubdomainID, st State) (*ReadHandle[T], error) {
	p, err := lookup[T](s, name, consumer)
	if err != nil {
		return nil, err
	}
	if st != Current {
		p.stateful = true
	}
	bl := s.expand(blocks)
	p.readers = append(p.readers, Consumer{Object: consumer, Blocks: append([]mesh.SubdomainID(nil), bl...), State: st})
	return &ReadHandle[T]{p: p, state: st}, nil
}

// Get returns a read handle on the current state
func Get[T any](s *Store, name, consumer string, blocks []mesh.SubdomainID) (*ReadHandle[T], error) {
	return request[T](s, name, consumer, blocks, Current)
}

// GetOld returns a read handle on the previous timestep's value and makes
// the property stateful
func GetOld[T any](s *Store, name, consumer string, blocks []mesh.SubdomainID) (*ReadHandle[T], error) {
	return request[T](s, name, consumer, blocks, Old)
}

// GetOlder returns a read handle on the value two timesteps back
func GetOlder[T any](s *Store, name, consumer string, blocks []mesh.SubdomainID) (*ReadHandle[T], error) {
	return request[T](s, name, consumer, blocks, Older)
}

// Validate checks that every consumer block has a producer. It reports the
// first failure in name order.
func (s *Store) Validate() error {
	for _, name := range s.Names() {
		e := s.props[name]
		owners := e.producers()
		for _, c := range e.consumers() {
			for _, b := range c.Blocks {
				if _, ok := owners[b]; !ok {
					return &UndeclaredPropertyError{Property: name, Consumer: c.Object, Block: b}
				}
			}
		}
	}
	return nil
}

// Names returns the property names in sorted order
func (s *Store) Names() []string {
	out := make([]string, 0, len(s.props))
	for n := range s.props {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Producers returns block -> producer object for a property
func (s *Store) Producers(name string) map[mesh.SubdomainID]string {
	e, ok := s.props[name]
	if !ok {
		return nil
	}
	out := make(map[mesh.SubdomainID]string, len(e.producers()))
	for b, p := range e.producers() {
		out[b] = p
	}
	return out
}

func (s *Store) Consumers(name string) []Consumer {
	e, ok := s.props[name]
	if !ok {
		return nil
	}
	return append([]Consumer(nil), e.consumers()...)
}

func (s *Store) IsStateful(name string) bool {
	e, ok := s.props[name]
	return ok && e.isStateful()
}

// HasStateful reports whether any property keeps old or older values
func (s *Store) HasStateful() bool {
	for _, e := range s.props {
		if e.isStateful() {
			return true
		}
	}
	return false
}

// Allocate sizes every property for nqp[cell] quadrature points per cell.
// No new properties may be declared or requested afterwards.
func (s *Store) Allocate(nqp []int) {
	for _, e := range s.props {
		e.allocate(nqp)
	}
	for producer := range s.valid {
		s.valid[producer] = make([]bool, len(nqp))
	}
	s.allocated = true
	s.evaluated = false
}

// SeedStateful copies current values into old and older
func (s *Store) SeedStateful() {
	for _, e := range s.props {
		e.seed()
	}
}

// MarkEvaluated records that the current state was written by an evaluation
func (s *Store) MarkEvaluated() { s.evaluated = true }

// AdvanceTimestep shifts current→old→older for stateful properties. It must
// be called once per accepted timestep.
func (s *Store) AdvanceTimestep() error {
	if !s.evaluated {
		return ErrDoubleAdvance
	}
	for _, e := range s.props {
		e.advance()
	}
	s.evaluated = false
	s.InvalidateCache()
	return nil
}

// EnableCache turns reuse of previously computed element values on or off
func (s *Store) EnableCache(on bool) {
	s.cacheEnabled = on
	if !on {
		s.InvalidateCache()
	}
}

func (s *Store) CacheEnabled() bool { return s.cacheEnabled }

// InvalidateCache forces every producer to recompute on its next visit
func (s *Store) InvalidateCache() {
	for _, v := range s.valid {
		for i := range v {
			v[i] = false
		}
	}
}

// SetVolatile marks a producer whose values depend on the solution
func (s *Store) SetVolatile(producer string, volatile bool) {
	s.volatile[producer] = volatile
}

func (s *Store) IsVolatile(producer string) bool { return s.volatile[producer] }

// InvalidateVolatile forces producers that depend on the solution to recompute
func (s *Store) InvalidateVolatile() {
	for producer, v := range s.valid {
		if !s.volatile[producer] {
			continue
		}
		for i := range v {
			v[i] = false
		}
	}
}

// Cached reports whether producer's values on cell can be reused
func (s *Store) Cached(producer string, cell int) bool {
	if !s.cacheEnabled {
		return false
	}
	v := s.valid[producer]
	return cell < len(v) && v[cell]
}

// MarkComputed records that producer has written cell. Workers own disjoint
// cells so concurrent calls never touch the same entry.
func (s *Store) MarkComputed(producer string, cell int) {
	if v := s.valid[producer]; cell < len(v) {
		v[cell] = true
	}
}
