package fem

import (
	"fmt"

	"github.com/notargets/FEKernel/material"
	"github.com/notargets/FEKernel/mesh"
	"github.com/notargets/FEKernel/params"
)

// Env is what the problem exposes to object constructors
type Env struct {
	Mesh      *mesh.Mesh
	Store     *material.Store
	Variables map[string]*Variable // nonlinear and auxiliary, by name
	Workers   int                  // Qp.ThreadID is below this
}

// Setup is the construction context of one object. Every handle an object
// needs during assembly is resolved through it.
type Setup struct {
	name   string
	kind   Kind
	params *params.Parameters
	env    Env
	base   *ObjectBase
}

func NewSetup(name string, kind Kind, p *params.Parameters, env Env) *Setup {
	return &Setup{name: name, kind: kind, params: p, env: env}
}

func (s *Setup) Name() string { return s.name }
func (s *Setup) Kind() Kind { return s.kind }
func (s *Setup) Params() *params.Parameters { return s.params }
func (s *Setup) Mesh() *mesh.Mesh { return s.env.Mesh }
func (s *Setup) Store() *material.Store { return s.env.Store }

// Workers is the number of worker ids objects may see through Qp.ThreadID
func (s *Setup) Workers() int {
	if s.env.Workers < 1 {
		return 1
	}
	return s.env.Workers
}

// Variable resolves a variable by name
func (s *Setup) Variable(name string) (*Variable, error) {
	v, ok := s.env.Variables[name]
	if !ok {
		return nil, &UnresolvedCouplingError{Object: s.name, Variable: name}
	}
	return v, nil
}

// Base resolves the shared wiring: the "variable", "block" and "boundary"
// parameters when the object's kind declares them. Materials and
// postprocessors may name a "variable" too; for them it is an ordinary
// coupled parameter.
func (s *Setup) Base() (*ObjectBase, error) {
	if s.base != nil {
		return s.base, nil
	}
	b := &ObjectBase{name: s.name}
	if s.params.Has("variable") && s.kind.ownsRows() {
		v, err := s.Variable(s.params.String("variable"))
		if err != nil {
			return nil, err
		}
		wantAux := s.kind == KindAuxKernel
		if v.Aux != wantAux {
			reason := "auxiliary variables take no residual contributions"
			if wantAux {
				reason = "aux kernels must write an auxiliary variable"
			}
			return nil, &UnresolvedCouplingError{Object: s.name, Variable: v.Name, Reason: reason}
		}
		if wantAux && v.Family != Constant {
			return nil, &UnresolvedCouplingError{Object: s.name, Variable: v.Name,
				Reason: "aux kernels support elemental (CONSTANT) variables only"}
		}
		b.variable = v
	}
	if s.params.Has("block") {
		for _, name := range s.params.Strings("block") {
			id, err := s.env.Mesh.Block(name)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", s.name, err)
			}
			b.blocks = append(b.blocks, id)
		}
	}
	if s.params.Has("boundary") {
		for _, name := range s.params.Strings("boundary") {
			id, err := s.env.Mesh.Boundary(name)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", s.name, err)
			}
			b.boundaries = append(b.boundaries, id)
		}
	}
	s.base = b
	return b, nil
}

// Coupled resolves the variables listed by a coupled parameter and records
// them on the object's base. An omitted optional parameter yields nil.
func (s *Setup) Coupled(param string) ([]*Variable, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	var out []*Variable
	for _, name := range s.params.Strings(param) {
		v, err := s.Variable(name)
		if err != nil {
			return nil, err
		}
		b.Couple(v)
		out = append(out, v)
	}
	return out, nil
}

// CoupledOne resolves a coupled parameter that names exactly one variable
func (s *Setup) CoupledOne(param string) (*Variable, error) {
	vs, err := s.Coupled(param)
	if err != nil {
		return nil, err
	}
	if len(vs) != 1 {
		return nil, fmt.Errorf("%s: parameter %q must name one variable, got %d", s.name, param, len(vs))
	}
	return vs[0], nil
}

func (s *Setup) materialBlocks() ([]mesh.SubdomainID, error) {
	b, err := s.Base()
	if err != nil {
		return nil, err
	}
	if len(b.boundaries) > 0 || s.kind == KindIntegratedBC || s.kind == KindNodalBC {
		return nil, fmt.Errorf("%s: boundary objects cannot use material properties", s.name)
	}
	// without a block parameter the object runs where its variable lives
	if len(b.blocks) == 0 && b.variable != nil {
		return b.variable.Blocks, nil
	}
	return b.blocks, nil
}

// DeclareProperty declares a material property produced by this object on
// its blocks
func DeclareProperty[T any](s *Setup, name string) (*material.WriteHandle[T], error) {
	blocks, err := s.materialBlocks()
	if err != nil {
		return nil, err
	}
	return material.Declare[T](s.env.Store, name, s.name, blocks)
}

// GetMaterialProperty returns a handle on the current value of a property
func GetMaterialProperty[T any](s *Setup, name string) (*material.ReadHandle[T], error) {
	blocks, err := s.materialBlocks()
	if err != nil {
		return nil, err
	}
	return material.Get[T](s.env.Store, name, s.name, blocks)
}

// GetMaterialPropertyOld returns a handle on the previous step's value
func GetMaterialPropertyOld[T any](s *Setup, name string) (*material.ReadHandle[T], error) {
	blocks, err := s.materialBlocks()
	if err != nil {
		return nil, err
	}
	return material.GetOld[T](s.env.Store, name, s.name, blocks)
}

// GetMaterialPropertyOlder returns a handle on the value two steps back
func GetMaterialPropertyOlder[T any](s *Setup, name string) (*material.ReadHandle[T], error) {
	blocks, err := s.materialBlocks()
	if err != nil {
		return nil, err
	}
	return material.GetOlder[T](s.env.Store, name, s.name, blocks)
}
