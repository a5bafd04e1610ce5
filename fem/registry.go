package fem

import (
	"fmt"
	"sort"

	"github.com/notargets/FEKernel/params"
)

// Kind is where in the assembly an object runs
type Kind int

const (
	KindKernel Kind = iota
	KindIntegratedBC
	KindNodalBC
	KindAuxKernel
	KindMaterial
	KindPostprocessor
)

var kindNames = []string{"Kernel", "IntegratedBC", "NodalBC", "AuxKernel", "Material", "Postprocessor"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// ownsRows reports whether objects of the kind write the values of their
// "variable"
func (k Kind) ownsRows() bool {
	switch k {
	case KindKernel, KindIntegratedBC, KindNodalBC, KindAuxKernel:
		return true
	}
	return false
}

// BaseParams returns the parameters every object of a kind accepts
func BaseParams(k Kind) *params.Set {
	switch k {
	case KindKernel:
		return params.NewSet(
			params.Required("variable", params.KindString).Doc("variable whose residual rows this kernel fills"),
			params.Optional("block", params.KindStrings).Doc("blocks to run on, default all"),
		)
	case KindIntegratedBC, KindNodalBC:
		return params.NewSet(
			params.Required("variable", params.KindString).Doc("variable whose residual rows this condition fills"),
			params.Required("boundary", params.KindStrings).Doc("boundaries to apply on"),
		)
	case KindAuxKernel:
		return params.NewSet(
			params.Required("variable", params.KindString).Doc("auxiliary variable to compute"),
			params.Optional("block", params.KindStrings).Doc("blocks to run on, default all"),
		)
	case KindMaterial:
		return params.NewSet(
			params.Optional("block", params.KindStrings).Doc("blocks the properties are declared on, default all"),
		)
	case KindPostprocessor:
		return params.NewSet(
			params.Optional("block", params.KindStrings).Doc("blocks to integrate over, default all"),
		)
	}
	return params.NewSet()
}

// Constructor builds an object from its construction context
type Constructor func(s *Setup) (Object, error)

type Entry struct {
	Type   string
	Kind   Kind
	Doc    string
	Params *params.Set
	New    Constructor
}

// Registry maps type names to constructors. It is an explicit value owned
// by the caller; nothing registers itself globally.
type Registry struct {
	entries map[string]Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]Entry)}
}

// Register adds a type; its parameter set is merged over the kind's base set
func (r *Registry) Register(e Entry) error {
	if e.Type == "" || e.New == nil {
		return fmt.Errorf("registry entry needs a type name and a constructor")
	}
	if _, ok := r.entries[e.Type]; ok {
		return fmt.Errorf("object type %q already registered", e.Type)
	}
	own := e.Params
	if own == nil {
		own = params.NewSet()
	}
	e.Params = BaseParams(e.Kind).Merge(own)
	r.entries[e.Type] = e
	return nil
}

func (r *Registry) MustRegister(e Entry) {
	if err := r.Register(e); err != nil {
		panic(err)
	}
}

func (r *Registry) Lookup(typ string) (Entry, bool) {
	e, ok := r.entries[typ]
	return e, ok
}

// Types returns the registered type names in sorted order
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.entries))
	for t := range r.entries {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Build validates raw against the type's parameters and constructs the
// object named name
func (r *Registry) Build(typ, name string, raw map[string]interface{}, env Env) (Object, Entry, error) {
	e, ok := r.entries[typ]
	if !ok {
		return nil, Entry{}, fmt.Errorf("%s: unknown object type %q", name, typ)
	}
	p, err := e.Params.Validate(name, raw)
	if err != nil {
		return nil, e, err
	}
	obj, err := e.New(NewSetup(name, e.Kind, p, env))
	if err != nil {
		return nil, e, err
	}
	if err := CheckCapabilities(obj, e.Kind); err != nil {
		return nil, e, err
	}
	return obj, e, nil
}

// CheckCapabilities verifies that obj implements what its kind is assembled
// through
func CheckCapabilities(obj Object, k Kind) error {
	missing := ""
	switch k {
	case KindKernel, KindIntegratedBC:
		_, r := obj.(ResidualProvider)
		_, a := obj.(ADResidualProvider)
		_, v := obj.(VariableBound)
		if !r && !a {
			missing = "ResidualProvider or ADResidualProvider"
		} else if !v {
			missing = "VariableBound"
		}
	case KindNodalBC:
		if _, ok := obj.(NodalResidualProvider); !ok {
			missing = "NodalResidualProvider"
		} else if _, ok := obj.(VariableBound); !ok {
			missing = "VariableBound"
		}
	case KindAuxKernel:
		if _, ok := obj.(AuxComputer); !ok {
			missing = "AuxComputer"
		} else if _, ok := obj.(VariableBound); !ok {
			missing = "VariableBound"
		}
	case KindMaterial:
		if _, ok := obj.(MaterialComputer); !ok {
			missing = "MaterialComputer"
		}
	case KindPostprocessor:
		if _, ok := obj.(PostprocessorIntegrand); !ok {
			missing = "PostprocessorIntegrand"
		}
	}
	if missing != "" {
		return &CapabilityError{Object: obj.Name(), Kind: k, Missing: missing}
	}
	return nil
}
