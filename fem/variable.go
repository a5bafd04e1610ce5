package fem

import (
	"fmt"

	"github.com/notargets/FEKernel/mesh"
)

// Family is the finite element space a variable lives in
type Family int

const (
	// Lagrange is continuous, one dof per cell node
	Lagrange Family = iota
	// Constant is discontinuous, one dof per cell
	Constant
)

func (f Family) String() string {
	switch f {
	case Lagrange:
		return "LAGRANGE"
	case Constant:
		return "CONSTANT"
	}
	return fmt.Sprintf("Family(%d)", int(f))
}

func ParseFamily(s string) (Family, error) {
	switch s {
	case "LAGRANGE", "lagrange", "":
		return Lagrange, nil
	case "CONSTANT", "constant", "MONOMIAL", "monomial":
		return Constant, nil
	}
	return 0, fmt.Errorf("unknown variable family %q", s)
}

// Variable is a named field. Index is its position within its system
// (nonlinear or auxiliary).
type Variable struct {
	Name   string
	Index  int
	Family Family
	Aux    bool
	Blocks []mesh.SubdomainID // empty means every block
}

// ActiveOn reports whether the variable has dofs on block b
func (v *Variable) ActiveOn(b mesh.SubdomainID) bool {
	return len(v.Blocks) == 0 || mesh.ContainsBlock(v.Blocks, b)
}

func (v *Variable) String() string {
	if v.Aux {
		return fmt.Sprintf("aux variable %q", v.Name)
	}
	return fmt.Sprintf("variable %q", v.Name)
}
