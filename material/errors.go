package material

import (
	"errors"
	"fmt"

	"github.com/notargets/FEKernel/mesh"
)

// ErrDoubleAdvance is returned when AdvanceTimestep is called again before
// any evaluation has written the current state
var ErrDoubleAdvance = errors.New("material: timestep advanced twice without an intervening evaluation")

type DuplicateDeclarationError struct {
	Property string
	Producer string
	Existing string
	Block    mesh.SubdomainID
}

func (e *DuplicateDeclarationError) Error() string {
	return fmt.Sprintf("material property %q declared by %q on block %d is already declared there by %q",
		e.Property, e.Producer, e.Block, e.Existing)
}

type UndeclaredPropertyError struct {
	Property string
	Consumer string
	Block    mesh.SubdomainID
}

func (e *UndeclaredPropertyError) Error() string {
	return fmt.Sprintf("%s: material property %q is not declared on block %d", e.Consumer, e.Property, e.Block)
}

type TypeMismatchError struct {
	Property  string
	Object    string
	Declared  string
	Requested string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("%s: material property %q has type %s, requested as %s",
		e.Object, e.Property, e.Declared, e.Requested)
}
