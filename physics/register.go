// Package physics holds reference physics objects: kernels, boundary
// conditions, materials, aux kernels and postprocessors that exercise the
// assembly contract. Register adds them to a registry.
package physics

import (
	"github.com/notargets/FEKernel/fem"
	"github.com/notargets/FEKernel/params"
)

// Register adds every type in this package to reg
func Register(reg *fem.Registry) {
	for _, e := range entries() {
		reg.MustRegister(e)
	}
}

// NewRegistry returns a registry holding the types of this package
func NewRegistry() *fem.Registry {
	reg := fem.NewRegistry()
	Register(reg)
	return reg
}

func entries() []fem.Entry {
	return []fem.Entry{
		// kernels
		{
			Type: "BodyForce", Kind: fem.KindKernel, New: newBodyForce,
			Doc:    "constant volumetric source",
			Params: params.NewSet(params.Optional("value", params.KindFloat).Default(1.0).Doc("source strength")),
		},
		{
			Type: "Diffusion", Kind: fem.KindKernel, New: newDiffusion,
			Doc: "Laplacian with unit diffusivity",
		},
		{
			Type: "MatDiffusion", Kind: fem.KindKernel, New: newMatDiffusion,
			Doc: "diffusion scaled by a material property",
			Params: params.NewSet(
				params.Optional("diffusivity", params.KindString).Default("diffusivity").Doc("material property name"),
			),
		},
		{
			Type: "ADMatDiffusion", Kind: fem.KindKernel, New: newADMatDiffusion,
			Doc: "diffusion scaled by a dual valued material property, Jacobian by AD",
			Params: params.NewSet(
				params.Optional("diffusivity", params.KindString).Default("diffusivity").Doc("material property name"),
			),
		},
		{
			Type: "Reaction", Kind: fem.KindKernel, New: newReaction,
			Doc:    "linear sink",
			Params: params.NewSet(params.Optional("rate", params.KindFloat).Default(1.0).Doc("reaction rate")),
		},
		{
			Type: "CoupledForce", Kind: fem.KindKernel, New: newCoupledForce,
			Doc: "source proportional to another variable",
			Params: params.NewSet(
				params.Coupled("v").MustCouple().Doc("driving variable"),
				params.Optional("coef", params.KindFloat).Default(1.0).Doc("coupling coefficient"),
			),
		},
		{
			Type: "TimeDerivative", Kind: fem.KindKernel, New: newTimeDerivative,
			Doc: "time derivative of the variable",
		},
		{
			Type: "SteadyValue", Kind: fem.KindKernel, New: newSteadyValue,
			Doc:    "weakly pins the variable to a value",
			Params: params.NewSet(params.Required("value", params.KindFloat).Doc("target value")),
		},

		// boundary conditions
		{
			Type: "NeumannBC", Kind: fem.KindIntegratedBC, New: newNeumannBC,
			Doc:    "imposed flux",
			Params: params.NewSet(params.Optional("value", params.KindFloat).Default(0.0).Doc("outward flux")),
		},
		{
			Type: "VacuumBC", Kind: fem.KindIntegratedBC, New: newVacuumBC,
			Doc:    "Marshak vacuum condition",
			Params: params.NewSet(params.Optional("alpha", params.KindFloat).Default(1.0).Doc("extrapolation coefficient")),
		},
		{
			Type: "DirichletBC", Kind: fem.KindNodalBC, New: newDirichletBC,
			Doc:    "fixed nodal value",
			Params: params.NewSet(params.Optional("value", params.KindFloat).Default(0.0).Doc("boundary value")),
		},

		// materials
		{
			Type: "GenericConstantMaterial", Kind: fem.KindMaterial, New: newGenericConstantMaterial,
			Doc: "constant named properties",
			Params: params.NewSet(
				params.Required("prop_names", params.KindStrings).Doc("property names"),
				params.Required("prop_values", params.KindFloats).Doc("property values"),
			),
		},
		{
			Type: "LinearMaterial", Kind: fem.KindMaterial, New: newLinearMaterial,
			Doc:    "property linear in a variable",
			Params: linearMaterialParams(),
		},
		{
			Type: "ADLinearMaterial", Kind: fem.KindMaterial, New: newADLinearMaterial,
			Doc:    "dual valued property linear in a variable",
			Params: linearMaterialParams(),
		},
		{
			Type: "DependentMaterial", Kind: fem.KindMaterial, New: newDependentMaterial,
			Doc: "property proportional to another property",
			Params: params.NewSet(
				params.Required("prop_name", params.KindString).Doc("declared property"),
				params.Required("source", params.KindString).Doc("property read"),
				params.Optional("factor", params.KindFloat).Default(1.0),
			),
		},
		{
			Type: "StatefulAccumulator", Kind: fem.KindMaterial, New: newStatefulAccumulator,
			Doc: "property integrated over time from its old value",
			Params: params.NewSet(
				params.Optional("prop_name", params.KindString).Default("accumulated"),
				params.Optional("rate", params.KindFloat).Default(1.0),
				params.Optional("initial", params.KindFloat).Default(0.0),
				params.Coupled("variable").Doc("scales the rate when given"),
			),
		},

		// aux kernels
		{
			Type: "MaterialRealAux", Kind: fem.KindAuxKernel, New: newMaterialRealAux,
			Doc:    "cell average of a material property",
			Params: params.NewSet(params.Required("property", params.KindString)),
		},
		{
			Type: "VariableGradientAux", Kind: fem.KindAuxKernel, New: newVariableGradientAux,
			Doc: "cell average of a gradient component",
			Params: params.NewSet(
				params.Coupled("gradient_variable").MustCouple(),
				params.Optional("component", params.KindInt).Default(0).Range(0, 2),
			),
		},

		// postprocessors
		{
			Type: "ElementIntegralVariable", Kind: fem.KindPostprocessor, New: newElementIntegralVariable,
			Doc:    "integral of a variable over blocks",
			Params: params.NewSet(params.Coupled("variable").MustCouple()),
		},
		{
			Type: "ElementAverageValue", Kind: fem.KindPostprocessor, New: newElementAverageValue,
			Doc:    "average of a variable over blocks",
			Params: params.NewSet(params.Coupled("variable").MustCouple()),
		},
		{
			Type: "ElementExtremeValue", Kind: fem.KindPostprocessor, New: newElementExtremeValue,
			Doc: "largest or smallest qp value of a variable over blocks",
			Params: params.NewSet(
				params.Coupled("variable").MustCouple(),
				params.Optional("value_type", params.KindString).Default("max").Doc("max or min"),
			),
		},
		{
			Type: "ElementIntegralMaterialProperty", Kind: fem.KindPostprocessor, New: newElementIntegralMaterialProperty,
			Doc:    "integral of a material property over blocks",
			Params: params.NewSet(params.Required("mat_prop", params.KindString)),
		},
		{
			Type: "SideIntegralVariable", Kind: fem.KindPostprocessor, New: newSideIntegralVariable,
			Doc: "integral of a variable over boundaries",
			Params: params.NewSet(
				params.Coupled("variable").MustCouple(),
				params.Required("boundary", params.KindStrings),
			),
		},
	}
}

func linearMaterialParams() *params.Set {
	return params.NewSet(
		params.Optional("prop_name", params.KindString).Default("diffusivity").Doc("declared property"),
		params.Coupled("variable").MustCouple().Doc("variable the property depends on"),
		params.Optional("k0", params.KindFloat).Default(1.0),
		params.Optional("k1", params.KindFloat).Default(0.0),
	)
}
