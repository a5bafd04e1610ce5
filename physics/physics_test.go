package physics

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/FEKernel/element"
	"github.com/notargets/FEKernel/fem"
	"github.com/notargets/FEKernel/material"
	"github.com/notargets/FEKernel/mesh"
	"github.com/notargets/FEKernel/runner"
	"github.com/notargets/FEKernel/runner/builder"
)

type object struct {
	typ, name string
	raw       map[string]interface{}
}

// setup builds a runner with one nonlinear variable u of the given family
func setup(t *testing.T, m *mesh.Mesh, cfg builder.Config, family fem.Family, objects ...object) *runner.Runner {
	t.Helper()
	r := runner.NewRunner(m, NewRegistry(), cfg, nil)
	_, err := r.AddVariable("u", family)
	require.NoError(t, err)
	for _, o := range objects {
		require.NoError(t, r.AddObject(o.typ, o.name, o.raw))
	}
	require.NoError(t, r.Setup())
	return r
}

func unitCell(t *testing.T) *mesh.Mesh {
	t.Helper()
	m, err := mesh.NewLine(1, 0, 1, element.Edge2)
	require.NoError(t, err)
	return m
}

func TestBodyForce_Residual(t *testing.T) {
	r := setup(t, unitCell(t), builder.Config{QuadratureOrder: 1}, fem.Constant,
		object{"BodyForce", "force", map[string]interface{}{"variable": "u", "value": 5.0}})
	res, err := r.EvaluateResidual(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 1, res.Len())
	assert.Equal(t, -5.0, res.At(0))
}

func TestSteadyValue_Residual(t *testing.T) {
	r := setup(t, unitCell(t), builder.Config{QuadratureOrder: 1}, fem.Constant,
		object{"SteadyValue", "pin", map[string]interface{}{"variable": "u", "value": 2.0}})

	res, err := r.EvaluateResidual(context.Background(), []float64{2})
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.At(0))

	res, err = r.EvaluateResidual(context.Background(), []float64{3})
	require.NoError(t, err)
	assert.Equal(t, 1.0, res.At(0))

	jac, err := r.EvaluateJacobian(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, jac.At(0, 0))
}

func TestDiffusion_Stiffness(t *testing.T) {
	m, err := mesh.NewLine(2, 0, 1, element.Edge2)
	require.NoError(t, err)
	r := setup(t, m, builder.Config{}, fem.Lagrange,
		object{"Diffusion", "diff", map[string]interface{}{"variable": "u"}})

	jac, err := r.EvaluateJacobian(context.Background(), nil)
	require.NoError(t, err)
	expected := [][]float64{
		{2, -2, 0},
		{-2, 4, -2},
		{0, -2, 2},
	}
	for i := range expected {
		for j := range expected[i] {
			assert.InDelta(t, expected[i][j], jac.At(i, j), 1e-12, "K[%d][%d]", i, j)
		}
	}
	assert.False(t, jac.Has(0, 2))

	// a linear field has zero interior residual
	res, err := r.EvaluateResidual(context.Background(), []float64{1, 2, 3})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, res.At(1), 1e-12)
	assert.InDelta(t, -2.0, res.At(0), 1e-12)
	assert.InDelta(t, 2.0, res.At(2), 1e-12)
}

func TestMaterial_ObservedByConsumer(t *testing.T) {
	r := setup(t, unitCell(t), builder.Config{}, fem.Constant,
		object{"GenericConstantMaterial", "mat", map[string]interface{}{
			"prop_names": []interface{}{"k"}, "prop_values": []interface{}{3.0},
		}},
		object{"ElementIntegralMaterialProperty", "k_integral", map[string]interface{}{"mat_prop": "k"}},
	)
	out, err := r.Postprocess(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 3.0, out["k_integral"], 1e-14)
}

func TestMaterial_MissingOnBlockFailsSetup(t *testing.T) {
	m, err := mesh.NewLine(2, 0, 2, element.Edge2)
	require.NoError(t, err)
	m.AssignBlocks(func(c r3.Vec) mesh.SubdomainID {
		if c.X < 1 {
			return 0
		}
		return 1
	})
	r := runner.NewRunner(m, NewRegistry(), builder.Config{}, nil)
	_, err = r.AddVariable("u", fem.Lagrange)
	require.NoError(t, err)
	require.NoError(t, r.AddObject("GenericConstantMaterial", "mat", map[string]interface{}{
		"block": "0", "prop_names": "k", "prop_values": 3.0,
	}))
	require.NoError(t, r.AddObject("MatDiffusion", "diff", map[string]interface{}{
		"variable": "u", "diffusivity": "k",
	}))

	err = r.Setup()
	var undeclared *material.UndeclaredPropertyError
	require.True(t, errors.As(err, &undeclared), "got %v", err)
	assert.Equal(t, "k", undeclared.Property)
	assert.Equal(t, "diff", undeclared.Consumer)
	assert.Equal(t, mesh.SubdomainID(1), undeclared.Block)

	_, err = r.EvaluateResidual(context.Background(), nil)
	assert.ErrorIs(t, err, runner.ErrNotSetUp)
}

func TestMaterial_ResolvedOnVariableBlocks(t *testing.T) {
	m, err := mesh.NewLine(2, 0, 2, element.Edge2)
	require.NoError(t, err)
	m.AssignBlocks(func(c r3.Vec) mesh.SubdomainID {
		if c.X < 1 {
			return 0
		}
		return 1
	})
	r := runner.NewRunner(m, NewRegistry(), builder.Config{}, nil)
	w, err := r.AddVariable("w", fem.Lagrange, "1")
	require.NoError(t, err)
	kAux, err := r.AddAuxVariable("k_aux", fem.Constant, "1")
	require.NoError(t, err)
	require.NoError(t, r.AddObject("GenericConstantMaterial", "mat", map[string]interface{}{
		"block": "1", "prop_names": "k", "prop_values": 3.0,
	}))
	// neither consumer names a block; both run only where their variable lives
	require.NoError(t, r.AddObject("MatDiffusion", "diff_w", map[string]interface{}{
		"variable": "w", "diffusivity": "k",
	}))
	require.NoError(t, r.AddObject("MaterialRealAux", "k_copy", map[string]interface{}{
		"variable": "k_aux", "property": "k",
	}))
	require.NoError(t, r.Setup())
	require.Equal(t, 2, r.Dofs().NumDofs())
	assert.Equal(t, 1, r.Dofs().NodeDof(2, w))

	res, err := r.EvaluateResidual(context.Background(), []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, -3.0, res.At(0), 1e-14)
	assert.InDelta(t, 3.0, res.At(1), 1e-14)
	assert.InDelta(t, 3.0, r.AuxSolution()[r.AuxDofs().CellDof(1, kAux)], 1e-14)
}

func TestMaterialCache_RecomputesSolutionDependentChain(t *testing.T) {
	r := runner.NewRunner(unitCell(t), NewRegistry(), builder.Config{MaterialCache: true}, nil)
	_, err := r.AddVariable("u", fem.Constant)
	require.NoError(t, err)
	k2Aux, err := r.AddAuxVariable("k2_aux", fem.Constant)
	require.NoError(t, err)
	objects := []object{
		{"DependentMaterial", "dep", map[string]interface{}{"prop_name": "k2", "source": "k", "factor": 2.0}},
		{"LinearMaterial", "lin", map[string]interface{}{"prop_name": "k", "variable": "u", "k0": 1.0, "k1": 1.0}},
		{"GenericConstantMaterial", "const", map[string]interface{}{"prop_names": "c", "prop_values": 7.0}},
		{"MaterialRealAux", "k2_copy", map[string]interface{}{"variable": "k2_aux", "property": "k2"}},
		{"ElementIntegralMaterialProperty", "k2_integral", map[string]interface{}{"mat_prop": "k2"}},
		{"ElementIntegralMaterialProperty", "c_integral", map[string]interface{}{"mat_prop": "c"}},
	}
	for _, o := range objects {
		require.NoError(t, r.AddObject(o.typ, o.name, o.raw))
	}
	require.NoError(t, r.Setup())

	store := r.Store()
	assert.True(t, store.CacheEnabled())
	assert.True(t, store.IsVolatile("lin"))
	assert.True(t, store.IsVolatile("dep"), "reads a solution dependent property")
	assert.False(t, store.IsVolatile("const"))

	ctx := context.Background()
	check := func(u float64) {
		t.Helper()
		out, err := r.Postprocess(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 2*(1+u), out["k2_integral"], 1e-14, "u=%g", u)
		assert.InDelta(t, 7.0, out["c_integral"], 1e-14)
		assert.InDelta(t, 2*(1+u), r.AuxSolution()[r.AuxDofs().CellDof(0, k2Aux)], 1e-14, "u=%g", u)
	}

	require.NoError(t, r.SetInitialCondition([]float64{3}))
	check(3)
	for _, u := range []float64{1, 5} {
		_, err := r.EvaluateResidual(ctx, []float64{u})
		require.NoError(t, err)
		check(u)
	}
	r.RejectTimestep()
	check(3)
	r.SetTime(1, 1)
	check(3)
}

func TestElementExtremeValue_ReducesWorkerSlots(t *testing.T) {
	m, err := mesh.NewLine(6, 0, 6, element.Edge2)
	require.NoError(t, err)
	r := setup(t, m, builder.Config{Workers: 3, Strategy: "round-robin"}, fem.Constant,
		object{"ElementExtremeValue", "max", map[string]interface{}{"variable": "u"}},
		object{"ElementExtremeValue", "min", map[string]interface{}{"variable": "u", "value_type": "min"}},
	)
	v, _ := r.Variable("u")
	field := func(scale float64) []float64 {
		u := make([]float64, r.Dofs().NumDofs())
		for c := range m.Cells {
			u[r.Dofs().CellDof(c, v)] = scale * float64(c)
		}
		return u
	}
	ctx := context.Background()

	require.NoError(t, r.SetInitialCondition(field(1)))
	out, err := r.Postprocess(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5.0, out["max"])
	assert.Equal(t, 0.0, out["min"])

	// every pass starts from fresh slots
	_, err = r.EvaluateResidual(ctx, field(-1))
	require.NoError(t, err)
	out, err = r.Postprocess(ctx)
	require.NoError(t, err)
	assert.InDelta(t, 0.0, out["max"], 1e-15)
	assert.Equal(t, -5.0, out["min"])

	bad := runner.NewRunner(m, NewRegistry(), builder.Config{}, nil)
	_, err = bad.AddVariable("u", fem.Constant)
	require.NoError(t, err)
	require.NoError(t, bad.AddObject("ElementExtremeValue", "mid", map[string]interface{}{
		"variable": "u", "value_type": "median",
	}))
	assert.ErrorContains(t, bad.Setup(), "value_type")
}

func TestMatDiffusion_UsesDiffusivity(t *testing.T) {
	m, err := mesh.NewLine(1, 0, 1, element.Edge2)
	require.NoError(t, err)
	r := setup(t, m, builder.Config{}, fem.Lagrange,
		object{"GenericConstantMaterial", "mat", map[string]interface{}{"prop_names": "k", "prop_values": 3.0}},
		object{"MatDiffusion", "diff", map[string]interface{}{"variable": "u", "diffusivity": "k"}},
	)
	res, err := r.EvaluateResidual(context.Background(), []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, -3.0, res.At(0), 1e-14)
	assert.InDelta(t, 3.0, res.At(1), 1e-14)
}

func TestDependentMaterial_OrderedAfterSource(t *testing.T) {
	r := setup(t, unitCell(t), builder.Config{}, fem.Constant,
		object{"DependentMaterial", "a_scaled", map[string]interface{}{"prop_name": "k2", "source": "k", "factor": 2.0}},
		object{"GenericConstantMaterial", "z_base", map[string]interface{}{"prop_names": "k", "prop_values": 3.0}},
		object{"ElementIntegralMaterialProperty", "k2", map[string]interface{}{"mat_prop": "k2"}},
	)
	assert.Equal(t, []string{"z_base", "a_scaled"}, r.MaterialOrder(0))
	out, err := r.Postprocess(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 6.0, out["k2"], 1e-14)
}

func TestNeumannAndVacuumBC(t *testing.T) {
	m, err := mesh.NewRectangle(1, 1, 0, 2, 0, 1, element.Quad4)
	require.NoError(t, err)
	r := setup(t, m, builder.Config{}, fem.Lagrange,
		object{"NeumannBC", "flux", map[string]interface{}{"variable": "u", "boundary": "right", "value": 3.0}},
		object{"VacuumBC", "vac", map[string]interface{}{"variable": "u", "boundary": "top", "alpha": 1.0}},
	)
	u := make([]float64, r.Dofs().NumDofs())
	for i := range u {
		u[i] = 4
	}
	res, err := r.EvaluateResidual(context.Background(), u)
	require.NoError(t, err)

	// the flux integrates to -3·|right| = -3, the vacuum term to α/2·4·|top| = 4
	var total float64
	for i := 0; i < res.Len(); i++ {
		total += res.At(i)
	}
	assert.InDelta(t, 1.0, total, 1e-12)
}

func TestDirichletBC_ReplacesRows(t *testing.T) {
	m, err := mesh.NewLine(2, 0, 1, element.Edge2)
	require.NoError(t, err)
	r := setup(t, m, builder.Config{}, fem.Lagrange,
		object{"Diffusion", "diff", map[string]interface{}{"variable": "u"}},
		object{"DirichletBC", "left", map[string]interface{}{"variable": "u", "boundary": "left", "value": 1.0}},
	)
	res, err := r.EvaluateResidual(context.Background(), []float64{3, 0, 0})
	require.NoError(t, err)
	assert.Equal(t, 2.0, res.At(0))

	jac, err := r.EvaluateJacobian(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1.0, jac.At(0, 0))
	assert.Equal(t, 0.0, jac.At(0, 1))
	assert.InDelta(t, -2.0, jac.At(1, 0), 1e-12, "only the constrained row is replaced")
}

func TestDirichletBC_RejectsElementalVariable(t *testing.T) {
	r := runner.NewRunner(unitCell(t), NewRegistry(), builder.Config{}, nil)
	_, err := r.AddVariable("u", fem.Constant)
	require.NoError(t, err)
	require.NoError(t, r.AddObject("DirichletBC", "bc", map[string]interface{}{"variable": "u", "boundary": "left"}))
	var unresolved *fem.UnresolvedCouplingError
	assert.True(t, errors.As(r.Setup(), &unresolved))
}

func TestPostprocessors(t *testing.T) {
	m, err := mesh.NewRectangle(2, 2, 0, 2, 0, 1, element.Quad4)
	require.NoError(t, err)
	r := setup(t, m, builder.Config{Workers: 2}, fem.Lagrange,
		object{"ElementIntegralVariable", "integral", map[string]interface{}{"variable": "u"}},
		object{"ElementAverageValue", "average", map[string]interface{}{"variable": "u"}},
		object{"SideIntegralVariable", "right", map[string]interface{}{"variable": "u", "boundary": "right"}},
	)
	u := make([]float64, r.Dofs().NumDofs())
	v, _ := r.Variable("u")
	for n, node := range m.Nodes {
		u[r.Dofs().NodeDof(n, v)] = node.X.X
	}
	require.NoError(t, r.SetInitialCondition(u))
	out, err := r.Postprocess(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, out["integral"], 1e-12)
	assert.InDelta(t, 1.0, out["average"], 1e-12)
	assert.InDelta(t, 2.0, out["right"], 1e-12)
	assert.Equal(t, []string{"integral", "average", "right"}, r.Postprocessors())
}

func TestAuxKernels(t *testing.T) {
	m, err := mesh.NewLine(2, 0, 1, element.Edge2)
	require.NoError(t, err)
	r := runner.NewRunner(m, NewRegistry(), builder.Config{}, nil)
	_, err = r.AddVariable("u", fem.Lagrange)
	require.NoError(t, err)
	grad, err := r.AddAuxVariable("grad_u", fem.Constant)
	require.NoError(t, err)
	kAux, err := r.AddAuxVariable("k_aux", fem.Constant)
	require.NoError(t, err)
	require.NoError(t, r.AddObject("LinearMaterial", "mat", map[string]interface{}{
		"prop_name": "k", "variable": "u", "k0": 1.0, "k1": 2.0,
	}))
	require.NoError(t, r.AddObject("VariableGradientAux", "grad", map[string]interface{}{
		"variable": "grad_u", "gradient_variable": "u",
	}))
	require.NoError(t, r.AddObject("MaterialRealAux", "k", map[string]interface{}{
		"variable": "k_aux", "property": "k",
	}))
	require.NoError(t, r.AddObject("ElementAverageValue", "avg_grad", map[string]interface{}{"variable": "grad_u"}))
	require.NoError(t, r.Setup())

	require.NoError(t, r.SetInitialCondition([]float64{0, 1, 2}))
	out, err := r.Postprocess(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2.0, out["avg_grad"], 1e-12)

	aux := r.AuxSolution()
	for cell := 0; cell < 2; cell++ {
		assert.InDelta(t, 2.0, aux[r.AuxDofs().CellDof(cell, grad)], 1e-12)
	}
	// k = 1 + 2u averaged over cells where u goes 0→1 and 1→2
	assert.InDelta(t, 2.0, aux[r.AuxDofs().CellDof(0, kAux)], 1e-12)
	assert.InDelta(t, 4.0, aux[r.AuxDofs().CellDof(1, kAux)], 1e-12)
}

func TestAuxKernel_RejectsNodalVariable(t *testing.T) {
	r := runner.NewRunner(unitCell(t), NewRegistry(), builder.Config{}, nil)
	_, err := r.AddVariable("u", fem.Lagrange)
	require.NoError(t, err)
	_, err = r.AddAuxVariable("g", fem.Lagrange)
	require.NoError(t, err)
	require.NoError(t, r.AddObject("VariableGradientAux", "grad", map[string]interface{}{
		"variable": "g", "gradient_variable": "u",
	}))
	var unresolved *fem.UnresolvedCouplingError
	assert.True(t, errors.As(r.Setup(), &unresolved))
}

func TestStatefulAccumulator(t *testing.T) {
	r := setup(t, unitCell(t), builder.Config{MaterialCache: true}, fem.Constant,
		object{"SteadyValue", "pin", map[string]interface{}{"variable": "u", "value": 0.0}},
		object{"StatefulAccumulator", "acc", map[string]interface{}{"prop_name": "q", "rate": 2.0, "initial": 1.0}},
		object{"ElementIntegralMaterialProperty", "q", map[string]interface{}{"mat_prop": "q"}},
	)
	assert.True(t, r.Store().IsStateful("q"))
	r.SetTimeIntegrator(fem.ImplicitEuler{})
	ctx := context.Background()

	expected := []float64{2, 3, 4}
	for step, want := range expected {
		r.SetTime(float64(step+1)*0.5, 0.5)
		_, err := r.EvaluateResidual(ctx, nil)
		require.NoError(t, err)
		out, err := r.Postprocess(ctx)
		require.NoError(t, err)
		assert.InDelta(t, want, out["q"], 1e-14, "step %d", step)
		require.NoError(t, r.AcceptTimestep())
	}
	assert.ErrorIs(t, r.AcceptTimestep(), material.ErrDoubleAdvance)
}

func TestTimeDerivative_ImplicitEuler(t *testing.T) {
	r := setup(t, unitCell(t), builder.Config{QuadratureOrder: 1}, fem.Constant,
		object{"TimeDerivative", "dt", map[string]interface{}{"variable": "u"}},
		object{"BodyForce", "src", map[string]interface{}{"variable": "u", "value": 2.0}},
	)
	r.SetTimeIntegrator(fem.ImplicitEuler{})
	require.NoError(t, r.SetInitialCondition([]float64{1}))
	r.SetTime(0.25, 0.25)

	res, err := r.EvaluateResidual(context.Background(), []float64{1.5})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, res.At(0), 1e-14, "(1.5-1)/0.25 - 2")

	jac, err := r.EvaluateJacobian(context.Background(), nil)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, jac.At(0, 0), 1e-14)
}

func TestRegistry_Types(t *testing.T) {
	reg := NewRegistry()
	for _, typ := range []string{"BodyForce", "DirichletBC", "GenericConstantMaterial", "MaterialRealAux", "SideIntegralVariable"} {
		_, ok := reg.Lookup(typ)
		assert.True(t, ok, typ)
	}
	e, _ := reg.Lookup("CoupledForce")
	spec, ok := e.Params.Lookup("v")
	require.True(t, ok)
	assert.True(t, spec.Coupled)
	assert.True(t, spec.Required)
}
