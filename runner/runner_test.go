package runner

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/notargets/FEKernel/element"
	"github.com/notargets/FEKernel/fem"
	"github.com/notargets/FEKernel/mesh"
	"github.com/notargets/FEKernel/physics"
	"github.com/notargets/FEKernel/runner/builder"
)

type spec struct {
	typ, name string
	raw       map[string]interface{}
}

func newProblem(t *testing.T, m *mesh.Mesh, cfg builder.Config, vars []string, objects []spec) *Runner {
	t.Helper()
	r := NewRunner(m, physics.NewRegistry(), cfg, nil)
	for _, v := range vars {
		_, err := r.AddVariable(v, fem.Lagrange)
		require.NoError(t, err)
	}
	for _, o := range objects {
		require.NoError(t, r.AddObject(o.typ, o.name, o.raw))
	}
	require.NoError(t, r.Setup())
	return r
}

func rectangle(t *testing.T, nx, ny int) *mesh.Mesh {
	t.Helper()
	m, err := mesh.NewRectangle(nx, ny, 0, 1, 0, 1, element.Quad4)
	require.NoError(t, err)
	return m
}

// field returns a smooth nonuniform state so no Jacobian entry vanishes by
// symmetry
func field(r *Runner) []float64 {
	u := make([]float64, r.Dofs().NumDofs())
	for _, v := range r.Variables() {
		for n, node := range r.Mesh.Nodes {
			x := node.X
			u[r.Dofs().NodeDof(n, v)] = 1 + 0.5*x.X + 0.25*x.Y*x.Y + 0.1*float64(v.Index)
		}
	}
	return u
}

func nonlinearObjects() []spec {
	return []spec{
		{"ADLinearMaterial", "conductivity", map[string]interface{}{"variable": "u", "k0": 1.0, "k1": 0.5}},
		{"ADMatDiffusion", "diff", map[string]interface{}{"variable": "u"}},
		{"BodyForce", "src", map[string]interface{}{"variable": "u", "value": 2.0}},
		{"VacuumBC", "vac", map[string]interface{}{"variable": "u", "boundary": "right"}},
	}
}

// checkJacobian compares every entry against central differences of the
// residual; entries outside the pattern must have zero derivative
func checkJacobian(t *testing.T, r *Runner, u []float64) {
	t.Helper()
	ctx := context.Background()
	jac, err := r.EvaluateJacobian(ctx, u)
	require.NoError(t, err)
	n := len(u)
	const h = 1e-6
	up := make([]float64, n)
	for j := 0; j < n; j++ {
		copy(up, u)
		up[j] = u[j] + h
		rp, err := r.EvaluateResidual(ctx, up)
		require.NoError(t, err)
		up[j] = u[j] - h
		rm, err := r.EvaluateResidual(ctx, up)
		require.NoError(t, err)
		for i := 0; i < n; i++ {
			fd := (rp.At(i) - rm.At(i)) / (2 * h)
			if !jac.Has(i, j) {
				assert.InDelta(t, 0, fd, 1e-6, "(%d,%d) outside the pattern", i, j)
				continue
			}
			assert.InDelta(t, fd, jac.At(i, j), 1e-6, "J[%d][%d]", i, j)
		}
	}
}

func TestADJacobian_MatchesFiniteDifference(t *testing.T) {
	r := newProblem(t, rectangle(t, 3, 2), builder.Config{}, []string{"u"}, nonlinearObjects())
	checkJacobian(t, r, field(r))
}

func TestADJacobian_ImpliedCoupling(t *testing.T) {
	r := newProblem(t, rectangle(t, 2, 2), builder.Config{Workers: 2}, []string{"u", "v"}, []spec{
		{"ADLinearMaterial", "conductivity", map[string]interface{}{"variable": "v", "k0": 1.0, "k1": 2.0}},
		{"ADMatDiffusion", "diff_u", map[string]interface{}{"variable": "u"}},
		{"Diffusion", "diff_v", map[string]interface{}{"variable": "v"}},
	})
	u, _ := r.Variable("u")
	v, _ := r.Variable("v")
	center := 4
	assert.True(t, r.Pattern().Has(r.Dofs().NodeDof(center, u), r.Dofs().NodeDof(center, v)))
	assert.False(t, r.Pattern().Has(r.Dofs().NodeDof(center, v), r.Dofs().NodeDof(center, u)))
	checkJacobian(t, r, field(r))
}

func TestAssembly_IndependentOfWorkersAndPartitioning(t *testing.T) {
	m := rectangle(t, 5, 4)
	reference := newProblem(t, m, builder.Config{Workers: 1, Strategy: "block"}, []string{"u"}, nonlinearObjects())
	u := field(reference)
	ctx := context.Background()
	wantRes, err := reference.EvaluateResidual(ctx, u)
	require.NoError(t, err)
	wantJac, err := reference.EvaluateJacobian(ctx, u)
	require.NoError(t, err)

	for _, cfg := range []builder.Config{
		{Workers: 4, Strategy: "block"},
		{Workers: 4, Strategy: "round-robin", Partitions: 7},
		{Workers: 3, Strategy: "graph", Partitions: 5},
	} {
		t.Run(cfg.Strategy, func(t *testing.T) {
			r := newProblem(t, m, cfg, []string{"u"}, nonlinearObjects())
			res, err := r.EvaluateResidual(ctx, u)
			require.NoError(t, err)
			jac, err := r.EvaluateJacobian(ctx, u)
			require.NoError(t, err)
			require.True(t, wantJac.Pattern.Equal(jac.Pattern))
			for i := 0; i < res.Len(); i++ {
				assert.InDelta(t, wantRes.At(i), res.At(i), 1e-12)
				for _, j := range jac.Row(i) {
					assert.InDelta(t, wantJac.At(i, j), jac.At(i, j), 1e-12)
				}
			}
		})
	}
}

func TestSetup_IndependentOfObjectOrder(t *testing.T) {
	objects := []spec{
		{"DependentMaterial", "scaled", map[string]interface{}{"prop_name": "diffusivity", "source": "k", "factor": 2.0}},
		{"LinearMaterial", "base", map[string]interface{}{"prop_name": "k", "variable": "u", "k0": 1.0, "k1": 1.0}},
		{"MatDiffusion", "diff", map[string]interface{}{"variable": "u"}},
		{"CoupledForce", "force", map[string]interface{}{"variable": "u", "v": "v"}},
		{"Diffusion", "diff_v", map[string]interface{}{"variable": "v"}},
	}
	reversed := make([]spec, len(objects))
	for i, o := range objects {
		reversed[len(objects)-1-i] = o
	}
	m := rectangle(t, 2, 2)
	a := newProblem(t, m, builder.Config{}, []string{"u", "v"}, objects)
	b := newProblem(t, m, builder.Config{}, []string{"u", "v"}, reversed)

	assert.Equal(t, []string{"base", "scaled"}, a.MaterialOrder(0))
	assert.Equal(t, a.MaterialOrder(0), b.MaterialOrder(0))
	assert.True(t, a.Pattern().Equal(b.Pattern()))

	u := field(a)
	ra, err := a.EvaluateResidual(context.Background(), u)
	require.NoError(t, err)
	rb, err := b.EvaluateResidual(context.Background(), u)
	require.NoError(t, err)
	for i := 0; i < ra.Len(); i++ {
		assert.InDelta(t, ra.At(i), rb.At(i), 1e-12)
	}
}

func TestPattern_OmitsUndeclaredCoupling(t *testing.T) {
	r := newProblem(t, rectangle(t, 2, 1), builder.Config{}, []string{"u", "v"}, []spec{
		{"Diffusion", "diff_u", map[string]interface{}{"variable": "u"}},
		{"Diffusion", "diff_v", map[string]interface{}{"variable": "v"}},
		{"CoupledForce", "force", map[string]interface{}{"variable": "u", "v": "v"}},
	})
	u, _ := r.Variable("u")
	v, _ := r.Variable("v")
	d := r.Dofs()
	for a := range r.Mesh.Nodes {
		for b := range r.Mesh.Nodes {
			assert.False(t, r.Pattern().Has(d.NodeDof(a, v), d.NodeDof(b, u)), "v row %d, u col %d", a, b)
		}
	}
	// nodes 0 and 1 share cell 0
	assert.True(t, r.Pattern().Has(d.NodeDof(0, u), d.NodeDof(1, v)))
	assert.False(t, r.Pattern().Has(d.NodeDof(0, u), d.NodeDof(2, v)), "nodes 0 and 2 share no cell")

	jac, err := r.EvaluateJacobian(context.Background(), field(r))
	require.NoError(t, err)
	assert.Less(t, jac.At(d.NodeDof(0, u), d.NodeDof(0, v)), 0.0)
}

func TestSetup_MaterialCycle(t *testing.T) {
	r := NewRunner(rectangle(t, 1, 1), physics.NewRegistry(), builder.Config{}, nil)
	_, err := r.AddVariable("u", fem.Lagrange)
	require.NoError(t, err)
	require.NoError(t, r.AddObject("DependentMaterial", "b", map[string]interface{}{"prop_name": "q", "source": "p"}))
	require.NoError(t, r.AddObject("DependentMaterial", "a", map[string]interface{}{"prop_name": "p", "source": "q"}))

	var cycle *CycleError
	require.True(t, errors.As(r.Setup(), &cycle))
	assert.Equal(t, []string{"a", "b"}, cycle.Materials)
	assert.Equal(t, mesh.SubdomainID(0), cycle.Block)
}

func TestSetup_SelfDependency(t *testing.T) {
	r := NewRunner(rectangle(t, 1, 1), physics.NewRegistry(), builder.Config{}, nil)
	_, err := r.AddVariable("u", fem.Lagrange)
	require.NoError(t, err)
	require.NoError(t, r.AddObject("DependentMaterial", "loop", map[string]interface{}{"prop_name": "p", "source": "p"}))

	var cycle *CycleError
	require.True(t, errors.As(r.Setup(), &cycle))
	assert.Contains(t, cycle.Materials, "loop")
}

func TestSetup_Errors(t *testing.T) {
	m := rectangle(t, 1, 1)
	r := NewRunner(m, physics.NewRegistry(), builder.Config{}, nil)
	assert.Error(t, r.Setup(), "no variables")
	assert.Error(t, r.AddObject("NoSuchKernel", "x", nil))

	_, err := r.AddVariable("u", fem.Lagrange)
	require.NoError(t, err)
	_, err = r.AddVariable("u", fem.Lagrange)
	assert.Error(t, err)
	require.NoError(t, r.AddObject("Diffusion", "diff", map[string]interface{}{"variable": "u"}))
	assert.Error(t, r.AddObject("Diffusion", "diff", map[string]interface{}{"variable": "u"}))
	require.NoError(t, r.AddObject("CoupledForce", "force", map[string]interface{}{"variable": "u", "v": "missing"}))
	assert.Error(t, r.Setup())

	_, err = r.EvaluateResidual(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotSetUp)
	_, err = r.EvaluateJacobian(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNotSetUp)
	_, err = r.Postprocess(context.Background())
	assert.ErrorIs(t, err, ErrNotSetUp)
	assert.ErrorIs(t, r.AcceptTimestep(), ErrNotSetUp)
}

func TestSetup_BlockRestrictedVariable(t *testing.T) {
	m, err := mesh.NewLine(4, 0, 4, element.Edge2)
	require.NoError(t, err)
	m.AssignBlocks(func(c r3.Vec) mesh.SubdomainID {
		if c.X < 2 {
			return 0
		}
		return 1
	})
	r := NewRunner(m, physics.NewRegistry(), builder.Config{}, nil)
	_, err = r.AddVariable("u", fem.Lagrange)
	require.NoError(t, err)
	_, err = r.AddVariable("w", fem.Lagrange, "1")
	require.NoError(t, err)
	require.NoError(t, r.AddObject("Diffusion", "diff_w", map[string]interface{}{"variable": "w"}))
	require.NoError(t, r.AddObject("CoupledForce", "force", map[string]interface{}{"variable": "u", "v": "w"}))

	var unresolved *fem.UnresolvedCouplingError
	require.True(t, errors.As(r.Setup(), &unresolved), "u runs on block 0 where w is absent")
	assert.Equal(t, "w", unresolved.Variable)
}

func TestEvaluate_NonFiniteContribution(t *testing.T) {
	r := newProblem(t, rectangle(t, 2, 1), builder.Config{}, []string{"u"}, []spec{
		{"BodyForce", "force", map[string]interface{}{"variable": "u", "value": math.NaN()}},
	})
	_, err := r.EvaluateResidual(context.Background(), nil)
	var evalErr *EvaluationError
	require.True(t, errors.As(err, &evalErr))
	assert.Equal(t, "force", evalErr.Object)
	assert.Equal(t, 0, evalErr.Qp)
	assert.ErrorIs(t, err, ErrNonFinite)
}

func TestEvaluate_Cancelled(t *testing.T) {
	r := newProblem(t, rectangle(t, 2, 2), builder.Config{Workers: 2}, []string{"u"}, nonlinearObjects())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := r.EvaluateResidual(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, r.Workers, r.pool.Available(), "ids are returned after an aborted pass")
}

func TestEvaluate_WrongLength(t *testing.T) {
	r := newProblem(t, rectangle(t, 1, 1), builder.Config{}, []string{"u"}, nonlinearObjects())
	_, err := r.EvaluateResidual(context.Background(), []float64{1})
	assert.Error(t, err)
	assert.Error(t, r.SetInitialCondition([]float64{1, 2}))
}

func TestTimestep_AcceptAndReject(t *testing.T) {
	r := newProblem(t, rectangle(t, 1, 1), builder.Config{}, []string{"u"}, []spec{
		{"TimeDerivative", "dudt", map[string]interface{}{"variable": "u"}},
		{"Diffusion", "diff", map[string]interface{}{"variable": "u"}},
	})
	r.SetTimeIntegrator(fem.ImplicitEuler{})
	require.NoError(t, r.SetInitialCondition([]float64{1, 1, 1, 1}))
	r.SetTime(0.1, 0.1)
	assert.Equal(t, 0.1, r.Time())
	assert.Equal(t, 0.1, r.Dt())

	next := []float64{2, 2, 2, 2}
	_, err := r.EvaluateResidual(context.Background(), next)
	require.NoError(t, err)
	r.RejectTimestep()
	assert.Equal(t, []float64{1, 1, 1, 1}, r.Solution().Current)

	_, err = r.EvaluateResidual(context.Background(), next)
	require.NoError(t, err)
	require.NoError(t, r.AcceptTimestep())
	assert.Equal(t, next, r.Solution().Old)
	assert.Error(t, r.AcceptTimestep())
}
