package fem

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notargets/FEKernel/element"
	"github.com/notargets/FEKernel/material"
	"github.com/notargets/FEKernel/mesh"
	"github.com/notargets/FEKernel/params"
)

type scaledSource struct {
	*ObjectBase
	k    *material.ReadHandle[float64]
	with *Variable
}

func (s *scaledSource) ComputeQpResidual(q *Qp) float64 {
	return -s.k.At(q) * q.Value(s.with) * q.Test()
}

type onlyName struct{ name string }

func (o onlyName) Name() string { return o.name }

func testEnv(t *testing.T) Env {
	t.Helper()
	m, err := mesh.NewRectangle(2, 1, 0, 2, 0, 1, element.Quad4)
	require.NoError(t, err)
	return Env{
		Mesh:  m,
		Store: material.NewStore(m.Blocks()),
		Variables: map[string]*Variable{
			"u": {Name: "u", Index: 0},
			"v": {Name: "v", Index: 1},
			"a": {Name: "a", Index: 0, Aux: true, Family: Constant},
		},
	}
}

func testRegistry() *Registry {
	r := NewRegistry()
	r.MustRegister(Entry{
		Type:   "ScaledSource",
		Kind:   KindKernel,
		Params: params.NewSet(params.Coupled("with").MustCouple()),
		New: func(s *Setup) (Object, error) {
			b, err := s.Base()
			if err != nil {
				return nil, err
			}
			with, err := s.CoupledOne("with")
			if err != nil {
				return nil, err
			}
			k, err := GetMaterialProperty[float64](s, "k")
			if err != nil {
				return nil, err
			}
			return &scaledSource{ObjectBase: b, k: k, with: with}, nil
		},
	})
	r.MustRegister(Entry{
		Type: "Nothing",
		Kind: KindMaterial,
		New:  func(s *Setup) (Object, error) { return onlyName{s.Name()}, nil },
	})
	return r
}

func TestRegistry_Build(t *testing.T) {
	r := testRegistry()
	assert.Equal(t, []string{"Nothing", "ScaledSource"}, r.Types())

	t.Run("Resolves", func(t *testing.T) {
		env := testEnv(t)
		obj, e, err := r.Build("ScaledSource", "src", map[string]interface{}{
			"variable": "u", "with": "v",
		}, env)
		require.NoError(t, err)
		assert.Equal(t, KindKernel, e.Kind)
		src := obj.(*scaledSource)
		assert.Equal(t, "src", src.Name())
		assert.Equal(t, env.Variables["u"], src.Variable())
		assert.Equal(t, []*Variable{env.Variables["v"]}, src.CoupledVariables())
		assert.Empty(t, src.Blocks())
		assert.Len(t, env.Store.Consumers("k"), 1)
	})

	t.Run("UnresolvedCoupling", func(t *testing.T) {
		_, _, err := r.Build("ScaledSource", "src", map[string]interface{}{
			"variable": "u", "with": "w",
		}, testEnv(t))
		var unresolved *UnresolvedCouplingError
		require.True(t, errors.As(err, &unresolved))
		assert.Equal(t, "w", unresolved.Variable)
		assert.Contains(t, err.Error(), "src")
	})

	t.Run("AuxVariableRejected", func(t *testing.T) {
		_, _, err := r.Build("ScaledSource", "src", map[string]interface{}{
			"variable": "a", "with": "v",
		}, testEnv(t))
		var unresolved *UnresolvedCouplingError
		assert.True(t, errors.As(err, &unresolved))
	})

	t.Run("MissingParameter", func(t *testing.T) {
		_, _, err := r.Build("ScaledSource", "src", map[string]interface{}{"variable": "u"}, testEnv(t))
		var missing *params.MissingParameterError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "with", missing.Param)
	})

	t.Run("UnknownBlock", func(t *testing.T) {
		_, _, err := r.Build("ScaledSource", "src", map[string]interface{}{
			"variable": "u", "with": "v", "block": "9",
		}, testEnv(t))
		assert.Error(t, err)
	})

	t.Run("MissingCapability", func(t *testing.T) {
		_, _, err := r.Build("Nothing", "mat", nil, testEnv(t))
		var capErr *CapabilityError
		require.True(t, errors.As(err, &capErr))
		assert.Equal(t, "MaterialComputer", capErr.Missing)
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, _, err := r.Build("Missing", "x", nil, testEnv(t))
		assert.Error(t, err)
	})

	t.Run("DuplicateRegistration", func(t *testing.T) {
		err := r.Register(Entry{Type: "Nothing", Kind: KindMaterial, New: func(*Setup) (Object, error) { return nil, nil }})
		assert.Error(t, err)
	})
}

func TestSetup_BoundaryObjectsCannotReadMaterials(t *testing.T) {
	env := testEnv(t)
	p, err := BaseParams(KindIntegratedBC).Validate("bc", map[string]interface{}{
		"variable": "u", "boundary": "left",
	})
	require.NoError(t, err)
	s := NewSetup("bc", KindIntegratedBC, p, env)
	b, err := s.Base()
	require.NoError(t, err)
	assert.Equal(t, []mesh.BoundaryID{mesh.Left}, b.Boundaries())
	_, err = GetMaterialProperty[float64](s, "k")
	assert.Error(t, err)
}
