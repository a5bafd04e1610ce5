package params

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bodyForceSet() *Set {
	return NewSet(
		Required("value", KindFloat).Doc("source strength"),
		Optional("order", KindInt).Default(2),
		Optional("enabled", KindBool).Default(true),
		Optional("block", KindStrings),
		Optional("factors", KindFloats).Range(0, 10),
		Coupled("coupled"),
	)
}

func TestSet_Validate(t *testing.T) {
	s := bodyForceSet()

	t.Run("CoercesAndDefaults", func(t *testing.T) {
		p, err := s.Validate("force", map[string]interface{}{
			"value":   5,
			"block":   "fuel",
			"factors": []interface{}{1, 2.5},
			"coupled": []interface{}{"v", "w"},
		})
		require.NoError(t, err)
		assert.Equal(t, "force", p.Object())
		assert.Equal(t, 5.0, p.Float("value"))
		assert.Equal(t, 2, p.Int("order"))
		assert.True(t, p.Bool("enabled"))
		assert.Equal(t, []string{"fuel"}, p.Strings("block"))
		assert.Equal(t, []float64{1, 2.5}, p.Floats("factors"))
		assert.Equal(t, map[string][]string{"coupled": {"v", "w"}}, p.CoupledNames())
	})

	t.Run("Missing", func(t *testing.T) {
		_, err := s.Validate("force", nil)
		var missing *MissingParameterError
		require.True(t, errors.As(err, &missing))
		assert.Equal(t, "value", missing.Param)
		assert.Contains(t, err.Error(), "force")
	})

	t.Run("Unknown", func(t *testing.T) {
		_, err := s.Validate("force", map[string]interface{}{"value": 1.0, "valu": 2.0})
		var unknown *UnknownParameterError
		require.True(t, errors.As(err, &unknown))
		assert.Equal(t, "valu", unknown.Param)
	})

	t.Run("WrongType", func(t *testing.T) {
		_, err := s.Validate("force", map[string]interface{}{"value": "five"})
		var typeErr *TypeError
		require.True(t, errors.As(err, &typeErr))
		assert.Equal(t, KindFloat, typeErr.Want)

		_, err = s.Validate("force", map[string]interface{}{"value": 1.0, "order": 2.5})
		assert.True(t, errors.As(err, &typeErr))
	})

	t.Run("Range", func(t *testing.T) {
		_, err := s.Validate("force", map[string]interface{}{"value": 1.0, "factors": []float64{3, 11}})
		var rangeErr *RangeError
		require.True(t, errors.As(err, &rangeErr))
		assert.Equal(t, 11.0, rangeErr.Got)
	})

	t.Run("OptionalListOmitted", func(t *testing.T) {
		p, err := s.Validate("force", map[string]interface{}{"value": 1.0})
		require.NoError(t, err)
		assert.Nil(t, p.Strings("block"))
		assert.False(t, p.Has("factors"))
		assert.Empty(t, p.CoupledNames())
	})
}

func TestGet_Generic(t *testing.T) {
	p, err := bodyForceSet().Validate("force", map[string]interface{}{"value": 3.0})
	require.NoError(t, err)

	v, err := Get[float64](p, "value")
	require.NoError(t, err)
	assert.Equal(t, 3.0, v)

	_, err = Get[string](p, "value")
	var typeErr *TypeError
	assert.True(t, errors.As(err, &typeErr))

	_, err = Get[float64](p, "nope")
	var unknown *UnknownParameterError
	assert.True(t, errors.As(err, &unknown))

	assert.Panics(t, func() { p.String("value") })
}

func TestSet_Merge(t *testing.T) {
	base := NewSet(Optional("block", KindStrings), Required("variable", KindString))
	merged := base.Merge(NewSet(Required("value", KindFloat), Optional("variable", KindString)))
	specs := merged.Specs()
	require.Len(t, specs, 3)
	assert.Equal(t, "variable", specs[1].Name)
	assert.False(t, specs[1].Required)
	assert.Equal(t, "value", specs[2].Name)
}
