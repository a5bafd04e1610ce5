package runner

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGlobalVector_ConcurrentAdd(t *testing.T) {
	g := NewGlobalVector(3)
	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				g.Add(i%3, 0.5)
			}
		}()
	}
	wg.Wait()
	total := 0.0
	for _, v := range g.Values() {
		total += v
	}
	assert.Equal(t, 4000.0, total)
	g.Set(0, -1)
	assert.Equal(t, -1.0, g.VecDense().AtVec(0))
}

func TestPattern_Build(t *testing.T) {
	pb := newPatternBuilder(4)
	pb.add([]int{0, 1}, []int{1, 3})
	pb.add([]int{1}, []int{3, 0})
	p := pb.build()

	r, c := p.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 4, c)
	assert.Equal(t, []int{0, 1, 3}, p.Row(0))
	assert.Equal(t, []int{0, 1, 3}, p.Row(1))
	assert.Equal(t, []int{2}, p.Row(2), "diagonal is always present")
	assert.Equal(t, 8, p.NNZ())
	assert.True(t, p.Has(1, 0))
	assert.False(t, p.Has(2, 0))

	other := newPatternBuilder(4)
	other.add([]int{1}, []int{0, 3})
	other.add([]int{0}, []int{3, 1})
	assert.True(t, p.Equal(other.build()))
	assert.False(t, p.Equal(newPatternBuilder(4).build()))
}

func TestSparseMatrix(t *testing.T) {
	pb := newPatternBuilder(3)
	pb.add([]int{0}, []int{2})
	s := NewSparseMatrix(pb.build())

	s.Add(0, 2, 1.5)
	s.Add(0, 2, 1.5)
	s.Set(1, 1, 4)
	assert.Equal(t, 3.0, s.At(0, 2))
	assert.Equal(t, 0.0, s.At(2, 0))
	assert.Panics(t, func() { s.Add(2, 0, 1) })
	assert.Panics(t, func() { s.Set(1, 0, 1) })

	csr := s.ToCSR()
	r, c := csr.Dims()
	require.Equal(t, 3, r)
	require.Equal(t, 3, c)
	assert.Equal(t, 3.0, csr.At(0, 2))
	assert.Equal(t, 4.0, csr.At(1, 1))
	assert.Equal(t, 4.0, s.Dense().At(1, 1))

	s.ZeroRow(0)
	assert.Equal(t, 0.0, s.At(0, 2))
	assert.Equal(t, 4.0, s.At(1, 1))
}

func TestIDPool(t *testing.T) {
	assert.Panics(t, func() { NewIDPool(0) })

	p := NewIDPool(2)
	assert.Equal(t, 2, p.Size())
	a := p.Acquire()
	b := p.Acquire()
	assert.NotEqual(t, a, b)
	assert.Equal(t, 0, p.Available())
	assert.Panics(t, func() { p.Acquire() }, "more workers than ids")

	p.Release(a)
	assert.Equal(t, 1, p.Available())
	assert.Panics(t, func() { p.Release(5) })
	p.Release(b)
	assert.Panics(t, func() { p.Release(a) }, "double release")
}

func TestErrors(t *testing.T) {
	err := &EvaluationError{Object: "bc", Element: 7, Qp: -1, Err: ErrNonFinite}
	assert.Contains(t, err.Error(), "node 7")
	assert.ErrorIs(t, err, ErrNonFinite)

	cycle := &CycleError{Block: 2, Materials: []string{"a", "b"}}
	assert.Contains(t, cycle.Error(), "a -> b")
}
