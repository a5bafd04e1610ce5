package runner

import (
	"fmt"
	"math"
	"sort"
	"sync/atomic"

	"github.com/james-bowman/sparse"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// atomicAdd accumulates v into the float64 stored as bits in *addr
func atomicAdd(addr *uint64, v float64) {
	for {
		old := atomic.LoadUint64(addr)
		sum := math.Float64bits(math.Float64frombits(old) + v)
		if atomic.CompareAndSwapUint64(addr, old, sum) {
			return
		}
	}
}

// GlobalVector is a residual vector workers scatter into concurrently. The
// summation order of concurrent adds is not fixed, so results agree to
// rounding only.
type GlobalVector struct {
	bits []uint64
}

func NewGlobalVector(n int) *GlobalVector {
	return &GlobalVector{bits: make([]uint64, n)}
}

func (g *GlobalVector) Len() int { return len(g.bits) }

func (g *GlobalVector) Add(i int, v float64) { atomicAdd(&g.bits[i], v) }

func (g *GlobalVector) Set(i int, v float64) {
	atomic.StoreUint64(&g.bits[i], math.Float64bits(v))
}

func (g *GlobalVector) At(i int) float64 {
	return math.Float64frombits(atomic.LoadUint64(&g.bits[i]))
}

// Values copies the vector out
func (g *GlobalVector) Values() []float64 {
	out := make([]float64, len(g.bits))
	for i := range out {
		out[i] = g.At(i)
	}
	return out
}

// VecDense copies the vector into a gonum vector
func (g *GlobalVector) VecDense() *mat.VecDense {
	return mat.NewVecDense(len(g.bits), g.Values())
}

// Norm is the Euclidean norm
func (g *GlobalVector) Norm() float64 {
	if len(g.bits) == 0 {
		return 0
	}
	return floats.Norm(g.Values(), 2)
}

// Pattern is the fixed compressed row structure of the Jacobian. Columns of
// each row are sorted.
type Pattern struct {
	n      int
	rowPtr []int
	cols   []int
}

// patternBuilder collects (row, col) pairs before compression
type patternBuilder struct {
	rows []map[int]struct{}
}

func newPatternBuilder(n int) *patternBuilder {
	pb := &patternBuilder{rows: make([]map[int]struct{}, n)}
	for i := range pb.rows {
		pb.rows[i] = map[int]struct{}{i: {}}
	}
	return pb
}

func (pb *patternBuilder) add(rows, cols []int) {
	for _, i := range rows {
		for _, j := range cols {
			pb.rows[i][j] = struct{}{}
		}
	}
}

func (pb *patternBuilder) build() *Pattern {
	p := &Pattern{n: len(pb.rows), rowPtr: make([]int, len(pb.rows)+1)}
	for i, row := range pb.rows {
		start := len(p.cols)
		for j := range row {
			p.cols = append(p.cols, j)
		}
		sort.Ints(p.cols[start:])
		p.rowPtr[i+1] = len(p.cols)
	}
	return p
}

func (p *Pattern) Dims() (r, c int) { return p.n, p.n }

func (p *Pattern) NNZ() int { return len(p.cols) }

// find returns the storage position of (i, j), -1 when it is not in the pattern
func (p *Pattern) find(i, j int) int {
	row := p.cols[p.rowPtr[i]:p.rowPtr[i+1]]
	k := sort.SearchInts(row, j)
	if k < len(row) && row[k] == j {
		return p.rowPtr[i] + k
	}
	return -1
}

// Has reports whether (i, j) is a structural nonzero
func (p *Pattern) Has(i, j int) bool { return p.find(i, j) >= 0 }

// Row returns the column indices of row i
func (p *Pattern) Row(i int) []int {
	return append([]int(nil), p.cols[p.rowPtr[i]:p.rowPtr[i+1]]...)
}

// Equal reports whether two patterns have identical structure
func (p *Pattern) Equal(o *Pattern) bool {
	if p.n != o.n || len(p.cols) != len(o.cols) {
		return false
	}
	for i := range p.rowPtr {
		if p.rowPtr[i] != o.rowPtr[i] {
			return false
		}
	}
	for i := range p.cols {
		if p.cols[i] != o.cols[i] {
			return false
		}
	}
	return true
}

// SparseMatrix is a Jacobian with a fixed pattern that workers scatter into
// concurrently
type SparseMatrix struct {
	*Pattern
	bits []uint64
}

func NewSparseMatrix(p *Pattern) *SparseMatrix {
	return &SparseMatrix{Pattern: p, bits: make([]uint64, len(p.cols))}
}

// Add accumulates v at (i, j). Entries outside the pattern are an assembly
// defect.
func (s *SparseMatrix) Add(i, j int, v float64) {
	k := s.find(i, j)
	if k < 0 {
		panic(fmt.Sprintf("jacobian entry (%d,%d) is not in the sparsity pattern", i, j))
	}
	atomicAdd(&s.bits[k], v)
}

func (s *SparseMatrix) Set(i, j int, v float64) {
	k := s.find(i, j)
	if k < 0 {
		panic(fmt.Sprintf("jacobian entry (%d,%d) is not in the sparsity pattern", i, j))
	}
	atomic.StoreUint64(&s.bits[k], math.Float64bits(v))
}

// At returns the entry at (i, j), zero outside the pattern
func (s *SparseMatrix) At(i, j int) float64 {
	k := s.find(i, j)
	if k < 0 {
		return 0
	}
	return math.Float64frombits(atomic.LoadUint64(&s.bits[k]))
}

// ZeroRow clears the stored entries of row i
func (s *SparseMatrix) ZeroRow(i int) {
	for k := s.rowPtr[i]; k < s.rowPtr[i+1]; k++ {
		atomic.StoreUint64(&s.bits[k], 0)
	}
}

// ToCSR exports the matrix with its full pattern, explicit zeros included
func (s *SparseMatrix) ToCSR() *sparse.CSR {
	data := make([]float64, len(s.bits))
	for k := range data {
		data[k] = math.Float64frombits(atomic.LoadUint64(&s.bits[k]))
	}
	ia := append([]int(nil), s.rowPtr...)
	ja := append([]int(nil), s.cols...)
	return sparse.NewCSR(s.n, s.n, ia, ja, data)
}

// Dense copies the matrix into a gonum dense matrix
func (s *SparseMatrix) Dense() *mat.Dense {
	d := mat.NewDense(max(s.n, 1), max(s.n, 1), nil)
	for i := 0; i < s.n; i++ {
		for k := s.rowPtr[i]; k < s.rowPtr[i+1]; k++ {
			d.Set(i, s.cols[k], math.Float64frombits(atomic.LoadUint64(&s.bits[k])))
		}
	}
	return d
}
