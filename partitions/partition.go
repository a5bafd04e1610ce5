package partitions

import (
	"fmt"

	"github.com/notargets/FEKernel/element"
)

// Partition represents a collection of elements that one assembly worker
// visits as a unit
type Partition struct {
	// Unique identifier for this partition
	ID int

	// Element membership
	Elements    []int // Global cell ids in this partition, in visiting order
	NumElements int

	// Mixed element support
	ElementTypes []element.Type // Type of each element
	TypeGroups   []ElementGroup // Grouped by element type
}

// ElementGroup represents elements of the same type within a partition
type ElementGroup struct {
	ElementType element.Type
	Count       int
	Np          int   // Nodes per element for this type
	LocalIDs    []int // Indices within the partition
}

// PartitionLayout manages the decomposition of a cell set
type PartitionLayout struct {
	// All partitions
	Partitions []Partition

	// Global sizing information
	KpartMax      int // max(NumElements) across all partitions
	TotalElements int // Sum of all elements across partitions
	NumPartitions int

	// EToP maps a global cell id to its partition, -1 for cells outside the set
	EToP []int
}

// PartitionMetrics summarizes load balance and coupling between partitions
type PartitionMetrics struct {
	ElementCounts map[element.Type]int
	Imbalance     float64 // KpartMax / mean partition size
	CutEdges      int     // neighbor pairs split across partitions
	MinElements   int
	MaxElements   int
}

// GetPartition returns the partition containing element k
func (pl *PartitionLayout) GetPartition(elementID int) int {
	if elementID < 0 || elementID >= len(pl.EToP) {
		return -1
	}
	return pl.EToP[elementID]
}

// ValidateLayout checks partition consistency: every element appears in
// exactly one partition and KpartMax matches
func (pl *PartitionLayout) ValidateLayout() error {
	actualMax, total := 0, 0
	for _, p := range pl.Partitions {
		if p.NumElements != len(p.Elements) {
			return fmt.Errorf("partition %d: NumElements %d != len(Elements) %d",
				p.ID, p.NumElements, len(p.Elements))
		}
		if p.NumElements > actualMax {
			actualMax = p.NumElements
		}
		total += p.NumElements
		for _, e := range p.Elements {
			if pl.GetPartition(e) != p.ID {
				return fmt.Errorf("partition %d: element %d mapped to partition %d",
					p.ID, e, pl.GetPartition(e))
			}
		}
	}
	if actualMax != pl.KpartMax {
		return fmt.Errorf("computed KpartMax %d != stored KpartMax %d",
			actualMax, pl.KpartMax)
	}
	if total != pl.TotalElements {
		return fmt.Errorf("partitions hold %d elements, layout has %d", total, pl.TotalElements)
	}
	return nil
}

// Statistics computes load and cut metrics; neighbors is indexed by global
// cell id
func (pl *PartitionLayout) Statistics(neighbors [][]int) PartitionMetrics {
	m := PartitionMetrics{ElementCounts: make(map[element.Type]int)}
	for i, p := range pl.Partitions {
		for _, t := range p.ElementTypes {
			m.ElementCounts[t]++
		}
		if i == 0 || p.NumElements < m.MinElements {
			m.MinElements = p.NumElements
		}
		if p.NumElements > m.MaxElements {
			m.MaxElements = p.NumElements
		}
		for _, e := range p.Elements {
			if e >= len(neighbors) {
				continue
			}
			for _, n := range neighbors[e] {
				if n > e && pl.GetPartition(n) >= 0 && pl.GetPartition(n) != p.ID {
					m.CutEdges++
				}
			}
		}
	}
	if pl.TotalElements > 0 && pl.NumPartitions > 0 {
		mean := float64(pl.TotalElements) / float64(pl.NumPartitions)
		m.Imbalance = float64(pl.KpartMax) / mean
	}
	return m
}
