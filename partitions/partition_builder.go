package partitions

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/FEKernel/element"
	"github.com/notargets/FEKernel/mesh"
)

// PartitionBuilder constructs partitions from mesh connectivity
type PartitionBuilder struct {
	// Mesh connectivity
	Mesh *MeshConnectivity

	// Partitioning parameters: NumPartitions wins when set, otherwise the
	// count follows from TargetPartitionSize
	NumPartitions       int
	TargetPartitionSize int
	Strategy            PartitionStrategy
}

// MeshConnectivity provides the topology of the cell set being partitioned
type MeshConnectivity struct {
	Elements     []int          // global cell ids
	ElementTypes []element.Type // per entry of Elements
	NumCells     int            // cells in the whole mesh

	// Neighbors is indexed by global cell id
	Neighbors [][]int
}

// NewMeshConnectivity collects the connectivity of cells in m
func NewMeshConnectivity(m *mesh.Mesh, cells []int) *MeshConnectivity {
	mc := &MeshConnectivity{
		Elements:     append([]int(nil), cells...),
		ElementTypes: make([]element.Type, len(cells)),
		NumCells:     m.NumCells(),
		Neighbors:    m.CellNeighbors(),
	}
	for i, c := range cells {
		mc.ElementTypes[i] = m.Cells[c].Type
	}
	return mc
}

// PartitionStrategy defines how elements are grouped
type PartitionStrategy int

const (
	// Simple strategies
	BlockPartition PartitionStrategy = iota // Consecutive elements
	RoundRobin                              // Distribute cyclically

	// GraphPartition grows each partition breadth first over node-sharing
	// neighbors so partitions stay compact
	GraphPartition
)

func (s PartitionStrategy) String() string {
	switch s {
	case BlockPartition:
		return "block"
	case RoundRobin:
		return "round-robin"
	case GraphPartition:
		return "graph"
	}
	return fmt.Sprintf("PartitionStrategy(%d)", int(s))
}

func ParseStrategy(name string) (PartitionStrategy, error) {
	switch name {
	case "", "block":
		return BlockPartition, nil
	case "round-robin", "roundrobin":
		return RoundRobin, nil
	case "graph":
		return GraphPartition, nil
	}
	return 0, fmt.Errorf("unknown partition strategy %q", name)
}

// BuildPartitions creates a partition layout from mesh connectivity
func (pb *PartitionBuilder) BuildPartitions() (*PartitionLayout, error) {
	numPartitions := pb.calculateNumPartitions()

	assignment := pb.partitionElements(numPartitions)

	partitions := pb.createPartitions(assignment, numPartitions)

	eToP := make([]int, pb.Mesh.NumCells)
	for i := range eToP {
		eToP[i] = -1
	}
	for i, p := range assignment {
		eToP[pb.Mesh.Elements[i]] = p
	}

	layout := &PartitionLayout{
		Partitions:    partitions,
		KpartMax:      calculateKpartMax(partitions),
		TotalElements: len(pb.Mesh.Elements),
		NumPartitions: numPartitions,
		EToP:          eToP,
	}

	if err := layout.ValidateLayout(); err != nil {
		return nil, fmt.Errorf("invalid partition layout: %w", err)
	}

	return layout, nil
}

// calculateNumPartitions determines the partition count; there are never
// more partitions than elements, and always at least one
func (pb *PartitionBuilder) calculateNumPartitions() int {
	n := len(pb.Mesh.Elements)
	numPartitions := pb.NumPartitions
	if numPartitions <= 0 && pb.TargetPartitionSize > 0 {
		numPartitions = int(math.Ceil(float64(n) / float64(pb.TargetPartitionSize)))
	}
	if numPartitions > n {
		numPartitions = n
	}
	if numPartitions < 1 {
		numPartitions = 1
	}
	return numPartitions
}

// partitionElements assigns each entry of Mesh.Elements to a partition
func (pb *PartitionBuilder) partitionElements(numPartitions int) []int {
	n := len(pb.Mesh.Elements)
	assignment := make([]int, n)

	switch pb.Strategy {
	case RoundRobin:
		for i := 0; i < n; i++ {
			assignment[i] = i % numPartitions
		}

	case GraphPartition:
		return pb.growPartitions(numPartitions)

	default:
		elementsPerPartition := int(math.Ceil(float64(n) / float64(numPartitions)))
		if elementsPerPartition < 1 {
			elementsPerPartition = 1
		}
		for i := 0; i < n; i++ {
			assignment[i] = i / elementsPerPartition
			if assignment[i] >= numPartitions {
				assignment[i] = numPartitions - 1
			}
		}
	}

	return assignment
}

// growPartitions fills partitions one at a time by breadth first search from
// the lowest unassigned element, stopping each at its share of elements
func (pb *PartitionBuilder) growPartitions(numPartitions int) []int {
	n := len(pb.Mesh.Elements)
	position := make(map[int]int, n) // global cell id -> entry
	for i, c := range pb.Mesh.Elements {
		position[c] = i
	}
	assignment := make([]int, n)
	for i := range assignment {
		assignment[i] = -1
	}

	next, assigned := 0, 0
	for p := 0; p < numPartitions; p++ {
		quota := (n - assigned) / (numPartitions - p)
		count := 0
		var queue []int
		for count < quota {
			if len(queue) == 0 {
				for next < n && assignment[next] >= 0 {
					next++
				}
				if next == n {
					break
				}
				assignment[next] = p
				count++
				queue = append(queue, next)
				continue
			}
			cur := queue[0]
			queue = queue[1:]
			for _, nb := range pb.Mesh.Neighbors[pb.Mesh.Elements[cur]] {
				i, ok := position[nb]
				if !ok || assignment[i] >= 0 || count >= quota {
					continue
				}
				assignment[i] = p
				count++
				queue = append(queue, i)
			}
		}
		assigned += count
	}
	return assignment
}

// createPartitions builds partition structures from element assignments
func (pb *PartitionBuilder) createPartitions(assignment []int, numPartitions int) []Partition {
	partitions := make([]Partition, numPartitions)

	for i := range partitions {
		partitions[i] = Partition{
			ID:           i,
			Elements:     make([]int, 0),
			ElementTypes: make([]element.Type, 0),
		}
	}

	for i, part := range assignment {
		partitions[part].Elements = append(partitions[part].Elements, pb.Mesh.Elements[i])
		if pb.Mesh.ElementTypes != nil {
			partitions[part].ElementTypes = append(partitions[part].ElementTypes,
				pb.Mesh.ElementTypes[i])
		}
		partitions[part].NumElements++
	}

	for i := range partitions {
		partitions[i].TypeGroups = createElementGroups(&partitions[i])
	}

	return partitions
}

// createElementGroups organizes elements by type within a partition
func createElementGroups(p *Partition) []ElementGroup {
	if len(p.ElementTypes) == 0 {
		return nil
	}

	typeCounts := make(map[element.Type][]int)
	for i, elemType := range p.ElementTypes {
		typeCounts[elemType] = append(typeCounts[elemType], i)
	}

	groups := make([]ElementGroup, 0, len(typeCounts))
	for elemType, indices := range typeCounts {
		groups = append(groups, ElementGroup{
			ElementType: elemType,
			Count:       len(indices),
			Np:          element.MustGet(elemType).GetProperties().Np,
			LocalIDs:    indices,
		})
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].ElementType < groups[j].ElementType })

	return groups
}

// calculateKpartMax finds maximum elements across all partitions
func calculateKpartMax(partitions []Partition) int {
	kpartMax := 0
	for _, p := range partitions {
		if p.NumElements > kpartMax {
			kpartMax = p.NumElements
		}
	}
	return kpartMax
}
