// Package builder turns engine configuration into the partition layout the
// runner's workers execute over.
package builder

import (
	"fmt"

	"github.com/caarlos0/env/v11"

	"github.com/notargets/FEKernel/mesh"
	"github.com/notargets/FEKernel/partitions"
)

// MaxKpart bounds the elements one partition may hold. Layouts above it are
// almost always caused by a partition count far below the worker count.
const MaxKpart = 1 << 20

// Config holds configuration for creating a Builder. Fields load from FEK_*
// environment variables and from the engine section of a problem file.
type Config struct {
	Workers         int    `env:"FEK_WORKERS" envDefault:"1" yaml:"workers"`
	Partitions      int    `env:"FEK_PARTITIONS" envDefault:"0" yaml:"partitions"` // 0 means one per worker
	Strategy        string `env:"FEK_PARTITION_STRATEGY" envDefault:"block" yaml:"strategy"`
	MaterialCache   bool   `env:"FEK_MATERIAL_CACHE" envDefault:"true" yaml:"material_cache"`
	QuadratureOrder int    `env:"FEK_QUADRATURE_ORDER" envDefault:"0" yaml:"quadrature_order"`
	LogLevel        string `env:"FEK_LOG_LEVEL" envDefault:"info" yaml:"log_level"`
}

// LoadConfig reads a Config from the environment
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse engine config: %w", err)
	}
	return cfg, nil
}

// Validate reports the first invalid field
func (c Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("workers must be non-negative, got %d", c.Workers)
	}
	if c.Partitions < 0 {
		return fmt.Errorf("partitions must be non-negative, got %d", c.Partitions)
	}
	if c.QuadratureOrder < 0 {
		return fmt.Errorf("quadrature_order must be non-negative, got %d", c.QuadratureOrder)
	}
	if _, err := partitions.ParseStrategy(c.Strategy); err != nil {
		return err
	}
	return nil
}

// Builder holds the validated configuration and, after Partition, the
// partition sizes
type Builder struct {
	Config
	Strategy partitions.PartitionStrategy

	// Partition configuration
	NumPartitions int
	K             []int
	KpartMax      int // Maximum K value across all partitions
}

// NewBuilder creates a new Builder instance. An invalid configuration is a
// programming error; callers holding user input run Validate first.
func NewBuilder(cfg Config) *Builder {
	if err := cfg.Validate(); err != nil {
		panic(err)
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	strategy, _ := partitions.ParseStrategy(cfg.Strategy)
	return &Builder{Config: cfg, Strategy: strategy}
}

// Partition splits cells of m into the configured number of partitions and
// records their sizes
func (kb *Builder) Partition(m *mesh.Mesh, cells []int) (*partitions.PartitionLayout, error) {
	n := kb.Partitions
	if n == 0 {
		n = kb.Workers
	}
	pb := &partitions.PartitionBuilder{
		Mesh:          partitions.NewMeshConnectivity(m, cells),
		NumPartitions: n,
		Strategy:      kb.Strategy,
	}
	layout, err := pb.BuildPartitions()
	if err != nil {
		return nil, err
	}
	if layout.KpartMax > MaxKpart {
		return nil, fmt.Errorf("KpartMax %d exceeds %d, increase the partition count", layout.KpartMax, MaxKpart)
	}
	kb.NumPartitions = layout.NumPartitions
	kb.KpartMax = layout.KpartMax
	kb.K = make([]int, layout.NumPartitions)
	for i, p := range layout.Partitions {
		kb.K[i] = p.NumElements
	}
	return layout, nil
}

func (kb *Builder) GetTotalElements() int {
	total := 0
	for _, k := range kb.K {
		total += k
	}
	return total
}
