// Package input reads YAML problem files and turns them into a set up
// runner plus the executioner that drives it.
package input

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"
	"gopkg.in/yaml.v3"

	"github.com/notargets/FEKernel/element"
	"github.com/notargets/FEKernel/fem"
	"github.com/notargets/FEKernel/mesh"
	"github.com/notargets/FEKernel/runner"
	"github.com/notargets/FEKernel/runner/builder"
	"github.com/notargets/FEKernel/solver"
)

// Problem is the decoded problem file
type Problem struct {
	Mesh         MeshSpec           `yaml:"mesh"`
	Variables    []VariableSpec     `yaml:"variables"`
	AuxVariables []VariableSpec     `yaml:"aux_variables"`
	Objects      []ObjectSpec       `yaml:"objects"`
	Initial      map[string]float64 `yaml:"initial_condition"`
	Engine       builder.Config     `yaml:"engine"`
	Executioner  Executioner        `yaml:"executioner"`
}

type MeshSpec struct {
	Generator string      `yaml:"generator"` // line, rectangle or box
	Element   string      `yaml:"element"`
	N         []int       `yaml:"n"`
	Min       []float64   `yaml:"min"`
	Max       []float64   `yaml:"max"`
	Blocks    []BlockSpec `yaml:"blocks"`
}

// BlockSpec retags the cells whose centroid lies in [Min,Max]. Later
// entries win.
type BlockSpec struct {
	ID   int       `yaml:"id"`
	Name string    `yaml:"name"`
	Min  []float64 `yaml:"min"`
	Max  []float64 `yaml:"max"`
}

type VariableSpec struct {
	Name   string   `yaml:"name"`
	Family string   `yaml:"family"`
	Blocks []string `yaml:"block"`
}

type ObjectSpec struct {
	Type   string                 `yaml:"type"`
	Name   string                 `yaml:"name"`
	Params map[string]interface{} `yaml:"params"`
}

type Executioner struct {
	Type             string `yaml:"type"` // steady or transient
	solver.Transient `yaml:",inline"`
}

// Load reads and decodes a problem file
func Load(path string) (*Problem, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read problem file: %w", err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a problem. Engine settings start from the FEK_* environment
// and are overridden by the file; unknown keys are an error.
func Parse(data []byte) (*Problem, error) {
	cfg, err := builder.LoadConfig()
	if err != nil {
		return nil, err
	}
	p := &Problem{Engine: cfg}
	p.Executioner.Newton = solver.DefaultOptions()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(p); err != nil {
		return nil, fmt.Errorf("decode problem: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Problem) Validate() error {
	if len(p.Variables) == 0 {
		return fmt.Errorf("problem declares no variables")
	}
	if err := p.Engine.Validate(); err != nil {
		return fmt.Errorf("engine: %w", err)
	}
	switch p.Executioner.Type {
	case "", "steady":
		if err := p.Executioner.Newton.Validate(); err != nil {
			return fmt.Errorf("executioner: %w", err)
		}
	case "transient":
		if err := p.Executioner.Transient.Validate(); err != nil {
			return fmt.Errorf("executioner: %w", err)
		}
	default:
		return fmt.Errorf("executioner: unknown type %q", p.Executioner.Type)
	}
	for i, o := range p.Objects {
		if o.Type == "" || o.Name == "" {
			return fmt.Errorf("object %d needs a type and a name", i)
		}
	}
	return nil
}

func vec(v []float64, fallback float64) r3.Vec {
	at := func(i int) float64 {
		if i < len(v) {
			return v[i]
		}
		return fallback
	}
	return r3.Vec{X: at(0), Y: at(1), Z: at(2)}
}

func count(n []int, i int) int {
	if i < len(n) {
		return n[i]
	}
	return 1
}

// BuildMesh runs the generator and applies block assignments
func (s MeshSpec) BuildMesh() (*mesh.Mesh, error) {
	lo, hi := vec(s.Min, 0), vec(s.Max, 1)
	typeName := strings.ToUpper(s.Element)
	var (
		m   *mesh.Mesh
		err error
	)
	switch s.Generator {
	case "line":
		if typeName == "" {
			typeName = "EDGE2"
		}
		typ, perr := element.ParseType(typeName)
		if perr != nil {
			return nil, perr
		}
		m, err = mesh.NewLine(count(s.N, 0), lo.X, hi.X, typ)
	case "rectangle":
		if typeName == "" {
			typeName = "QUAD4"
		}
		typ, perr := element.ParseType(typeName)
		if perr != nil {
			return nil, perr
		}
		m, err = mesh.NewRectangle(count(s.N, 0), count(s.N, 1), lo.X, hi.X, lo.Y, hi.Y, typ)
	case "box":
		if typeName != "" && typeName != "HEX8" {
			return nil, fmt.Errorf("box mesh does not support %s", typeName)
		}
		m, err = mesh.NewBox(count(s.N, 0), count(s.N, 1), count(s.N, 2), lo, hi)
	default:
		return nil, fmt.Errorf("unknown mesh generator %q", s.Generator)
	}
	if err != nil {
		return nil, err
	}
	if len(s.Blocks) == 0 {
		return m, nil
	}
	m.AssignBlocks(func(c r3.Vec) mesh.SubdomainID {
		id := mesh.SubdomainID(0)
		for _, b := range s.Blocks {
			bl, bh := vec(b.Min, -1e300), vec(b.Max, 1e300)
			if c.X >= bl.X && c.X <= bh.X && c.Y >= bl.Y && c.Y <= bh.Y && c.Z >= bl.Z && c.Z <= bh.Z {
				id = mesh.SubdomainID(b.ID)
			}
		}
		return id
	})
	if m.BlockNames == nil {
		m.BlockNames = make(map[string]mesh.SubdomainID)
	}
	for _, b := range s.Blocks {
		if b.Name != "" {
			m.BlockNames[b.Name] = mesh.SubdomainID(b.ID)
		}
	}
	return m, m.Validate()
}

// Build creates the mesh and runner, adds everything, runs Setup and applies
// the initial condition
func (p *Problem) Build(reg *fem.Registry, log *slog.Logger) (*runner.Runner, error) {
	m, err := p.Mesh.BuildMesh()
	if err != nil {
		return nil, fmt.Errorf("mesh: %w", err)
	}
	r := runner.NewRunner(m, reg, p.Engine, log)
	add := func(specs []VariableSpec, aux bool) error {
		for _, v := range specs {
			family, err := fem.ParseFamily(v.Family)
			if err != nil {
				return fmt.Errorf("variable %q: %w", v.Name, err)
			}
			if aux {
				_, err = r.AddAuxVariable(v.Name, family, v.Blocks...)
			} else {
				_, err = r.AddVariable(v.Name, family, v.Blocks...)
			}
			if err != nil {
				return err
			}
		}
		return nil
	}
	if err := add(p.Variables, false); err != nil {
		return nil, err
	}
	if err := add(p.AuxVariables, true); err != nil {
		return nil, err
	}
	for _, o := range p.Objects {
		if err := r.AddObject(o.Type, o.Name, o.Params); err != nil {
			return nil, err
		}
	}
	if err := r.Setup(); err != nil {
		return nil, err
	}
	if len(p.Initial) > 0 {
		u := make([]float64, r.Dofs().NumDofs())
		for name := range p.Initial {
			if v, ok := r.Variable(name); !ok || v.Aux {
				return nil, fmt.Errorf("initial condition for unknown variable %q", name)
			}
		}
		for dof := range u {
			u[dof] = p.Initial[r.Dofs().VariableOf(dof).Name]
		}
		if err := r.SetInitialCondition(u); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Execute runs the executioner. report is called with the postprocessor
// values after the steady solve or after every accepted step.
func (p *Problem) Execute(ctx context.Context, r *runner.Runner, log *slog.Logger,
	report func(step int, t float64, values map[string]float64)) error {
	publish := func(step int, t float64) error {
		if report == nil || len(r.Postprocessors()) == 0 {
			return nil
		}
		values, err := r.Postprocess(ctx)
		if err != nil {
			return err
		}
		report(step, t, values)
		return nil
	}
	if p.Executioner.Type == "transient" {
		r.SetTime(p.Executioner.Start, 0)
		if err := publish(0, p.Executioner.Start); err != nil {
			return err
		}
		return p.Executioner.Run(ctx, r, log, publish)
	}
	if _, err := solver.Steady(ctx, r, p.Executioner.Newton, log); err != nil {
		return err
	}
	return publish(1, r.Time())
}
