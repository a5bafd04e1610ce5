package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notargets/FEKernel/input"
	"github.com/notargets/FEKernel/physics"
	"github.com/notargets/FEKernel/runner"
	"github.com/notargets/FEKernel/utils"
)

// load parses the problem file and builds the runner with the log level
// from the flag, or from the problem when the flag is unset
func load(cmd *cobra.Command, path string) (*input.Problem, *runner.Runner, *slog.Logger, error) {
	p, err := input.Load(path)
	if err != nil {
		return nil, nil, nil, err
	}
	level, _ := cmd.Flags().GetString("log-level")
	if level == "" {
		level = p.Engine.LogLevel
	}
	log := utils.NewLogger(level, cmd.ErrOrStderr())
	r, err := p.Build(physics.NewRegistry(), log)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("setup %s: %w", path, err)
	}
	return p, r, log, nil
}

type stepOutput struct {
	Step   int                `json:"step"`
	Time   float64            `json:"time"`
	Values map[string]float64 `json:"postprocessors"`
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run <problem.yaml>",
		Short: "Solve a problem and print its postprocessors",
		Long: `Builds the problem, runs its steady or transient executioner and prints
the postprocessor values after the solve or after every accepted step.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			p, r, log, err := load(cmd, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			enc := json.NewEncoder(out)
			var writeErr error
			report := func(step int, t float64, values map[string]float64) {
				if writeErr != nil {
					return
				}
				if jsonOut {
					writeErr = enc.Encode(stepOutput{Step: step, Time: t, Values: values})
					return
				}
				writeErr = printValues(out, step, t, values)
			}
			if err := p.Execute(cmd.Context(), r, log, report); err != nil {
				return err
			}
			return writeErr
		},
	}
}

func printValues(w io.Writer, step int, t float64, values map[string]float64) error {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	fmt.Fprintf(&b, "step %d t=%g", step, t)
	for _, name := range names {
		fmt.Fprintf(&b, " %s=%.10g", name, values[name])
	}
	_, err := fmt.Fprintln(w, b.String())
	return err
}

type checkOutput struct {
	Dofs           int                 `json:"dofs"`
	AuxDofs        int                 `json:"aux_dofs"`
	NonZeros       int                 `json:"nonzeros"`
	Partitions     int                 `json:"partitions"`
	MaterialOrder  map[string][]string `json:"material_order"`
	Postprocessors []string            `json:"postprocessors"`
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <problem.yaml>",
		Short: "Validate a problem without solving it",
		Long: `Builds the problem and runs setup: parameter validation, coupling
resolution, material ordering and sparsity. Prints a summary of the
resulting system.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			_, r, _, err := load(cmd, args[0])
			if err != nil {
				return err
			}
			summary := checkOutput{
				Dofs:           r.Dofs().NumDofs(),
				AuxDofs:        r.AuxDofs().NumDofs(),
				NonZeros:       r.Pattern().NNZ(),
				Partitions:     r.Layout().NumPartitions,
				MaterialOrder:  make(map[string][]string),
				Postprocessors: r.Postprocessors(),
			}
			for _, b := range r.Mesh.Blocks() {
				if order := r.MaterialOrder(b); len(order) > 0 {
					summary.MaterialOrder[fmt.Sprint(b)] = order
				}
			}
			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(summary)
			}
			fmt.Fprintf(out, "ok: %d dofs, %d aux dofs, %d nonzeros, %d partitions\n",
				summary.Dofs, summary.AuxDofs, summary.NonZeros, summary.Partitions)
			for _, b := range r.Mesh.Blocks() {
				if order := summary.MaterialOrder[fmt.Sprint(b)]; len(order) > 0 {
					fmt.Fprintf(out, "block %d materials: %s\n", b, strings.Join(order, ", "))
				}
			}
			return nil
		},
	}
}

type paramOutput struct {
	Name     string      `json:"name"`
	Kind     string      `json:"kind"`
	Required bool        `json:"required"`
	Coupled  bool        `json:"coupled,omitempty"`
	Default  interface{} `json:"default,omitempty"`
	Doc      string      `json:"doc,omitempty"`
}

type objectOutput struct {
	Type   string        `json:"type"`
	Kind   string        `json:"kind"`
	Doc    string        `json:"doc"`
	Params []paramOutput `json:"params,omitempty"`
}

func newObjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "objects [type]",
		Short: "List the registered physics object types",
		Long: `Lists every object type a problem file may use. With a type name, also
prints its parameters.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			reg := physics.NewRegistry()
			types := reg.Types()
			detail := len(args) == 1
			if detail {
				if _, ok := reg.Lookup(args[0]); !ok {
					return fmt.Errorf("unknown object type %q", args[0])
				}
				types = args
			}
			var objects []objectOutput
			for _, typ := range types {
				e, _ := reg.Lookup(typ)
				o := objectOutput{Type: e.Type, Kind: e.Kind.String(), Doc: e.Doc}
				if detail {
					for _, s := range e.Params.Specs() {
						o.Params = append(o.Params, paramOutput{
							Name: s.Name, Kind: s.Kind.String(), Required: s.Required,
							Coupled: s.Coupled, Default: s.Default, Doc: s.Doc,
						})
					}
				}
				objects = append(objects, o)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				return json.NewEncoder(out).Encode(objects)
			}
			for _, o := range objects {
				fmt.Fprintf(out, "%-32s %-14s %s\n", o.Type, o.Kind, o.Doc)
				for _, p := range o.Params {
					req := ""
					if p.Required {
						req = " (required)"
					}
					def := ""
					if p.Default != nil {
						def = fmt.Sprintf(" [default %v]", p.Default)
					}
					fmt.Fprintf(out, "    %-20s %-9s %s%s%s\n", p.Name, p.Kind, p.Doc, req, def)
				}
			}
			return nil
		},
	}
}
