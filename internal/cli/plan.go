package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/disjunct/internal/harness"
	"github.com/roach88/disjunct/internal/normalize"
	"github.com/roach88/disjunct/internal/planner"
)

// PlanOptions holds flags for the plan command.
type PlanOptions struct {
	*RootOptions
	Models string // CUE models file or directory
}

// PlanResult is the JSON form of a plan.
type PlanResult struct {
	Strategy string   `json:"strategy"`
	Kind     string   `json:"kind"`
	Keys     []string `json:"keys,omitempty"`
	Marker   string   `json:"marker,omitempty"`
	Branches []string `json:"branches"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PlanOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "plan <query.yaml>",
		Short: "Normalize a query and explain its execution plan",
		Long: `Normalize a YAML query into disjunctive normal form and print the plan:
the chosen strategy (single, fan-out, key-batch or identity-cache) and
one conjunctive sub-query per branch. Nothing is read from the store.

Pass --models to let the planner see unique combinations and list columns.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Models, "models", "m", "", "CUE models file or directory")

	return cmd
}

func runPlan(opts *PlanOptions, queryPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	registry, err := loadRegistry(opts.Models)
	if err != nil {
		return formatter.Failure(err)
	}

	doc, err := harness.LoadQuery(queryPath)
	if err != nil {
		return formatter.Failure(&LoadError{Code: ErrCodeInvalidQuery, Message: err.Error()})
	}
	q, err := doc.Query()
	if err != nil {
		return formatter.Failure(fmt.Errorf("%w: %v", normalize.ErrInvalidFilter, err))
	}

	m := registry.Lookup(q.Kind)
	n, err := normalize.Normalize(q, normalize.Options{
		MaxBranches: opts.Config.MaxBranches,
		ListColumns: m.ListColumns,
	})
	if errors.Is(err, normalize.ErrEmptyResult) {
		return outputEmptyPlan(formatter, q.Kind)
	}
	if err != nil {
		return formatter.Failure(err)
	}

	p := planner.Build(n, m)
	formatter.VerboseLog("Planned %s query over %d branch(es)", p.Strategy, len(p.Branches))
	return outputPlan(formatter, p)
}

func outputPlan(formatter *OutputFormatter, p *planner.Plan) error {
	if formatter.Format != "json" {
		fmt.Fprint(formatter.Writer, planner.Explain(p))
		return nil
	}

	result := PlanResult{
		Strategy: p.Strategy.String(),
		Kind:     p.Query.Kind,
		Branches: make([]string, len(p.Branches)),
	}
	for _, k := range p.Keys {
		result.Keys = append(result.Keys, k.String())
	}
	if p.Marker != nil {
		result.Marker = p.Marker.String()
	}
	for i := range p.Branches {
		result.Branches[i] = p.SubQuery(i, -1).String()
	}
	return formatter.Success(result)
}

func outputEmptyPlan(formatter *OutputFormatter, kind string) error {
	if formatter.Format == "json" {
		return formatter.Success(PlanResult{Strategy: harness.StrategyEmpty, Kind: kind, Branches: []string{}})
	}
	fmt.Fprintf(formatter.Writer, "strategy: %s\nkind: %s\nbranches: 0\n", harness.StrategyEmpty, kind)
	return nil
}
