package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/disjunct/internal/harness"
	"github.com/roach88/disjunct/internal/ir"
	"github.com/roach88/disjunct/internal/normalize"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	Models string // CUE models file or directory
}

// QueryResult is the JSON form of a query's results.
type QueryResult struct {
	Strategy string       `json:"strategy"`
	Count    int          `json:"count"`
	Entities []*ir.Entity `json:"entities"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <query.yaml>",
		Short: "Run a query against the database",
		Long: `Run a YAML query against the SQLite database named by --database (or the
config file). Results are printed one entity per line as canonical JSON.

Example query file:

  kind: fruit
  where:
    or:
      - {column: color, op: "=", value: red}
      - {column: size, op: ">", value: 4}
  order: ["-size"]
  limit: 10`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Models, "models", "m", "", "CUE models file or directory")

	return cmd
}

func runQuery(opts *QueryOptions, queryPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
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
	offset, limit := doc.Window()

	s, err := openSession(opts.RootOptions, true)
	if err != nil {
		return formatter.Failure(err)
	}
	defer s.Close(formatter.ErrWriter)

	result := QueryResult{Strategy: harness.StrategyEmpty, Entities: []*ir.Entity{}}
	p, err := s.engine.Plan(registry.Lookup(q.Kind), q)
	switch {
	case errors.Is(err, normalize.ErrEmptyResult):
	case err != nil:
		return formatter.Failure(err)
	default:
		result.Strategy = p.Strategy.String()
		res, err := s.engine.Execute(cmd.Context(), p, offset, limit)
		if err != nil {
			return formatter.Failure(err)
		}
		for e := range res.Seq() {
			result.Entities = append(result.Entities, e)
		}
	}
	result.Count = len(result.Entities)

	formatter.VerboseLog("Query ran as %s and returned %d row(s)", result.Strategy, result.Count)
	return outputQueryResult(formatter, result)
}

func outputQueryResult(formatter *OutputFormatter, result QueryResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	for _, e := range result.Entities {
		data, err := ir.MarshalCanonicalEntity(e)
		if err != nil {
			return err
		}
		fmt.Fprintln(formatter.Writer, string(data))
	}
	return nil
}
