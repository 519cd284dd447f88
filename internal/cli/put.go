package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/disjunct/internal/harness"
	"github.com/roach88/disjunct/internal/ir"
)

// PutOptions holds flags for the put command.
type PutOptions struct {
	*RootOptions
	Models string // CUE models file or directory
}

// PutResult is the JSON form of a completed write.
type PutResult struct {
	Keys []string `json:"keys"`
}

// NewPutCommand creates the put command.
func NewPutCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PutOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "put <records.yaml>",
		Short: "Write records with unique enforcement",
		Long: `Write a YAML list of records to the database, creating it if needed.

Records without a key name their kind and get a generated one. Records of
each kind are written in one transaction and checked against that kind's
unique combinations from --models; a violation rejects the whole kind's
batch. Kinds are written in the order they first appear.

Example records file:

  - key: "fruit:1"
    properties: {color: red, size: 5, tags: [a, b]}
  - kind: user
    properties: {email: ann@example.com}`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPut(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Models, "models", "m", "", "CUE models file or directory")

	return cmd
}

func runPut(opts *PutOptions, recordsPath string, cmd *cobra.Command) error {
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

	docs, err := harness.LoadRecords(recordsPath)
	if err != nil {
		return formatter.Failure(&LoadError{Code: ErrCodeInvalidRecords, Message: err.Error()})
	}
	entities, err := harness.Entities(docs)
	if err != nil {
		return formatter.Failure(&LoadError{Code: ErrCodeInvalidRecords, Message: err.Error()})
	}

	s, err := openSession(opts.RootOptions, false)
	if err != nil {
		return formatter.Failure(err)
	}
	defer s.Close(formatter.ErrWriter)

	var written []*ir.Key
	for _, batch := range groupByKind(entities) {
		kind := batch[0].Key.Kind
		keys, err := s.engine.Put(cmd.Context(), registry.Lookup(kind), batch...)
		if err != nil {
			return formatter.Failure(err)
		}
		formatter.VerboseLog("Wrote %d %s record(s)", len(keys), kind)
		written = append(written, keys...)
	}

	result := PutResult{Keys: make([]string, len(written))}
	for i, k := range written {
		result.Keys[i] = k.String()
	}
	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Wrote %d record(s)\n", len(result.Keys))
	for _, k := range result.Keys {
		fmt.Fprintf(formatter.Writer, "  %s\n", k)
	}
	return nil
}

// groupByKind splits entities into per-kind batches in first-seen order.
func groupByKind(entities []*ir.Entity) [][]*ir.Entity {
	var batches [][]*ir.Entity
	index := make(map[string]int)
	for _, e := range entities {
		i, ok := index[e.Key.Kind]
		if !ok {
			i = len(batches)
			index[e.Key.Kind] = i
			batches = append(batches, nil)
		}
		batches[i] = append(batches[i], e)
	}
	return batches
}
