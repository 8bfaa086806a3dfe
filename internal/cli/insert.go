package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/docwire/internal/collection"
)

// InsertOptions holds flags for the insert command.
type InsertOptions struct {
	*RootOptions
	Ordered     bool
	ChunkSize   int
	Concurrency int
}

// InsertResult is the data payload of the insert command.
type InsertResult struct {
	InsertedIDs []any `json:"inserted_ids"`
	Requests    int   `json:"requests"`
}

// NewInsertCommand creates the insert command.
func NewInsertCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InsertOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "insert <collection> <file.json|->",
		Short: "Insert documents from a JSON file",
		Long: `Insert a JSON object, or an array of objects, read from a file or stdin.

Documents are sent in chunks. Ordered inserts stop at the first failing
chunk; unordered inserts attempt every chunk concurrently and report the
failures at the end. Ids that were inserted are reported either way.

Example:
  docwire insert --db ./local.db users users.json --chunk-size 20
  cat users.json | docwire insert users - --ordered`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInsert(cmd, opts, args[0], args[1])
		},
	}

	cmd.Flags().BoolVar(&opts.Ordered, "ordered", false, "insert chunks in order and stop at the first failure")
	cmd.Flags().IntVar(&opts.ChunkSize, "chunk-size", 0, "documents per request (0 = config value)")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "chunks in flight for unordered inserts (0 = config value)")

	return cmd
}

func runInsert(cmd *cobra.Command, opts *InsertOptions, name, path string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Ordered && opts.Concurrency > 1 {
		return NewExitError(ExitCommandError, "--concurrency cannot exceed 1 with --ordered")
	}

	docs, err := readDocuments(path, cmd.InOrStdin())
	if err != nil {
		return err
	}

	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	formatter.VerboseLog("inserting %d documents into %s", len(docs), name)
	res, err := s.collection(name).InsertManyWith(ctx, docs, collection.InsertManyOptions{
		Ordered:     opts.Ordered,
		ChunkSize:   opts.ChunkSize,
		Concurrency: opts.Concurrency,
	})
	if err != nil {
		return formatter.Fail("insert failed", err)
	}
	slog.Debug("insert complete", "collection", name, "inserted", len(res.InsertedIDs), "requests", len(res.RawResults))

	ids, err := wireValues(res.InsertedIDs, s.codec)
	if err != nil {
		return formatter.Fail("failed to render ids", err)
	}
	if opts.Format == "json" {
		return formatter.Success(InsertResult{InsertedIDs: ids, Requests: len(res.RawResults)})
	}
	return formatter.Success(fmt.Sprintf("Inserted %d document(s) in %d request(s)", len(ids), len(res.RawResults)))
}
