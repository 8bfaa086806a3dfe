package cli

import (
	"context"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/docwire/internal/cursor"
)

// FindOptions holds flags for the find command.
type FindOptions struct {
	*RootOptions
	Filter     string
	Projection string
	Sort       string
	Limit      int
	Skip       int
	Similarity bool
}

// FindResult is the data payload of the find command.
type FindResult struct {
	Documents []any `json:"documents"`
	Pages     int   `json:"pages"`
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "find <collection>",
		Short: "Print the documents matching a filter",
		Long: `Run a find against a collection, following page states until the
cursor is exhausted or --limit documents have been read.

Example:
  docwire find --db ./local.db users --filter '{"age": {"$in": [30, 31]}}'
  docwire find users --sort '{"$vector": [0.1, 0.9]}' --limit 5 --similarity`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter as a JSON object")
	cmd.Flags().StringVar(&opts.Projection, "projection", "", "projection as a JSON object")
	cmd.Flags().StringVar(&opts.Sort, "sort", "", "sort as a JSON object")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum documents to return (0 = all)")
	cmd.Flags().IntVar(&opts.Skip, "skip", 0, "documents to skip (requires --sort)")
	cmd.Flags().BoolVar(&opts.Similarity, "similarity", false, "include $similarity with vector sorts")

	return cmd
}

func runFind(cmd *cobra.Command, opts *FindOptions, name string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	filter, err := parseObject("filter", opts.Filter)
	if err != nil {
		return err
	}
	projection, err := parseObject("projection", opts.Projection)
	if err != nil {
		return err
	}
	sort, err := parseObject("sort", opts.Sort)
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

	copts := []cursor.Option{cursor.WithIncludeSimilarity(opts.Similarity)}
	if projection != nil {
		copts = append(copts, cursor.WithProjection(projection))
	}
	if sort != nil {
		copts = append(copts, cursor.WithSort(sort))
	}
	if opts.Limit > 0 {
		copts = append(copts, cursor.WithLimit(opts.Limit))
	}
	if opts.Skip > 0 {
		copts = append(copts, cursor.WithSkip(opts.Skip))
	}

	cur := s.collection(name).Find(filter, copts...)
	defer cur.Close()
	docs, err := cur.ToList(ctx)
	if err != nil {
		return formatter.Fail("find failed", err)
	}
	slog.Debug("find complete", "collection", name, "documents", len(docs), "pages", cur.PagesRetrieved())

	wires, err := wireValues(docs, s.codec)
	if err != nil {
		return formatter.Fail("failed to render documents", err)
	}
	if opts.Format == "json" {
		return formatter.Success(FindResult{Documents: wires, Pages: cur.PagesRetrieved()})
	}
	text, err := textLines(wires)
	if err != nil {
		return formatter.Fail("failed to render documents", err)
	}
	if text == "" {
		return nil
	}
	return formatter.Success(text)
}
