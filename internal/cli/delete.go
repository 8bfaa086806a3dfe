package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/docwire/internal/results"
)

// DeleteOptions holds flags for the delete command.
type DeleteOptions struct {
	*RootOptions
	Filter string
	One    bool
	All    bool
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DeleteOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "delete <collection>",
		Short: "Delete matching documents",
		Long: `Delete every document matching --filter, or only the first with --one.
Deleting without a filter empties the collection and requires --all.

Example:
  docwire delete --db ./local.db sessions --filter '{"expired": true}'
  docwire delete sessions --all`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDelete(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter as a JSON object")
	cmd.Flags().BoolVar(&opts.One, "one", false, "delete only the first match")
	cmd.Flags().BoolVar(&opts.All, "all", false, "allow deleting without a filter")
	cmd.MarkFlagsMutuallyExclusive("one", "all")

	return cmd
}

func runDelete(cmd *cobra.Command, opts *DeleteOptions, name string) error {
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
	if len(filter) == 0 && !opts.All && !opts.One {
		return NewExitError(ExitCommandError, "refusing to delete without --filter; pass --all to empty the collection")
	}

	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	coll := s.collection(name)
	var res results.DeleteResult
	if opts.One {
		res, err = coll.DeleteOne(ctx, filter)
	} else {
		res, err = coll.DeleteMany(ctx, filter)
	}
	if err != nil {
		return formatter.Fail("delete failed", err)
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]any{"deleted": res.DeletedCount})
	}
	if res.DeletedCount == results.UnknownCount {
		return formatter.Success("Deleted all documents")
	}
	return formatter.Success(fmt.Sprintf("Deleted %d document(s)", res.DeletedCount))
}
