package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// CountOptions holds flags for the count command.
type CountOptions struct {
	*RootOptions
	Filter     string
	UpperBound int64
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CountOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "count <collection>",
		Short: "Count the documents matching a filter",
		Long: `Count matching documents. The command fails with TOO_MANY_DOCUMENTS when
the count exceeds --upper-bound or the server stops counting.

Example:
  docwire count --db ./local.db users --filter '{"active": true}'`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    opts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   opts.Verbose,
			}
			if opts.UpperBound < 0 {
				return NewExitError(ExitCommandError, "--upper-bound must not be negative")
			}
			filter, err := parseObject("filter", opts.Filter)
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

			n, err := s.collection(args[0]).CountDocuments(ctx, filter, opts.UpperBound)
			if err != nil {
				return formatter.Fail("count failed", err)
			}
			if opts.Format == "json" {
				return formatter.Success(map[string]any{"count": n})
			}
			return formatter.Success(n)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter as a JSON object")
	cmd.Flags().Int64Var(&opts.UpperBound, "upper-bound", 1000, "fail when more documents match")

	return cmd
}
