package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// DistinctOptions holds flags for the distinct command.
type DistinctOptions struct {
	*RootOptions
	Filter string
}

// NewDistinctCommand creates the distinct command.
func NewDistinctCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DistinctOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "distinct <collection> <key>",
		Short: "Print the distinct values found at a key path",
		Long: `Read every matching document and print the distinct values at a
dotted key path, in the order they first appear. Lists along the path are
unrolled.

Example:
  docwire distinct --db ./local.db orders items.sku`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
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

			s, err := openSession(opts.RootOptions)
			if err != nil {
				return err
			}
			defer s.Close()

			ctx, cancel := signalContext(context.Background())
			defer cancel()

			values, err := s.collection(args[0]).Distinct(ctx, args[1], filter)
			if err != nil {
				return formatter.Fail("distinct failed", err)
			}
			wires, err := wireValues(values, s.codec)
			if err != nil {
				return formatter.Fail("failed to render values", err)
			}
			if opts.Format == "json" {
				return formatter.Success(map[string]any{"values": wires})
			}
			text, err := textLines(wires)
			if err != nil {
				return formatter.Fail("failed to render values", err)
			}
			if text == "" {
				return nil
			}
			return formatter.Success(text)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter as a JSON object")

	return cmd
}
