package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/docwire/internal/results"
)

// UpdateOptions holds flags for the update command.
type UpdateOptions struct {
	*RootOptions
	Filter  string
	Update  string
	Replace string
	Many    bool
	Upsert  bool
}

// NewUpdateCommand creates the update command.
func NewUpdateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UpdateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "update <collection>",
		Short: "Update or replace matching documents",
		Long: `Apply update operators to the first matching document, or to all of them
with --many. --replace swaps the first match for a whole new document.

Example:
  docwire update --db ./local.db users --filter '{"_id": "u1"}' --update '{"$inc": {"visits": 1}}' --upsert
  docwire update users --filter '{"active": false}' --update '{"$set": {"archived": true}}' --many`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter as a JSON object")
	cmd.Flags().StringVar(&opts.Update, "update", "", "update operators as a JSON object")
	cmd.Flags().StringVar(&opts.Replace, "replace", "", "replacement document as a JSON object")
	cmd.Flags().BoolVar(&opts.Many, "many", false, "update every matching document")
	cmd.Flags().BoolVar(&opts.Upsert, "upsert", false, "insert when nothing matches")
	cmd.MarkFlagsMutuallyExclusive("update", "replace")
	cmd.MarkFlagsMutuallyExclusive("many", "replace")
	cmd.MarkFlagsOneRequired("update", "replace")

	return cmd
}

func runUpdate(cmd *cobra.Command, opts *UpdateOptions, name string) error {
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
	update, err := parseObject("update", opts.Update)
	if err != nil {
		return err
	}
	replacement, err := parseObject("replace", opts.Replace)
	if err != nil {
		return err
	}
	if filter == nil {
		filter = map[string]any{}
	}

	s, err := openSession(opts.RootOptions)
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, cancel := signalContext(context.Background())
	defer cancel()

	coll := s.collection(name)
	var res results.UpdateResult
	switch {
	case replacement != nil:
		res, err = coll.ReplaceOne(ctx, filter, replacement, opts.Upsert)
	case opts.Many:
		res, err = coll.UpdateMany(ctx, filter, update, opts.Upsert)
	default:
		res, err = coll.UpdateOne(ctx, filter, update, opts.Upsert)
	}
	if err != nil {
		return formatter.Fail("update failed", err)
	}

	var upserted any
	if res.Info.Upserted != nil {
		if upserted, err = wireValue(res.Info.Upserted, s.codec); err != nil {
			return formatter.Fail("failed to render upserted id", err)
		}
	}
	if opts.Format == "json" {
		data := map[string]any{"matched": res.Info.N, "modified": res.Info.NModified}
		if upserted != nil {
			data["upserted_id"] = upserted
		}
		return formatter.Success(data)
	}
	msg := fmt.Sprintf("Matched %d, modified %d", res.Info.N, res.Info.NModified)
	if upserted != nil {
		msg += fmt.Sprintf(", upserted %v", upserted)
	}
	return formatter.Success(msg)
}
