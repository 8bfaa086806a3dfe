package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/docwire/internal/doccodec"
	"github.com/roach88/docwire/internal/ir"
	"github.com/roach88/docwire/internal/scalar"
)

// CodecOptions holds flags for the codec subcommands.
type CodecOptions struct {
	*RootOptions
	Table         bool
	BinaryVectors bool
}

func (o *CodecOptions) codec() doccodec.Options {
	opts := doccodec.Options{BinaryEncodeVectors: o.BinaryVectors}
	if o.Table {
		opts.Mode = doccodec.ModeTable
	}
	return opts
}

// LiteralResult is the data payload of codec parse.
type LiteralResult struct {
	Kind      string `json:"kind"`
	Canonical string `json:"canonical"`
	Compact   string `json:"compact,omitempty"`
	Epoch     *int64 `json:"epoch,omitempty"` // days for dates, milliseconds for timestamps
}

var literalKinds = []string{"date", "time", "timestamp", "duration"}

// NewCodecCommand creates the codec command and its subcommands. None of
// them contact a backend.
func NewCodecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CodecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "codec",
		Short: "Inspect literals and the document wire format",
	}
	cmd.PersistentFlags().BoolVar(&opts.Table, "table", false, "use table-mode wire conventions")
	cmd.PersistentFlags().BoolVar(&opts.BinaryVectors, "binary-vectors", false, "pack $vector values as $binary")

	cmd.AddCommand(newCodecParseCommand(opts))
	cmd.AddCommand(newCodecEncodeCommand(opts))
	cmd.AddCommand(newCodecDecodeCommand(opts))

	return cmd
}

func newCodecParseCommand(opts *CodecOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <date|time|timestamp|duration> <literal>",
		Short: "Parse a literal and print its canonical form",
		Long: `Parse a date, time, timestamp or duration literal and print it back in
canonical form.

Example:
  docwire codec parse date -0044-03-15
  docwire codec parse duration 1h30m`,
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
			res, err := parseLiteral(args[0], args[1])
			if err != nil {
				_ = formatter.Error(CodeInvalidInput, err.Error(), nil)
				exitErr := WrapExitError(ExitCommandError, "invalid literal", err)
				exitErr.Reported = true
				return exitErr
			}
			if opts.Format == "json" {
				return formatter.Success(res)
			}
			return formatter.Success(res.Canonical)
		},
	}
}

func parseLiteral(kind, literal string) (LiteralResult, error) {
	res := LiteralResult{Kind: kind}
	switch kind {
	case "date":
		d, err := scalar.ParseDate(literal)
		if err != nil {
			return res, err
		}
		days := d.UnixDays()
		res.Canonical, res.Epoch = d.String(), &days
	case "time":
		t, err := scalar.ParseTime(literal)
		if err != nil {
			return res, err
		}
		res.Canonical = t.String()
	case "timestamp":
		ts, err := scalar.ParseTimestamp(literal)
		if err != nil {
			return res, err
		}
		ms := ts.UnixMilli()
		res.Canonical, res.Epoch = ts.String(), &ms
	case "duration":
		d, err := scalar.ParseDuration(literal)
		if err != nil {
			return res, err
		}
		res.Canonical, res.Compact = d.String(), d.CompactString()
	default:
		return res, fmt.Errorf("unknown literal kind %q: must be one of %s", kind, strings.Join(literalKinds, ", "))
	}
	return res, nil
}

func newCodecEncodeCommand(opts *CodecOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "encode <file.json|->",
		Short: "Decode extended JSON and re-encode it with the chosen options",
		Long: `Read a document in wire form, decode it into domain values and write it
back with the selected conventions. Useful to convert vectors between list
and $binary form, or a collection document to table form.

Example:
  docwire codec encode --binary-vectors doc.json`,
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
			docs, err := readDocuments(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			wires := make([]any, len(docs))
			for i, doc := range docs {
				v, err := doccodec.Postprocess(doc, doccodec.Options{})
				if err != nil {
					return formatter.Fail("failed to decode document", err)
				}
				if wires[i], err = wireValue(v, opts.codec()); err != nil {
					return formatter.Fail("failed to encode document", err)
				}
			}
			if opts.Format == "json" {
				return formatter.Success(map[string]any{"documents": wires})
			}
			text, err := textLines(wires)
			if err != nil {
				return formatter.Fail("failed to render documents", err)
			}
			return formatter.Success(text)
		},
	}
}

// FieldType describes one top-level field of a decoded document.
type FieldType struct {
	Field string `json:"field"`
	Type  string `json:"type"`
}

func newCodecDecodeCommand(opts *CodecOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <file.json|->",
		Short: "Show the domain types a wire document decodes to",
		Long: `Decode a document in wire form and list the domain type of each
top-level field, sorted by field name.

Example:
  echo '{"at": {"$date": 0}, "$vector": [1, 2]}' | docwire codec decode -`,
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
			docs, err := readDocuments(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			var all [][]FieldType
			for _, doc := range docs {
				fields, err := decodeFields(doc, opts.codec())
				if err != nil {
					return formatter.Fail("failed to decode document", err)
				}
				all = append(all, fields)
			}
			if opts.Format == "json" {
				return formatter.Success(map[string]any{"documents": all})
			}
			var b strings.Builder
			for i, fields := range all {
				if i > 0 {
					b.WriteString("---\n")
				}
				for _, f := range fields {
					fmt.Fprintf(&b, "%s\t%s\n", f.Field, f.Type)
				}
			}
			return formatter.Success(strings.TrimSuffix(b.String(), "\n"))
		},
	}
}

func decodeFields(doc map[string]any, codec doccodec.Options) ([]FieldType, error) {
	v, err := doccodec.Postprocess(doc, codec)
	if err != nil {
		return nil, err
	}
	decoded, ok := v.(ir.Document)
	if !ok {
		return []FieldType{{Field: "", Type: ir.TypeName(v)}}, nil
	}
	keys := make([]string, 0, len(decoded))
	for k := range decoded {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	fields := make([]FieldType, len(keys))
	for i, k := range keys {
		fields[i] = FieldType{Field: k, Type: ir.TypeName(decoded[k])}
	}
	return fields, nil
}
