package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"

	"github.com/roach88/docwire/internal/doccodec"
	"github.com/roach88/docwire/internal/ir"
)

// decodeJSON parses data keeping numbers as json.Number, so integers wider
// than a float64 reach the wire intact.
func decodeJSON(data []byte, out any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(out)
}

// parseObject parses a JSON object given on the command line. An empty
// string is an absent object.
func parseObject(flag, s string) (map[string]any, error) {
	if s == "" {
		return nil, nil
	}
	var obj map[string]any
	if err := decodeJSON([]byte(s), &obj); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("--%s must be a JSON object", flag), err)
	}
	return obj, nil
}

// readInput reads path, or stdin when path is "-".
func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(stdin)
	}
	return os.ReadFile(path)
}

// readDocuments reads a JSON array of objects, or a single object.
func readDocuments(path string, stdin io.Reader) ([]map[string]any, error) {
	data, err := readInput(path, stdin)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read documents", err)
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var doc map[string]any
		if err := decodeJSON(trimmed, &doc); err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid document", err)
		}
		return []map[string]any{doc}, nil
	}
	var docs []map[string]any
	if err := decodeJSON(trimmed, &docs); err != nil {
		return nil, WrapExitError(ExitCommandError, "documents must be a JSON object or array of objects", err)
	}
	return docs, nil
}

// wireValue renders v the way it travels on the wire, extended-JSON
// wrappers included.
func wireValue(v ir.Value, codec doccodec.Options) (any, error) {
	return doccodec.Preprocess(v, codec)
}

func wireValues[V ir.Value](vs []V, codec doccodec.Options) ([]any, error) {
	out := make([]any, len(vs))
	for i, v := range vs {
		w, err := wireValue(v, codec)
		if err != nil {
			return nil, err
		}
		out[i] = w
	}
	return out, nil
}

// textLines renders wire values one canonical JSON line each.
func textLines(wires []any) (string, error) {
	var buf bytes.Buffer
	for i, w := range wires {
		data, err := ir.MarshalCanonical(w)
		if err != nil {
			return "", err
		}
		if i > 0 {
			buf.WriteByte('\n')
		}
		buf.Write(data)
	}
	return buf.String(), nil
}
