package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command with args and returns stdout and stderr.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("DOCWIRE_DB", "")
	t.Setenv("DOCWIRE_ENDPOINT", "")

	stdout, stderr := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)
	cmd.SetIn(strings.NewReader(""))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

const people = `[
  {"_id": "p1", "name": "ada", "age": 36, "team": "core"},
  {"_id": "p2", "name": "bob", "age": 41, "team": "ops"},
  {"_id": "p3", "name": "cy", "age": 29, "team": "core"}
]`

func seedPeople(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "cli.db")
	out, _, err := execute(t, "--db", db, "insert", "people", writeFile(t, "people.json", people), "--ordered")
	require.NoError(t, err)
	assert.Equal(t, "Inserted 3 document(s) in 1 request(s)\n", out)
	return db
}

func TestCLI_InsertAndFind(t *testing.T) {
	db := seedPeople(t)

	out, _, err := execute(t, "--db", db, "find", "people",
		"--filter", `{"team": "core"}`, "--sort", `{"age": 1}`, "--projection", `{"name": 1}`)
	require.NoError(t, err)
	assert.Equal(t, `{"_id":"p3","name":"cy"}`+"\n"+`{"_id":"p1","name":"ada"}`+"\n", out)

	out, _, err = execute(t, "--db", db, "--format", "json", "find", "people", "--limit", "2")
	require.NoError(t, err)
	var resp struct {
		Status string
		Data   FindResult
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Len(t, resp.Data.Documents, 2)
	assert.Equal(t, 1, resp.Data.Pages)
}

func TestCLI_CountAndDistinct(t *testing.T) {
	db := seedPeople(t)

	out, _, err := execute(t, "--db", db, "count", "people", "--filter", `{"team": "core"}`)
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, _, err = execute(t, "--db", db, "--format", "json", "count", "people", "--upper-bound", "1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `"code":"TOO_MANY_DOCUMENTS"`)

	out, _, err = execute(t, "--db", db, "distinct", "people", "team")
	require.NoError(t, err)
	assert.Equal(t, "\"core\"\n\"ops\"\n", out)
}

func TestCLI_UpdateAndDelete(t *testing.T) {
	db := seedPeople(t)

	out, _, err := execute(t, "--db", db, "update", "people",
		"--filter", `{"team": "core"}`, "--update", `{"$inc": {"age": 1}}`, "--many")
	require.NoError(t, err)
	assert.Equal(t, "Matched 2, modified 2\n", out)

	out, _, err = execute(t, "--db", db, "update", "people",
		"--filter", `{"_id": "p9"}`, "--update", `{"$set": {"name": "new"}}`, "--upsert")
	require.NoError(t, err)
	assert.Equal(t, "Matched 0, modified 0, upserted p9\n", out)

	out, _, err = execute(t, "--db", db, "find", "people", "--filter", `{"_id": "p1"}`, "--projection", `{"age": 1}`)
	require.NoError(t, err)
	assert.Equal(t, `{"_id":"p1","age":37}`+"\n", out)

	out, _, err = execute(t, "--db", db, "delete", "people", "--filter", `{"team": "core"}`)
	require.NoError(t, err)
	assert.Equal(t, "Deleted 2 document(s)\n", out)

	_, _, err = execute(t, "--db", db, "delete", "people")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	out, _, err = execute(t, "--db", db, "delete", "people", "--all")
	require.NoError(t, err)
	assert.Equal(t, "Deleted all documents\n", out)

	out, _, err = execute(t, "--db", db, "count", "people")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestCLI_InsertDuplicatesReportsPartial(t *testing.T) {
	db := seedPeople(t)
	dupes := writeFile(t, "dupes.json", `[{"_id": "p4"}, {"_id": "p1"}, {"_id": "p5"}]`)

	out, _, err := execute(t, "--db", db, "--format", "json", "insert", "people", dupes)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodePartialWrite, resp.Error.Code)
	assert.Equal(t, map[string]any{"inserted": 2.0}, resp.Error.Details)
}

func TestCLI_APIErrorExitsWithFailure(t *testing.T) {
	db := seedPeople(t)

	out, _, err := execute(t, "--db", db, "--format", "json", "find", "people", "--filter", `{"age": {"$regex": "x"}}`)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, `"code":"API_ERROR"`)
	assert.Contains(t, out, "INVALID_FILTER_EXPRESSION")
}

func TestCLI_BadInput(t *testing.T) {
	db := filepath.Join(t.TempDir(), "cli.db")
	tests := []struct {
		name string
		args []string
	}{
		{"no backend", []string{"count", "people"}},
		{"both backends", []string{"--db", db, "--endpoint", "https://x", "--keyspace", "k", "count", "people"}},
		{"filter not json", []string{"--db", db, "find", "people", "--filter", "{age"}},
		{"missing file", []string{"--db", db, "insert", "people", filepath.Join(t.TempDir(), "absent.json")}},
		{"ordered with concurrency", []string{"--db", db, "insert", "people", "-", "--ordered", "--concurrency", "4"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Equal(t, ExitCommandError, GetExitCode(err))
		})
	}
}

func TestCLI_ConfigFile(t *testing.T) {
	db := seedPeople(t)
	cfg := writeFile(t, "docwire.yaml", "db: "+db+"\nchunk_size: 2\n")

	out, _, err := execute(t, "--config", cfg, "count", "people")
	require.NoError(t, err)
	assert.Equal(t, "3\n", out)
}

func TestCLI_VerboseLogsTraffic(t *testing.T) {
	db := seedPeople(t)

	_, stderr, err := execute(t, "--db", db, "-v", "count", "people")
	require.NoError(t, err)
	assert.Contains(t, stderr, "docwire_commands_total")
	assert.Contains(t, stderr, "countDocuments")
}

func TestCodec_Parse(t *testing.T) {
	tests := []struct {
		kind, literal string
		want          string
	}{
		{"date", "2024-2-29", "2024-02-29"},
		{"time", "1:2:3.25", "01:02:03.250"},
		{"duration", "1h30m", "PT1H30M"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			out, _, err := execute(t, "codec", "parse", tt.kind, tt.literal)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}

	out, _, err := execute(t, "--format", "json", "codec", "parse", "date", "2024-02-29")
	require.NoError(t, err)
	var resp struct{ Data LiteralResult }
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.NotNil(t, resp.Data.Epoch)
	assert.Equal(t, int64(19782), *resp.Data.Epoch)

	_, _, err = execute(t, "codec", "parse", "date", "2023-02-29")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, _, err = execute(t, "codec", "parse", "colour", "red")
	require.Error(t, err)
}

func TestCodec_Decode(t *testing.T) {
	path := writeFile(t, "doc.json", `{"at": {"$date": 0}, "$vector": [1, 2], "n": 1, "id": {"$uuid": "01234567-89ab-cdef-0123-456789abcdef"}}`)

	out, _, err := execute(t, "codec", "decode", path)
	require.NoError(t, err)
	assert.Equal(t, "$vector\tvector\nat\ttimestamp\nid\tuuid\nn\tinteger\n", out)
}

func TestCodec_EncodeBinaryVectors(t *testing.T) {
	path := writeFile(t, "doc.json", `{"$vector": [1, 2]}`)

	out, _, err := execute(t, "codec", "encode", "--binary-vectors", path)
	require.NoError(t, err)
	assert.Equal(t, `{"$vector":{"$binary":"P4AAAEAAAAA="}}`+"\n", out)
}
