package localapi

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"

	"github.com/roach88/docwire/internal/ir"
)

// queryChecksum fingerprints the parts of a find that decide page contents.
func queryChecksum(collection string, body map[string]any) (uint64, error) {
	options, _ := body["options"].(map[string]any)
	key := map[string]any{
		"collection": collection,
		"filter":     body["filter"],
		"sort":       body["sort"],
		"projection": body["projection"],
		"skip":       options["skip"],
		"limit":      options["limit"],
	}
	data, err := ir.MarshalCanonical(key)
	if err != nil {
		return 0, fmt.Errorf("page state: %w", err)
	}
	return xxhash.Sum64(data), nil
}

// pageToken encodes the offset of the next page of the query with the given
// checksum.
func pageToken(offset int, checksum uint64) string {
	return strconv.Itoa(offset) + "." + strconv.FormatUint(checksum, 16)
}

// parsePageToken returns the offset in token, rejecting tokens issued for a
// different query.
func parsePageToken(token string, checksum uint64) (int, error) {
	off, sum, ok := strings.Cut(token, ".")
	if !ok {
		return 0, apiErrorf(codeInvalidPageState, "malformed page state")
	}
	offset, err := strconv.Atoi(off)
	if err != nil || offset < 0 {
		return 0, apiErrorf(codeInvalidPageState, "malformed page state")
	}
	got, err := strconv.ParseUint(sum, 16, 64)
	if err != nil || got != checksum {
		return 0, apiErrorf(codeInvalidPageState, "page state belongs to a different query")
	}
	return offset, nil
}
