package command

import (
	"fmt"
)

// CheckResponse returns a *ResponseError when resp carries a non-empty
// "errors" array.
func CheckResponse(name string, resp map[string]any) error {
	raw, ok := resp["errors"].([]any)
	if !ok || len(raw) == 0 {
		return nil
	}
	descs := make([]ErrorDescriptor, 0, len(raw))
	for _, item := range raw {
		descs = append(descs, parseDescriptor(item))
	}
	return &ResponseError{Command: name, Descriptors: descs, Response: resp}
}

func parseDescriptor(item any) ErrorDescriptor {
	m, ok := item.(map[string]any)
	if !ok {
		return ErrorDescriptor{Message: fmt.Sprint(item)}
	}
	d := ErrorDescriptor{Attributes: map[string]any{}}
	for k, v := range m {
		s, _ := v.(string)
		switch k {
		case "errorCode":
			d.ErrorCode = s
		case "message":
			d.Message = s
		case "family":
			d.Family = s
		case "scope":
			d.Scope = s
		case "title":
			d.Title = s
		default:
			d.Attributes[k] = v
		}
	}
	return d
}

// Status returns the "status" object of resp, or nil.
func Status(resp map[string]any) map[string]any {
	s, _ := resp["status"].(map[string]any)
	return s
}

// Data returns the "data" object of resp, or nil.
func Data(resp map[string]any) map[string]any {
	d, _ := resp["data"].(map[string]any)
	return d
}

// Page is the payload of a read response.
type Page struct {
	Documents     []any
	NextPageState *string
	Status        map[string]any
}

// ReadPage extracts documents and the continuation token from a read
// response. Missing "data", "data.documents" or "data.nextPageState" is a
// *FaultyResponseError; a null nextPageState means no more pages.
func ReadPage(resp map[string]any) (Page, error) {
	data, ok := resp["data"].(map[string]any)
	if !ok {
		return Page{}, &FaultyResponseError{Message: "response has no data object", Response: resp}
	}
	docs, ok := data["documents"].([]any)
	if !ok {
		return Page{}, &FaultyResponseError{Message: "response has no data.documents array", Response: resp}
	}
	raw, ok := data["nextPageState"]
	if !ok {
		return Page{}, &FaultyResponseError{Message: "response has no data.nextPageState", Response: resp}
	}
	page := Page{Documents: docs, Status: Status(resp)}
	switch v := raw.(type) {
	case nil:
	case string:
		page.NextPageState = &v
	default:
		return Page{}, &FaultyResponseError{Message: fmt.Sprintf("data.nextPageState is %T, not a string", raw), Response: resp}
	}
	return page, nil
}

// StatusInt reads an integer status field such as "insertedCount".
// Missing fields read as zero.
func StatusInt(resp map[string]any, key string) (int64, error) {
	raw, ok := Status(resp)[key]
	if !ok || raw == nil {
		return 0, nil
	}
	n, err := toInt64(raw)
	if err != nil {
		return 0, &FaultyResponseError{Message: fmt.Sprintf("status.%s: %v", key, err), Response: resp}
	}
	return n, nil
}

func toInt64(raw any) (int64, error) {
	switch n := raw.(type) {
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case float64:
		return int64(n), nil
	case interface{ Int64() (int64, error) }:
		return n.Int64()
	}
	return 0, fmt.Errorf("expected integer, got %T", raw)
}
