package schwab

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// decodeResponse parses a JSON body into the generic map/slice tree that the
// endpoint methods return. A JSON null, an empty body, or pure whitespace
// all decode to nil with no error: several endpoints legitimately answer
// with nothing (order cancellation, empty result sets). Malformed JSON is an
// error.
func decodeResponse(body []byte) (any, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	var decoded any
	if err := json.Unmarshal(trimmed, &decoded); err != nil {
		return nil, fmt.Errorf("schwab: decode response: %w", err)
	}
	return decoded, nil
}

// decodeObject is decodeResponse for endpoints whose top level is an object.
// nil stays nil; any other top-level shape is an error.
func decodeObject(body []byte) (map[string]any, error) {
	decoded, err := decodeResponse(body)
	if err != nil {
		return nil, err
	}
	if decoded == nil {
		return nil, nil
	}
	object, ok := decoded.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("schwab: decode response: expected JSON object, got %T", decoded)
	}
	return object, nil
}

// decodeList is decodeResponse for endpoints whose top level is an array.
func decodeList(body []byte) ([]any, error) {
	decoded, err := decodeResponse(body)
	if err != nil {
		return nil, err
	}
	if decoded == nil {
		return nil, nil
	}
	list, ok := decoded.([]any)
	if !ok {
		return nil, fmt.Errorf("schwab: decode response: expected JSON array, got %T", decoded)
	}
	return list, nil
}
