package matching

import (
	"bytes"
	"encoding/json"
)

// MatchBodyStructural checks structural equality between the parsed request
// body and the expected value. Both sides are reduced to canonical JSON
// (encoding/json sorts object keys and normalizes numbers), so a YAML-sourced
// criterion compares equal to the JSON request body it describes.
//
// A request body that is not valid JSON is a plain non-match. An expected
// value that cannot be marshaled is a malformed rule and returns an error.
func MatchBodyStructural(expected any, body []byte) (bool, error) {
	want, err := json.Marshal(expected)
	if err != nil {
		return false, err
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return false, nil
	}
	got, err := json.Marshal(parsed)
	if err != nil {
		return false, nil
	}

	return bytes.Equal(want, got), nil
}
