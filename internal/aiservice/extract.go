package aiservice

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ParseError reports model output that held no decodable JSON object.
type ParseError struct {
	// Raw is the untouched model output.
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse JSON from response: %q", truncate(e.Raw, 200))
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ExtractJSON recovers a JSON object from free-form model output.
//
// The outermost {...} span is tried first, then the whole text with markdown
// code fences removed. The JSON itself is decoded strictly; only the framing is lenient.
func ExtractJSON(raw string) (map[string]interface{}, error) {
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			if obj, err := decodeObject(raw[start : end+1]); err == nil {
				return obj, nil
			}
		}
	}

	clean := strings.ReplaceAll(raw, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	clean = strings.TrimSpace(clean)

	obj, err := decodeObject(clean)
	if err != nil {
		return nil, &ParseError{Raw: raw, Err: err}
	}
	return obj, nil
}

// ExtractInto runs ExtractJSON and re-decodes the object into out.
func ExtractInto(raw string, out interface{}) error {
	obj, err := ExtractJSON(raw)
	if err != nil {
		return err
	}
	body, err := json.Marshal(obj)
	if err != nil {
		return &ParseError{Raw: raw, Err: err}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &ParseError{Raw: raw, Err: err}
	}
	return nil
}

func decodeObject(s string) (map[string]interface{}, error) {
	var obj map[string]interface{}
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	if obj == nil {
		// "null" decodes without error but is not an object.
		return nil, fmt.Errorf("decoded value is not a JSON object")
	}
	return obj, nil
}
