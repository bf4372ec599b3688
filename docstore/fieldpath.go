// ABOUTME: Dotted field-path helpers for partial document updates
// ABOUTME: Reads and writes nested values inside decoded JSON objects
package docstore

import (
	"encoding/json"
	"fmt"
	"strings"
)

func splitPath(path string) ([]string, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	segs := strings.Split(path, ".")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

// getPath returns the value at segs, or nil when any segment is missing.
func getPath(doc map[string]interface{}, segs []string) interface{} {
	var cur interface{} = doc
	for _, s := range segs {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil
		}
		cur = m[s]
	}
	return cur
}

// setPath writes value at segs, creating intermediate objects as needed.
func setPath(doc map[string]interface{}, segs []string, value interface{}) error {
	cur := doc
	for i, s := range segs[:len(segs)-1] {
		next, exists := cur[s]
		if !exists || next == nil {
			m := make(map[string]interface{})
			cur[s] = m
			cur = m
			continue
		}
		m, ok := next.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%w: %s is not an object", ErrInvalidPath, strings.Join(segs[:i+1], "."))
		}
		cur = m
	}
	cur[segs[len(segs)-1]] = value
	return nil
}

// toJSONValue round-trips v through JSON so documents only hold JSON types.
func toJSONValue(v interface{}) (interface{}, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out interface{}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}
