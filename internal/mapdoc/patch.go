package mapdoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Patch is a set of top-level JSON fields merged over a record, the way an
// object spread would. Values may be any JSON-marshalable value, including
// json.RawMessage.
type Patch map[string]any

// mergePatch overlays patch onto cur and decodes the result into a fresh T.
// Keys that T does not know are dropped.
func mergePatch[T any](cur T, patch Patch) (T, error) {
	var out T
	fields, err := toFields(cur)
	if err != nil {
		return out, err
	}
	for k, v := range patch {
		fields[k] = v
	}
	if err := fromFields(fields, &out); err != nil {
		return out, fmt.Errorf("%w: %v", ErrInvalidCommand, err)
	}
	return out, nil
}

func toFields(v any) (map[string]any, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	return fields, nil
}

func fromFields(fields map[string]any, out any) error {
	raw, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// getProperty returns the JSON value at a dotted path inside v. The second
// result is false when the property is absent.
func getProperty(v any, path string) (json.RawMessage, bool, error) {
	fields, err := toFields(v)
	if err != nil {
		return nil, false, err
	}
	keys := strings.Split(path, ".")
	var cur any = fields
	for _, k := range keys {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false, nil
		}
		if cur, ok = m[k]; !ok {
			return nil, false, nil
		}
	}
	raw, err := json.Marshal(cur)
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

// setProperty writes value at a dotted path inside cur, creating intermediate
// objects as needed. When present is false the property is removed instead.
func setProperty[T any](cur T, path string, value json.RawMessage, present bool) (T, error) {
	var out T
	if path == "" {
		return out, fmt.Errorf("%w: empty property path", ErrInvalidCommand)
	}
	fields, err := toFields(cur)
	if err != nil {
		return out, err
	}
	keys := strings.Split(path, ".")
	m := fields
	for _, k := range keys[:len(keys)-1] {
		next, ok := m[k].(map[string]any)
		if !ok {
			if !present {
				return cur, nil
			}
			next = map[string]any{}
			m[k] = next
		}
		m = next
	}
	last := keys[len(keys)-1]
	if present {
		m[last] = value
	} else {
		delete(m, last)
	}
	if err := fromFields(fields, &out); err != nil {
		return out, fmt.Errorf("%w: %s: %v", ErrInvalidCommand, path, err)
	}
	return out, nil
}
