// Package models defines the plain domain records exchanged with the fleet
// control service and the metadata types shared by storage and catalog.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// FlexID is an identifier that the remote service may encode either as a JSON
// string or as a JSON number. It always marshals as a string.
type FlexID string

// UnmarshalJSON accepts a string, a number, or null.
func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("models: id must be a string or number: %w", err)
		}
		*id = FlexID(n.String())
		return nil
	}
}

// String returns the id as a plain string.
func (id FlexID) String() string { return string(id) }
