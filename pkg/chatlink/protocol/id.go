package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ID identifies a message, session or user. The backend sends IDs as JSON
// numbers or strings; both decode to the same ID. An empty ID means the
// field was absent.
type ID string

// IsZero reports whether the ID is absent. A numeric zero counts as absent.
func (id ID) IsZero() bool {
	return id == "" || id == "0"
}

// Less orders IDs numerically when both are numeric and lexically
// otherwise. Numeric IDs sort before non-numeric ones.
func (id ID) Less(other ID) bool {
	a, aErr := strconv.ParseUint(string(id), 10, 64)
	b, bErr := strconv.ParseUint(string(other), 10, 64)
	switch {
	case aErr == nil && bErr == nil:
		return a < b
	case aErr == nil:
		return true
	case bErr == nil:
		return false
	}
	return id < other
}

// MarshalJSON writes canonical numeric IDs as JSON numbers and everything
// else as strings.
func (id ID) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseUint(string(id), 10, 64); err == nil && strconv.FormatUint(n, 10) == string(id) {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// UnmarshalJSON accepts a JSON number, a string or null.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a number or a string: %w", err)
	}
	*id = ID(n.String())
	return nil
}
