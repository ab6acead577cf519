package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

type CommaSeparatedStrings []string

func (s CommaSeparatedStrings) Value() (driver.Value, error) {
	return strings.Join([]string(s), ","), nil
}

func (s *CommaSeparatedStrings) Scan(v interface{}) error {
	var raw string
	switch v := v.(type) {
	case string:
		raw = v
	case []byte:
		raw = string(v)
	case nil:
	default:
		return fmt.Errorf("unsupported type for comma separated strings: %T", v)
	}

	parts := strings.Split(raw, ",")

	if len(parts) > 0 && parts[0] == "" {
		parts = parts[1:]
	}

	*s = CommaSeparatedStrings(parts)

	return nil
}

func (CommaSeparatedStrings) GormDataType() string {
	return "text"
}

// Includes returns true when value is one of the strings.
func (s CommaSeparatedStrings) Includes(value string) bool {
	for _, v := range s {
		if v == value {
			return true
		}
	}
	return false
}

// JSONMap stores a free form map as a JSON encoded text column.
type JSONMap map[string]interface{}

func (m JSONMap) Value() (driver.Value, error) {
	if m == nil {
		return "{}", nil
	}

	b, err := json.Marshal(map[string]interface{}(m))
	if err != nil {
		return nil, fmt.Errorf("json encoding field: %w", err)
	}

	return string(b), nil
}

func (m *JSONMap) Scan(v interface{}) error {
	var raw []byte
	switch v := v.(type) {
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	case nil:
		*m = JSONMap{}
		return nil
	default:
		return fmt.Errorf("unsupported type for json map: %T", v)
	}

	result := JSONMap{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &result); err != nil {
			return fmt.Errorf("json decoding field: %w", err)
		}
	}

	*m = result
	return nil
}

func (JSONMap) GormDataType() string {
	return "text"
}
