package postgres

import (
	"fmt"

	"github.com/goccy/go-json"
)

// marshalJSON encodes v as a JSONB-ready byte slice.
func marshalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal jsonb: %w", err)
	}
	return b, nil
}

// unmarshalJSON decodes a JSONB column into v. A nil/empty column leaves v
// untouched (its zero value).
func unmarshalJSON(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal jsonb: %w", err)
	}
	return nil
}
