package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// Embedding is an opaque numeric vector stored as JSON text. A nil Embedding
// is stored as SQL NULL.
type Embedding []int

// Value implements driver.Valuer for Embedding.
func (e Embedding) Value() (driver.Value, error) {
	if e == nil {
		return nil, nil
	}
	b, err := json.Marshal([]int(e))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner for Embedding.
func (e *Embedding) Scan(value interface{}) error {
	if value == nil {
		*e = nil
		return nil
	}
	var raw []byte
	switch v := value.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.New("embedding: unsupported column type")
	}
	var out []int
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*e = out
	return nil
}
