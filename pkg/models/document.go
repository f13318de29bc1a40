package models

import (
	"bytes"
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Document is an opaque JSON document. The bytes a producer supplied are kept
// verbatim so unknown fields survive storage and re-serialization.
type Document []byte

// NewDocument marshals v into a Document.
func NewDocument(v any) (Document, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return Document(data), nil
}

// MustDocument is NewDocument for values known to marshal.
func MustDocument(v any) Document {
	d, err := NewDocument(v)
	if err != nil {
		panic(err)
	}
	return d
}

// IsNull reports whether the document is absent or the JSON literal null.
func (d Document) IsNull() bool {
	trimmed := bytes.TrimSpace(d)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Decode unmarshals the document into v.
func (d Document) Decode(v any) error {
	if d.IsNull() {
		return nil
	}
	return json.Unmarshal(d, v)
}

// String returns the raw JSON text.
func (d Document) String() string {
	if d.IsNull() {
		return "null"
	}
	return string(d)
}

// MarshalJSON emits the stored bytes unchanged.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.IsNull() {
		return []byte("null"), nil
	}
	return d, nil
}

// UnmarshalJSON keeps a copy of the raw bytes.
func (d *Document) UnmarshalJSON(data []byte) error {
	if d == nil {
		return fmt.Errorf("models.Document: UnmarshalJSON on nil pointer")
	}
	if !json.Valid(data) {
		return fmt.Errorf("models.Document: invalid JSON")
	}
	*d = append((*d)[0:0], data...)
	return nil
}

// Value implements driver.Valuer. Null documents are stored as SQL NULL.
func (d Document) Value() (driver.Value, error) {
	if d.IsNull() {
		return nil, nil
	}
	return string(d), nil
}

// Scan implements sql.Scanner.
func (d *Document) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*d = nil
	case string:
		*d = Document(v)
	case []byte:
		*d = append(Document(nil), v...)
	default:
		return fmt.Errorf("models.Document: cannot scan %T", src)
	}
	return nil
}
