package domain

import (
	"database/sql/driver"
	"fmt"

	"github.com/goccy/go-json"
)

// JSONList is a list persisted as serialized JSON text. A nil list is stored
// as NULL and an empty, non-nil list as "[]", so callers can tell "absent"
// from "present but empty".
type JSONList[T any] []T

func (l JSONList[T]) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	data, err := json.Marshal([]T(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *JSONList[T]) Scan(value interface{}) error {
	if value == nil {
		*l = nil
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}

	if len(data) == 0 || string(data) == "null" {
		*l = nil
		return nil
	}

	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return fmt.Errorf("decode JSON column: %w", err)
	}
	if out == nil {
		out = []T{}
	}
	*l = out
	return nil
}

// StringSlice is the common case of a JSON list of plain strings (genres, styles).
type StringSlice = JSONList[string]

// Identifier is a barcode, matrix number or similar release identifier.
type Identifier struct {
	Type        string `json:"type"`
	Value       string `json:"value"`
	Description string `json:"description,omitempty"`
}

// TrackEntry is one line of a release tracklist.
type TrackEntry struct {
	Position string `json:"position"`
	Type     string `json:"type_,omitempty"`
	Title    string `json:"title"`
	Duration string `json:"duration,omitempty"`
}

// LabelRef is a label credit with its catalog number.
type LabelRef struct {
	ID    int64  `json:"id,omitempty"`
	Name  string `json:"name"`
	CatNo string `json:"catno,omitempty"`
}

// FormatRef describes one physical format of a release.
type FormatRef struct {
	Name         string   `json:"name"`
	Qty          string   `json:"qty,omitempty"`
	Text         string   `json:"text,omitempty"`
	Descriptions []string `json:"descriptions,omitempty"`
}

// ArtistCredit is a credited artist, either main or extra.
type ArtistCredit struct {
	ID   int64  `json:"id,omitempty"`
	Name string `json:"name"`
	ANV  string `json:"anv,omitempty"`
	Join string `json:"join,omitempty"`
	Role string `json:"role,omitempty"`
}

// CompanyRef is a company credit (pressing plant, distributor, ...).
type CompanyRef struct {
	ID             int64  `json:"id,omitempty"`
	Name           string `json:"name"`
	EntityTypeName string `json:"entity_type_name,omitempty"`
	CatNo          string `json:"catno,omitempty"`
}

// VideoRef links a video attached to a release.
type VideoRef struct {
	URI      string `json:"uri"`
	Title    string `json:"title,omitempty"`
	Duration int    `json:"duration,omitempty"`
}
