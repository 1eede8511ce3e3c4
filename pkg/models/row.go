package models

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Row is the loosely-typed wire representation of a single record as
// returned by the remote store. Column names are snake_case, exactly as
// stored.
type Row map[string]any

// ID returns the row identifier, or "" when the row has none yet.
func (r Row) ID() string {
	id, _ := r["id"].(string)
	return id
}

// Clone returns a deep-enough copy for copy-on-write patching: the map
// itself is copied, nested maps are copied one level deep. Rows handed
// to consumers must never be mutated in place.
func (r Row) Clone() Row {
	if r == nil {
		return nil
	}
	out := make(Row, len(r))
	for k, v := range r {
		if nested, ok := v.(map[string]any); ok {
			inner := make(map[string]any, len(nested))
			for nk, nv := range nested {
				inner[nk] = nv
			}
			out[k] = inner
			continue
		}
		out[k] = v
	}
	return out
}

// Decode maps a wire row onto a typed destination struct via its json
// tags. This is the single untyped-boundary crossing per entity type:
// parse here, assume nowhere else.
func Decode(r Row, dest any) error {
	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode row: %w", err)
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	return nil
}

// CloneRows copies a collection for copy-on-write patching.
func CloneRows(rows []Row) []Row {
	if rows == nil {
		return nil
	}
	out := make([]Row, len(rows))
	for i, r := range rows {
		out[i] = r.Clone()
	}
	return out
}

const tempIDPrefix = "temp-"

// IsTempID reports whether id is a locally synthesized identifier that
// has not been confirmed by the remote store.
func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempIDPrefix)
}
