package models

import (
	"github.com/oklog/ulid/v2"
)

// TempID synthesizes a placeholder identifier for an optimistically
// inserted row. The prefix keeps it distinguishable from
// server-confirmed ids until reconciliation replaces it; the ULID body
// keeps concurrent inserts sortable by creation time.
func TempID() string {
	return tempIDPrefix + ulid.Make().String()
}
