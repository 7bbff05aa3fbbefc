package utils

import "github.com/oklog/ulid/v2"

// NewID returns a lexicographically sortable unique identifier.
// IDs made later in the same process always sort after earlier ones.
func NewID() string {
	return ulid.Make().String()
}
