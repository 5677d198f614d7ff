package repository

import "errors"

// ErrNotFound is returned (wrapped) when a vertex or edge id has no
// corresponding row, matching spec.md §7's NotFound error kind.
var ErrNotFound = errors.New("repository: not found")
