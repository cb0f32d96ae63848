package domain

import "errors"

// ErrRejectionNoteRequired is returned when an admin rejects a product
// without explaining why.
var ErrRejectionNoteRequired = errors.New("a rejection note is required")
