package store

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// DuplicateContentError is returned by StoreRaw when content for the hash is
// already stored. Callers that checked Exists first treat this as a
// programmer error; racing writers treat it as "already done".
type DuplicateContentError struct {
	Hash string
}

func (e *DuplicateContentError) Error() string {
	return fmt.Sprintf("content already stored for hash %s", e.Hash)
}

// InvalidTransitionError is returned by UpdateStatus when the requested
// transition is not allowed by the lifecycle state machine.
type InvalidTransitionError struct {
	Hash string
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid status transition %s -> %s for hash %s", e.From, e.To, e.Hash)
}
