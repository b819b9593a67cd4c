package condition

import "errors"

var (
	// ErrInvalidFormat reports a condition string outside the is_dirty/is_overweight/is_broken grammar.
	ErrInvalidFormat = errors.New("condition: invalid format")
	// ErrInvariantViolation reports a true-flag count the classifier cannot map.
	ErrInvariantViolation = errors.New("condition: invariant violation")
	// ErrEmptyBatch reports an ingestion batch without records.
	ErrEmptyBatch = errors.New("condition: empty batch")
)
