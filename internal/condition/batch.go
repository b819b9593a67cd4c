package condition

import (
	"fmt"
	"time"
)

// ValidateBatch rejects an ingestion batch that is empty or carries any
// malformed condition string.
func ValidateBatch(records []Record) error {
	if len(records) == 0 {
		return ErrEmptyBatch
	}
	for i, rec := range records {
		if !IsValidFlagSet(rec.Condition) {
			return fmt.Errorf("%w: record %d at %s: %q", ErrInvalidFormat, i, rec.Timestamp.Format(time.RFC3339), rec.Condition)
		}
	}
	return nil
}
