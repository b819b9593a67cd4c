package condition

import (
	"encoding/json"
	"time"
)

// ListOptions bound a condition listing.
type ListOptions struct {
	Start      *time.Time
	End        time.Time
	Severities SeveritySet
	Limit      int
}

// ListedCondition is a record paired with its level.
type ListedCondition struct {
	Record   Record
	Severity Severity
}

// MarshalJSON renders the listing row with a unix timestamp.
func (c ListedCondition) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DeviceID       string   `json:"device_id"`
		Timestamp      int64    `json:"timestamp"`
		IsSitting      bool     `json:"is_sitting"`
		Condition      string   `json:"condition"`
		ConditionLevel Severity `json:"condition_level"`
		Message        string   `json:"message"`
	}{
		DeviceID:       c.Record.DeviceID,
		Timestamp:      c.Record.Timestamp.Unix(),
		IsSitting:      c.Record.IsSitting,
		Condition:      c.Record.Condition,
		ConditionLevel: c.Severity,
		Message:        c.Record.Message,
	})
}

// ListConditions filters a newest-first history to the window and levels
// in opts and caps it at opts.Limit entries.
//
// Malformed records are skipped here while BuildDailyGraph fails on them.
// Keep the two policies distinct.
func ListConditions(history []Record, opts ListOptions) []ListedCondition {
	out := make([]ListedCondition, 0)
	if opts.Limit <= 0 {
		return out
	}
	for _, rec := range history {
		if !rec.Timestamp.Before(opts.End) {
			continue
		}
		if opts.Start != nil && rec.Timestamp.Before(*opts.Start) {
			continue
		}
		sev, err := Classify(rec.Condition)
		if err != nil {
			continue
		}
		if !opts.Severities.Contains(sev) {
			continue
		}
		out = append(out, ListedCondition{Record: rec, Severity: sev})
		if len(out) == opts.Limit {
			break
		}
	}
	return out
}
