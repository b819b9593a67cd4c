package condition

import "time"

// Record is a single condition report pushed by a device.
type Record struct {
	DeviceID  string
	Timestamp time.Time
	IsSitting bool
	Condition string
	Message   string
}

// DeviceHistory pairs a device with its condition records.
type DeviceHistory struct {
	DeviceID string
	History  []Record
}

// Latest returns the record with the greatest timestamp. The first one wins on ties.
func Latest(history []Record) (Record, bool) {
	if len(history) == 0 {
		return Record{}, false
	}
	latest := history[0]
	for _, rec := range history[1:] {
		if rec.Timestamp.After(latest.Timestamp) {
			latest = rec
		}
	}
	return latest, true
}
