package storage

import (
	"time"

	"isucondition/internal/condition"
)

// Device is a registered condition reporter.
type Device struct {
	ID        int64
	DeviceID  string
	Name      string
	Character string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// AlertRecord captures an emitted critical-condition alert for de-duplication/auditing.
type AlertRecord struct {
	ID          int64
	DeviceID    string
	ConditionTS time.Time
	Severity    condition.Severity
	Channels    []string
	CreatedAt   time.Time
}
