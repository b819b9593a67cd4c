package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"isucondition/internal/condition"
	"isucondition/internal/storage"
)

// conditionPayload is one entry of an ingest file.
type conditionPayload struct {
	IsSitting bool   `json:"is_sitting"`
	Condition string `json:"condition"`
	Message   string `json:"message"`
	Timestamp int64  `json:"timestamp"`
}

// Ingest loads a JSON array of condition reports and stores it for a device.
// A path of "-" reads from stdin.
func (a *App) Ingest(ctx context.Context, opts IngestOptions) error {
	records, err := readConditionFile(opts.Path)
	if err != nil {
		return err
	}

	svc, closeStore, err := a.openService(ctx, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	if err := svc.Ingest(ctx, opts.DeviceID, records); err != nil {
		return err
	}
	fmt.Fprintf(a.Out, "stored %d conditions for %s\n", len(records), opts.DeviceID)
	return nil
}

// Register creates or updates a device.
func (a *App) Register(ctx context.Context, opts RegisterOptions) error {
	svc, closeStore, err := a.openService(ctx, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	return svc.RegisterDevice(ctx, storage.Device{
		DeviceID:  opts.DeviceID,
		Name:      opts.Name,
		Character: opts.Character,
	})
}

func readConditionFile(path string) ([]condition.Record, error) {
	var r io.Reader = os.Stdin
	if path != "-" {
		file, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer file.Close()
		r = file
	}
	return decodeConditions(r)
}

func decodeConditions(r io.Reader) ([]condition.Record, error) {
	var payload []conditionPayload
	if err := json.NewDecoder(r).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode conditions: %w", err)
	}

	records := make([]condition.Record, 0, len(payload))
	for _, p := range payload {
		records = append(records, condition.Record{
			Timestamp: time.Unix(p.Timestamp, 0),
			IsSitting: p.IsSitting,
			Condition: p.Condition,
			Message:   p.Message,
		})
	}
	return records, nil
}
