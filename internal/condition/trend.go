package condition

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// TrendCondition is a device's latest condition timestamp within a trend list.
type TrendCondition struct {
	DeviceID  string
	Timestamp time.Time
}

// MarshalJSON encodes the timestamp as unix seconds.
func (c TrendCondition) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		DeviceID  string `json:"device_id"`
		Timestamp int64  `json:"timestamp"`
	}{c.DeviceID, c.Timestamp.Unix()})
}

// TrendEntry partitions the devices of one character by the severity of
// their latest condition.
type TrendEntry struct {
	Character string           `json:"character"`
	Info      []TrendCondition `json:"info"`
	Warning   []TrendCondition `json:"warning"`
	Critical  []TrendCondition `json:"critical"`
}

// BuildTrend classifies the latest record of every device, grouped by
// character. Characters are emitted in ascending order and every list is
// sorted most recent first.
func BuildTrend(byCharacter map[string][]DeviceHistory) ([]TrendEntry, error) {
	characters := make([]string, 0, len(byCharacter))
	for character := range byCharacter {
		characters = append(characters, character)
	}
	sort.Strings(characters)

	entries := make([]TrendEntry, 0, len(characters))
	for _, character := range characters {
		entry := TrendEntry{
			Character: character,
			Info:      []TrendCondition{},
			Warning:   []TrendCondition{},
			Critical:  []TrendCondition{},
		}

		for _, device := range byCharacter[character] {
			latest, ok := Latest(device.History)
			if !ok {
				continue
			}
			sev, err := Classify(latest.Condition)
			if err != nil {
				return nil, fmt.Errorf("trend for device %s: %w", device.DeviceID, err)
			}

			item := TrendCondition{DeviceID: device.DeviceID, Timestamp: latest.Timestamp}
			switch sev {
			case SeverityInfo:
				entry.Info = append(entry.Info, item)
			case SeverityWarning:
				entry.Warning = append(entry.Warning, item)
			case SeverityCritical:
				entry.Critical = append(entry.Critical, item)
			}
		}

		sortNewestFirst(entry.Info)
		sortNewestFirst(entry.Warning)
		sortNewestFirst(entry.Critical)
		entries = append(entries, entry)
	}
	return entries, nil
}

func sortNewestFirst(items []TrendCondition) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp.After(items[j].Timestamp)
	})
}
