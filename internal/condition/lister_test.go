package condition

import (
	"testing"
	"time"
)

func descendingHistory() []Record {
	conds := []string{condInfo, condDirty, condCritical, "garbage", condTwo, condInfo, condCritical, condInfo}
	history := make([]Record, 0, len(conds))
	for i, c := range conds {
		history = append(history, rec(-time.Duration(i)*time.Minute, c, false))
	}
	return history
}

func TestListConditionsWindowAndLevels(t *testing.T) {
	history := descendingHistory()
	start := baseTime.Add(-6 * time.Minute)
	got := ListConditions(history, ListOptions{
		Start:      &start,
		End:        baseTime,
		Severities: NewSeveritySet(SeverityWarning, SeverityCritical),
		Limit:      20,
	})

	// baseTime itself is excluded, the garbage row is skipped, -7m is before start.
	wantOffsets := []time.Duration{-time.Minute, -2 * time.Minute, -4 * time.Minute, -6 * time.Minute}
	if len(got) != len(wantOffsets) {
		t.Fatalf("expected %d rows, got %d: %+v", len(wantOffsets), len(got), got)
	}
	for i, off := range wantOffsets {
		if !got[i].Record.Timestamp.Equal(baseTime.Add(off)) {
			t.Fatalf("row %d: expected %s, got %s", i, baseTime.Add(off), got[i].Record.Timestamp)
		}
	}
	if got[1].Severity != SeverityCritical || got[0].Severity != SeverityWarning {
		t.Fatalf("unexpected severities %+v", got)
	}
}

func TestListConditionsLimit(t *testing.T) {
	history := descendingHistory()
	all := NewSeveritySet(Severities()...)
	end := baseTime.Add(time.Second)

	for _, limit := range []int{0, 1, 3, 100} {
		got := ListConditions(history, ListOptions{End: end, Severities: all, Limit: limit})
		if len(got) > limit {
			t.Fatalf("limit %d exceeded: %d rows", limit, len(got))
		}
		// every returned row appears in history in the same order
		j := 0
		for _, row := range got {
			for j < len(history) && history[j] != row.Record {
				j++
			}
			if j == len(history) {
				t.Fatalf("limit %d: rows are not a subsequence of history", limit)
			}
			j++
		}
	}

	full := ListConditions(history, ListOptions{End: end, Severities: all, Limit: 100})
	if len(full) != 7 {
		t.Fatalf("expected the malformed row to be skipped, got %d rows", len(full))
	}
}

func TestListConditionsNoStart(t *testing.T) {
	history := descendingHistory()
	got := ListConditions(history, ListOptions{
		End:        baseTime.Add(time.Second),
		Severities: NewSeveritySet(SeverityInfo),
		Limit:      20,
	})
	if len(got) != 3 {
		t.Fatalf("expected 3 info rows, got %d", len(got))
	}
}
