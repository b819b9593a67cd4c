package condition

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func jstOptions() Options {
	return Options{Location: time.FixedZone("JST", 9*60*60), BucketWidth: time.Hour, Slots: 24}
}

func TestBuildDailyGraphEmptyHistory(t *testing.T) {
	opts := jstOptions()
	buckets, err := BuildDailyGraph("isu-1", baseTime, nil, opts)
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	if len(buckets) != 24 {
		t.Fatalf("expected 24 buckets, got %d", len(buckets))
	}

	midnight := time.Date(2021, 8, 20, 0, 0, 0, 0, opts.Location)
	for i, b := range buckets {
		if !b.StartAt.Equal(midnight.Add(time.Duration(i) * time.Hour)) {
			t.Fatalf("bucket %d starts at %s", i, b.StartAt)
		}
		if i > 0 && !buckets[i-1].EndAt.Equal(b.StartAt) {
			t.Fatalf("gap between bucket %d and %d", i-1, i)
		}
		if b.Data != nil || len(b.ConditionTimestamps) != 0 {
			t.Fatalf("bucket %d should be empty", i)
		}
	}
	if !buckets[23].EndAt.Equal(midnight.Add(24 * time.Hour)) {
		t.Fatalf("last bucket ends at %s", buckets[23].EndAt)
	}
}

func TestBuildDailyGraphSingleHour(t *testing.T) {
	t0 := baseTime.Add(12 * time.Minute)
	history := []Record{
		{DeviceID: "isu-1", Timestamp: t0, Condition: condInfo},
		{DeviceID: "isu-1", Timestamp: t0.Add(30 * time.Minute), Condition: condDirty},
	}

	buckets, err := BuildDailyGraph("isu-1", baseTime, history, jstOptions())
	if err != nil {
		t.Fatalf("graph: %v", err)
	}

	var filled []GraphBucket
	for _, b := range buckets {
		if b.Data != nil {
			filled = append(filled, b)
		}
	}
	if len(filled) != 1 {
		t.Fatalf("expected one filled bucket, got %d", len(filled))
	}
	b := filled[0]
	if !b.StartAt.Equal(baseTime) {
		t.Fatalf("expected bucket at %s, got %s", baseTime, b.StartAt)
	}
	if b.Data.Score != 83 || b.Data.Percentage.IsDirty != 50 {
		t.Fatalf("unexpected data point %+v", *b.Data)
	}
	if len(b.ConditionTimestamps) != 2 || !b.ConditionTimestamps[0].Equal(t0) {
		t.Fatalf("unexpected timestamps %v", b.ConditionTimestamps)
	}
}

func TestBuildDailyGraphSortsAndIgnoresOtherDays(t *testing.T) {
	history := []Record{
		rec(2*time.Hour+5*time.Minute, condCritical, false),
		rec(-24*time.Hour, condInfo, false),
		rec(5*time.Minute, condInfo, true),
		rec(2*time.Hour+1*time.Minute, condInfo, false),
		rec(24*time.Hour, condInfo, false),
	}
	original := append([]Record(nil), history...)

	opts := jstOptions()
	buckets, err := BuildDailyGraph("isu-1", baseTime, history, opts)
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	for i := range history {
		if history[i] != original[i] {
			t.Fatal("input history was mutated")
		}
	}

	at10 := buckets[10]
	if at10.Data == nil || at10.Data.Score != 100 || at10.Data.Percentage.Sitting != 100 {
		t.Fatalf("unexpected 10:00 bucket %+v", at10)
	}
	at12 := buckets[12]
	if at12.Data == nil || len(at12.ConditionTimestamps) != 2 {
		t.Fatalf("unexpected 12:00 bucket %+v", at12)
	}
	if !at12.ConditionTimestamps[0].Before(at12.ConditionTimestamps[1]) {
		t.Fatal("timestamps within a bucket must ascend")
	}
	want, _ := ScoreBucket([]Record{history[3], history[0]})
	if *at12.Data != want {
		t.Fatalf("bucket score %+v differs from direct score %+v", *at12.Data, want)
	}

	filled := 0
	for _, b := range buckets {
		if b.Data != nil {
			filled++
		}
	}
	if filled != 2 {
		t.Fatalf("records from other days leaked into the graph: %d filled", filled)
	}
}

func TestBuildDailyGraphNormalisesDay(t *testing.T) {
	opts := jstOptions()
	buckets, err := BuildDailyGraph("isu-1", baseTime.Add(7*time.Hour+13*time.Minute), nil, opts)
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	midnight := time.Date(2021, 8, 20, 0, 0, 0, 0, opts.Location)
	if !buckets[0].StartAt.Equal(midnight) {
		t.Fatalf("expected graph to start at %s, got %s", midnight, buckets[0].StartAt)
	}
}

func TestBuildDailyGraphBucketsInLocalZone(t *testing.T) {
	opts := Options{Location: time.FixedZone("IST", 5*60*60+30*60), BucketWidth: time.Hour, Slots: 24}
	ts := time.Date(2021, 8, 20, 9, 45, 0, 0, opts.Location)
	buckets, err := BuildDailyGraph("isu-1", ts, []Record{{Timestamp: ts, Condition: condInfo}}, opts)
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	if buckets[9].Data == nil {
		t.Fatal("record should land in the local 09:00 bucket")
	}
}

func TestBuildDailyGraphInvalidRecord(t *testing.T) {
	history := []Record{rec(0, condInfo, false), rec(time.Minute, "is_dirty=true", false)}
	if _, err := BuildDailyGraph("isu-1", baseTime, history, jstOptions()); !errors.Is(err, ErrInvalidFormat) {
		t.Fatalf("expected ErrInvalidFormat, got %v", err)
	}
}

func TestGraphBucketJSON(t *testing.T) {
	buckets, err := BuildDailyGraph("isu-1", baseTime, []Record{rec(0, condInfo, false)}, jstOptions())
	if err != nil {
		t.Fatalf("graph: %v", err)
	}
	raw, err := json.Marshal(buckets[10])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded struct {
		StartAt    int64           `json:"start_at"`
		EndAt      int64           `json:"end_at"`
		Data       *GraphDataPoint `json:"data"`
		Timestamps []int64         `json:"condition_timestamps"`
	}
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.StartAt != baseTime.Unix() || decoded.EndAt-decoded.StartAt != 3600 {
		t.Fatalf("unexpected window %d-%d", decoded.StartAt, decoded.EndAt)
	}
	if decoded.Data == nil || len(decoded.Timestamps) != 1 {
		t.Fatalf("unexpected payload %s", raw)
	}

	empty, err := json.Marshal(buckets[0])
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(empty), `"data":null`) || !strings.Contains(string(empty), `"condition_timestamps":[]`) {
		t.Fatalf("unexpected empty payload %s", empty)
	}
}
