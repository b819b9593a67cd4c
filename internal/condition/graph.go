package condition

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

const (
	// DefaultTimeZone is the deployment zone condition timestamps are bucketed in.
	DefaultTimeZone = "Asia/Tokyo"
	// DefaultBucketWidth is the width of one graph slot.
	DefaultBucketWidth = time.Hour
	// DefaultSlots is the number of slots in a daily graph.
	DefaultSlots = 24
)

// Options carries the bucketing parameters for BuildDailyGraph.
type Options struct {
	Location    *time.Location
	BucketWidth time.Duration
	Slots       int
}

// DefaultOptions returns JST, hourly buckets, 24 slots.
func DefaultOptions() Options {
	return Options{
		Location:    LoadLocation(DefaultTimeZone),
		BucketWidth: DefaultBucketWidth,
		Slots:       DefaultSlots,
	}
}

// LoadLocation resolves name, falling back to a fixed +09:00 zone for
// Asia/Tokyo when tzdata is unavailable and to UTC otherwise.
func LoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err == nil {
		return loc
	}
	if name == DefaultTimeZone {
		return time.FixedZone("JST", 9*60*60)
	}
	return time.UTC
}

func (o Options) normalized() Options {
	if o.Location == nil {
		o.Location = LoadLocation(DefaultTimeZone)
	}
	if o.BucketWidth <= 0 {
		o.BucketWidth = DefaultBucketWidth
	}
	if o.Slots <= 0 {
		o.Slots = DefaultSlots
	}
	return o
}

// DayStart returns local midnight of the calendar day containing t.
func (o Options) DayStart(t time.Time) time.Time {
	o = o.normalized()
	lt := t.In(o.Location)
	return time.Date(lt.Year(), lt.Month(), lt.Day(), 0, 0, 0, 0, o.Location)
}

// BucketStart returns the start of the bucket containing t, aligned to local midnight.
func (o Options) BucketStart(t time.Time) time.Time {
	o = o.normalized()
	midnight := o.DayStart(t)
	return midnight.Add(t.Sub(midnight).Truncate(o.BucketWidth))
}

// GraphBucket is one slot of a daily graph. Data is nil for slots without records.
type GraphBucket struct {
	StartAt             time.Time
	EndAt               time.Time
	Data                *GraphDataPoint
	ConditionTimestamps []time.Time
}

type graphBucketJSON struct {
	StartAt             int64           `json:"start_at"`
	EndAt               int64           `json:"end_at"`
	Data                *GraphDataPoint `json:"data"`
	ConditionTimestamps []int64         `json:"condition_timestamps"`
}

// MarshalJSON encodes times as unix seconds.
func (b GraphBucket) MarshalJSON() ([]byte, error) {
	out := graphBucketJSON{
		StartAt:             b.StartAt.Unix(),
		EndAt:               b.EndAt.Unix(),
		Data:                b.Data,
		ConditionTimestamps: make([]int64, 0, len(b.ConditionTimestamps)),
	}
	for _, ts := range b.ConditionTimestamps {
		out.ConditionTimestamps = append(out.ConditionTimestamps, ts.Unix())
	}
	return json.Marshal(out)
}

type scoredRun struct {
	start      time.Time
	data       GraphDataPoint
	timestamps []time.Time
}

// BuildDailyGraph buckets a device's history into opts.Slots slots starting
// at local midnight of day. Every run of records sharing a bucket is scored;
// an invalid record anywhere in history fails the call.
func BuildDailyGraph(deviceID string, day time.Time, history []Record, opts Options) ([]GraphBucket, error) {
	opts = opts.normalized()

	sorted := make([]Record, len(history))
	copy(sorted, history)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	runs, err := scoreRuns(sorted, opts)
	if err != nil {
		return nil, fmt.Errorf("build graph for %s: %w", deviceID, err)
	}

	start := opts.DayStart(day)
	idx := sort.Search(len(runs), func(i int) bool {
		return !runs[i].start.Before(start)
	})

	buckets := make([]GraphBucket, 0, opts.Slots)
	for i := 0; i < opts.Slots; i++ {
		slot := start.Add(time.Duration(i) * opts.BucketWidth)
		bucket := GraphBucket{
			StartAt:             slot,
			EndAt:               slot.Add(opts.BucketWidth),
			ConditionTimestamps: []time.Time{},
		}
		for idx < len(runs) && runs[idx].start.Before(bucket.EndAt) {
			if runs[idx].start.Equal(slot) {
				data := runs[idx].data
				bucket.Data = &data
				bucket.ConditionTimestamps = runs[idx].timestamps
			}
			idx++
		}
		buckets = append(buckets, bucket)
	}
	return buckets, nil
}

// scoreRuns partitions ascending records into maximal same-bucket runs and scores each.
func scoreRuns(sorted []Record, opts Options) ([]scoredRun, error) {
	var runs []scoredRun
	for lo := 0; lo < len(sorted); {
		start := opts.BucketStart(sorted[lo].Timestamp)
		hi := lo + 1
		for hi < len(sorted) && opts.BucketStart(sorted[hi].Timestamp).Equal(start) {
			hi++
		}

		run := sorted[lo:hi]
		data, err := ScoreBucket(run)
		if err != nil {
			return nil, err
		}
		timestamps := make([]time.Time, 0, len(run))
		for _, rec := range run {
			timestamps = append(timestamps, rec.Timestamp)
		}
		runs = append(runs, scoredRun{start: start, data: data, timestamps: timestamps})
		lo = hi
	}
	return runs, nil
}
