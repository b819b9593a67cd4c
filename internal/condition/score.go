package condition

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Per-record weights. A lower weight means a worse condition; the score
// scale downstream depends on these exact values.
const (
	weightCritical = 1
	weightWarning  = 2
	weightInfo     = 3
)

// GraphDataPoint is the score of one bucket.
type GraphDataPoint struct {
	Score      int64                `json:"score"`
	Percentage ConditionsPercentage `json:"percentage"`
}

// ConditionsPercentage holds per-flag shares of a bucket, 0-100.
type ConditionsPercentage struct {
	Sitting      int64 `json:"sitting"`
	IsBroken     int64 `json:"is_broken"`
	IsDirty      int64 `json:"is_dirty"`
	IsOverweight int64 `json:"is_overweight"`
}

var errEmptyBucket = errors.New("condition: empty bucket")

// ScoreBucket reduces the records of one bucket to a score and flag
// percentages. A single invalid record fails the whole bucket.
func ScoreBucket(records []Record) (GraphDataPoint, error) {
	if len(records) == 0 {
		return GraphDataPoint{}, errEmptyBucket
	}

	var (
		rawScore   int64
		sitting    int64
		dirty      int64
		overweight int64
		broken     int64
	)
	for _, rec := range records {
		flags, err := ParseFlagSet(rec.Condition)
		if err != nil {
			return GraphDataPoint{}, fmt.Errorf("score record at %s: %w", rec.Timestamp.Format(time.RFC3339), err)
		}

		sev, err := severityForCount(flags.TrueCount())
		if err != nil {
			return GraphDataPoint{}, err
		}
		rawScore += weightFor(sev)

		if rec.IsSitting {
			sitting++
		}
		if flags.IsDirty {
			dirty++
		}
		if flags.IsOverweight {
			overweight++
		}
		if flags.IsBroken {
			broken++
		}
	}

	count := int64(len(records))
	return GraphDataPoint{
		Score: roundRatio(rawScore*100, 3*count),
		Percentage: ConditionsPercentage{
			Sitting:      roundRatio(sitting*100, count),
			IsBroken:     roundRatio(broken*100, count),
			IsDirty:      roundRatio(dirty*100, count),
			IsOverweight: roundRatio(overweight*100, count),
		},
	}, nil
}

func weightFor(sev Severity) int64 {
	switch sev {
	case SeverityCritical:
		return weightCritical
	case SeverityWarning:
		return weightWarning
	default:
		return weightInfo
	}
}

// roundRatio returns num/den rounded half away from zero.
func roundRatio(num, den int64) int64 {
	return decimal.NewFromInt(num).DivRound(decimal.NewFromInt(den), 0).IntPart()
}
