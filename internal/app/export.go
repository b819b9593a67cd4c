package app

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"isucondition/internal/condition"
)

var graphCSVHeader = []string{"start_at", "end_at", "score", "sitting", "is_broken", "is_dirty", "is_overweight", "conditions"}

func writeGraphCSV(path string, buckets []condition.GraphBucket) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return encodeGraphCSV(file, buckets)
}

func encodeGraphCSV(w io.Writer, buckets []condition.GraphBucket) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(graphCSVHeader); err != nil {
		return err
	}

	for _, bucket := range buckets {
		record := []string{
			bucket.StartAt.Format(time.RFC3339),
			bucket.EndAt.Format(time.RFC3339),
			"", "", "", "", "",
			strconv.Itoa(len(bucket.ConditionTimestamps)),
		}
		if d := bucket.Data; d != nil {
			record[2] = strconv.FormatInt(d.Score, 10)
			record[3] = strconv.FormatInt(d.Percentage.Sitting, 10)
			record[4] = strconv.FormatInt(d.Percentage.IsBroken, 10)
			record[5] = strconv.FormatInt(d.Percentage.IsDirty, 10)
			record[6] = strconv.FormatInt(d.Percentage.IsOverweight, 10)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeGraphPNG(path, title string, width, height int, buckets []condition.GraphBucket) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return renderGraphPNG(file, title, width, height, buckets)
}

// renderGraphPNG draws one bar per slot on a fixed 0-100 score axis.
// Slots without data are drawn as zero-height bars.
func renderGraphPNG(w io.Writer, title string, width, height int, buckets []condition.GraphBucket) error {
	if len(buckets) == 0 {
		return fmt.Errorf("no buckets to render")
	}

	bars := make([]chart.Value, len(buckets))
	for i, bucket := range buckets {
		bars[i] = chart.Value{Label: bucket.StartAt.Format("15:04")}
		if bucket.Data != nil {
			bars[i].Value = float64(bucket.Data.Score)
		}
	}

	spacing := width / (len(buckets) * 3)
	if spacing < 1 {
		spacing = 1
	}

	graph := chart.BarChart{
		Title:      title,
		Width:      width,
		Height:     height,
		BarWidth:   spacing * 2,
		BarSpacing: spacing,
		Background: chart.Style{Padding: chart.Box{Top: 40}},
		YAxis: chart.YAxis{
			Name:  "Score",
			Range: &chart.ContinuousRange{Min: 0, Max: 100},
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
		},
		Bars: bars,
	}

	return graph.Render(chart.PNG, w)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
