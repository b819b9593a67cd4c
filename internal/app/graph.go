package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"isucondition/internal/condition"
)

// Graph renders the daily graph of a device as a table or JSON and
// optionally exports it as CSV and PNG.
func (a *App) Graph(ctx context.Context, opts GraphOptions) error {
	svc, closeStore, err := a.openService(ctx, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	day := opts.Day
	if day.IsZero() {
		day = time.Now()
	}

	buckets, err := svc.Graph(ctx, opts.DeviceID, day)
	if err != nil {
		return err
	}

	switch opts.Format {
	case "json":
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(buckets); err != nil {
			return err
		}
	case "", "table":
		if err := printGraphTable(a.Out, buckets); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unsupported format %q", opts.Format)
	}

	if opts.CSVPath != "" {
		if err := writeGraphCSV(opts.CSVPath, buckets); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.CSVPath).Msg("graph exported as csv")
	}

	if opts.PNGPath != "" {
		title := fmt.Sprintf("%s %s", opts.DeviceID, buckets[0].StartAt.Format("2006-01-02"))
		if err := writeGraphPNG(opts.PNGPath, title, a.Config.Export.Width, a.Config.Export.Height, buckets); err != nil {
			return err
		}
		a.Logger.Info().Str("path", opts.PNGPath).Msg("graph exported as png")
	}

	return nil
}

func printGraphTable(w io.Writer, buckets []condition.GraphBucket) error {
	writer := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Start\tEnd\tScore\tSitting%\tBroken%\tDirty%\tOverweight%\tConditions")

	for _, bucket := range buckets {
		score, sitting, broken, dirty, overweight := "-", "-", "-", "-", "-"
		if d := bucket.Data; d != nil {
			score = fmt.Sprint(d.Score)
			sitting = fmt.Sprint(d.Percentage.Sitting)
			broken = fmt.Sprint(d.Percentage.IsBroken)
			dirty = fmt.Sprint(d.Percentage.IsDirty)
			overweight = fmt.Sprint(d.Percentage.IsOverweight)
		}
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			bucket.StartAt.Format("2006-01-02 15:04"),
			bucket.EndAt.Format("15:04"),
			score, sitting, broken, dirty, overweight,
			len(bucket.ConditionTimestamps),
		)
	}

	return writer.Flush()
}
