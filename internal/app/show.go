package app

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"isucondition/internal/condition"
)

// Conditions prints a device's condition history newest first.
func (a *App) Conditions(ctx context.Context, opts ConditionsOptions) error {
	svc, closeStore, err := a.openService(ctx, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	q := condition.ListOptions{
		Start: opts.Start,
		Limit: a.Config.ResolveLimit(opts.Limit),
	}
	if opts.End != nil {
		q.End = *opts.End
	}
	if opts.Levels != "" {
		levels, err := condition.ParseSeverities(opts.Levels)
		if err != nil {
			return err
		}
		q.Severities = levels
	}

	items, err := svc.Conditions(ctx, opts.DeviceID, q)
	if err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}

	if len(items) == 0 {
		fmt.Fprintln(a.Out, "no conditions found")
		return nil
	}

	loc := svc.GraphOptions().Location
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Time\tLevel\tSitting\tCondition\tMessage")
	for _, item := range items {
		fmt.Fprintf(writer, "%s\t%s\t%t\t%s\t%s\n",
			item.Record.Timestamp.In(loc).Format(time.RFC3339),
			item.Severity,
			item.Record.IsSitting,
			item.Record.Condition,
			sanitizeInline(item.Record.Message),
		)
	}
	return writer.Flush()
}

// Trend prints the latest condition of every device grouped by character.
func (a *App) Trend(ctx context.Context, opts TrendOptions) error {
	svc, closeStore, err := a.openService(ctx, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	trend, err := svc.Trend(ctx)
	if err != nil {
		return err
	}

	if opts.JSON {
		enc := json.NewEncoder(a.Out)
		enc.SetIndent("", "  ")
		return enc.Encode(trend)
	}

	if len(trend) == 0 {
		fmt.Fprintln(a.Out, "no devices with conditions")
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Character\tInfo\tWarning\tCritical\tCritical devices")
	for _, entry := range trend {
		ids := make([]string, 0, len(entry.Critical))
		for _, c := range entry.Critical {
			ids = append(ids, c.DeviceID)
		}
		fmt.Fprintf(writer, "%s\t%d\t%d\t%d\t%s\n",
			entry.Character,
			len(entry.Info),
			len(entry.Warning),
			len(entry.Critical),
			strings.Join(ids, ","),
		)
	}
	return writer.Flush()
}

// Alerts prints recently recorded alerts.
func (a *App) Alerts(ctx context.Context, opts AlertsOptions) error {
	svc, closeStore, err := a.openService(ctx, nil)
	if err != nil {
		return err
	}
	defer closeStore()

	alerts, err := svc.RecentAlerts(ctx, opts.Limit)
	if err != nil {
		return err
	}
	if len(alerts) == 0 {
		fmt.Fprintln(a.Out, "no alerts found")
		return nil
	}

	loc := svc.GraphOptions().Location
	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Created\tDevice\tCondition time\tLevel\tChannels")
	for _, alert := range alerts {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\t%s\n",
			alert.CreatedAt.In(loc).Format(time.RFC3339),
			alert.DeviceID,
			alert.ConditionTS.In(loc).Format(time.RFC3339),
			alert.Severity,
			strings.Join(alert.Channels, ","),
		)
	}
	return writer.Flush()
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	return cleaned
}
