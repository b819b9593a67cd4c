package app

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"isucondition/internal/condition"
	"isucondition/internal/config"
	"isucondition/internal/storage"
)

const (
	condInfo     = "is_dirty=false,is_overweight=false,is_broken=false"
	condCritical = "is_dirty=true,is_overweight=true,is_broken=true"
)

var jst = time.FixedZone("JST", 9*60*60)

func newTestApp(t *testing.T) (*App, *bytes.Buffer) {
	t.Helper()
	cfg := &config.Config{
		Database: config.DatabaseConfig{
			Driver:     "sqlite",
			SQLitePath: filepath.Join(t.TempDir(), "isucondition.db"),
		},
		Graph: config.GraphConfig{
			TimeZone:    condition.DefaultTimeZone,
			BucketWidth: time.Hour,
			Slots:       24,
		},
		Conditions: config.ConditionsConfig{Limit: 20},
		Export:     config.ExportConfig{Width: 640, Height: 360},
	}
	out := &bytes.Buffer{}
	a := NewApp(cfg, zerolog.Nop())
	a.Out = out
	return a, out
}

func seedDevice(t *testing.T, a *App, deviceID string, records []condition.Record) {
	t.Helper()
	ctx := context.Background()
	repo, err := storage.Open(ctx, a.Config.Database)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer repo.Close()

	if err := repo.UpsertDevice(ctx, storage.Device{DeviceID: deviceID, Name: deviceID, Character: "いじっぱり"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := repo.InsertConditions(ctx, deviceID, records); err != nil {
		t.Fatalf("insert: %v", err)
	}
}

func TestDecodeConditions(t *testing.T) {
	input := `[{"is_sitting":true,"condition":"` + condInfo + `","message":"ok","timestamp":1629421200}]`
	records, err := decodeConditions(strings.NewReader(input))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	rec := records[0]
	if !rec.IsSitting || rec.Message != "ok" || rec.Timestamp.Unix() != 1629421200 {
		t.Fatalf("unexpected record %+v", rec)
	}

	if _, err := decodeConditions(strings.NewReader(`{"bad":`)); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestRegisterIngestAndGraphJSON(t *testing.T) {
	ctx := context.Background()
	a, out := newTestApp(t)

	if err := a.Register(ctx, RegisterOptions{DeviceID: "isu-1", Character: "いじっぱり"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	path := filepath.Join(t.TempDir(), "conditions.json")
	payload := []conditionPayload{
		{IsSitting: true, Condition: condInfo, Message: "a", Timestamp: time.Date(2021, 8, 20, 10, 0, 0, 0, jst).Unix()},
		{Condition: condCritical, Message: "b", Timestamp: time.Date(2021, 8, 20, 10, 20, 0, 0, jst).Unix()},
	}
	writeJSONFile(t, path, payload)

	if err := a.Ingest(ctx, IngestOptions{DeviceID: "isu-1", Path: path}); err != nil {
		t.Fatalf("ingest: %v", err)
	}
	out.Reset()

	err := a.Graph(ctx, GraphOptions{DeviceID: "isu-1", Day: time.Date(2021, 8, 20, 0, 0, 0, 0, jst), Format: "json"})
	if err != nil {
		t.Fatalf("graph: %v", err)
	}

	var buckets []struct {
		StartAt int64 `json:"start_at"`
		Data    *struct {
			Score int64 `json:"score"`
		} `json:"data"`
		Timestamps []int64 `json:"condition_timestamps"`
	}
	if err := json.Unmarshal(out.Bytes(), &buckets); err != nil {
		t.Fatalf("decode graph output: %v", err)
	}
	if len(buckets) != 24 {
		t.Fatalf("expected 24 buckets, got %d", len(buckets))
	}
	// (3 + 1) * 100 / (3 * 2) = 66.67
	if buckets[10].Data == nil || buckets[10].Data.Score != 67 || len(buckets[10].Timestamps) != 2 {
		t.Fatalf("unexpected 10:00 bucket %+v", buckets[10])
	}
	if buckets[9].Data != nil {
		t.Fatalf("expected empty 09:00 bucket")
	}
}

func TestIngestRejectsUnknownDevice(t *testing.T) {
	a, _ := newTestApp(t)
	path := filepath.Join(t.TempDir(), "conditions.json")
	writeJSONFile(t, path, []conditionPayload{{Condition: condInfo, Timestamp: 1629421200}})

	err := a.Ingest(context.Background(), IngestOptions{DeviceID: "missing", Path: path})
	if !errors.Is(err, storage.ErrDeviceNotFound) {
		t.Fatalf("expected ErrDeviceNotFound, got %v", err)
	}
}

func TestAuditReportsCorruptHistory(t *testing.T) {
	a, out := newTestApp(t)
	seedDevice(t, a, "isu-1", []condition.Record{
		{Timestamp: time.Date(2021, 8, 20, 10, 0, 0, 0, jst), Condition: condInfo},
		{Timestamp: time.Date(2021, 8, 21, 10, 0, 0, 0, jst), Condition: "is_dirty=maybe"},
	})

	err := a.Audit(context.Background(), AuditOptions{
		DeviceID: "isu-1",
		From:     time.Date(2021, 8, 20, 0, 0, 0, 0, jst),
		To:       time.Date(2021, 8, 22, 0, 0, 0, 0, jst),
	})
	if err == nil {
		t.Fatalf("expected audit failure")
	}
	if !strings.Contains(out.String(), "2021-08-20\tok\t1 buckets with data") {
		t.Fatalf("day without corrupt records should pass, got %q", out.String())
	}
	if !strings.Contains(out.String(), "2021-08-21\tFAILED") {
		t.Fatalf("day with the corrupt record should fail, got %q", out.String())
	}
	if !strings.Contains(err.Error(), "1 of 2 days") {
		t.Fatalf("unexpected audit error %v", err)
	}
}

func TestAuditCleanHistory(t *testing.T) {
	a, out := newTestApp(t)
	seedDevice(t, a, "isu-1", []condition.Record{
		{Timestamp: time.Date(2021, 8, 20, 10, 0, 0, 0, jst), Condition: condInfo},
		{Timestamp: time.Date(2021, 8, 20, 12, 0, 0, 0, jst), Condition: condCritical},
	})

	err := a.Audit(context.Background(), AuditOptions{
		DeviceID: "isu-1",
		From:     time.Date(2021, 8, 20, 15, 0, 0, 0, jst),
		To:       time.Date(2021, 8, 21, 12, 0, 0, 0, jst),
	})
	if err != nil {
		t.Fatalf("audit: %v", err)
	}
	if !strings.Contains(out.String(), "2021-08-20\tok\t2 buckets with data") {
		t.Fatalf("unexpected audit output %q", out.String())
	}
	if !strings.Contains(out.String(), "2021-08-21\tok\t0 buckets with data") {
		t.Fatalf("unexpected audit output %q", out.String())
	}
}

func TestConditionsTable(t *testing.T) {
	a, out := newTestApp(t)
	seedDevice(t, a, "isu-1", []condition.Record{
		{Timestamp: time.Date(2021, 8, 20, 10, 0, 0, 0, jst), Condition: condInfo, Message: "calm"},
		{Timestamp: time.Date(2021, 8, 20, 11, 0, 0, 0, jst), Condition: condCritical, Message: "line\nbreak"},
	})

	end := time.Date(2021, 8, 21, 0, 0, 0, 0, jst)
	if err := a.Conditions(context.Background(), ConditionsOptions{DeviceID: "isu-1", End: &end, Levels: "critical"}); err != nil {
		t.Fatalf("conditions: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", out.String())
	}
	if !strings.Contains(lines[1], "critical") || !strings.Contains(lines[1], "line break") {
		t.Fatalf("unexpected row %q", lines[1])
	}
}

func TestEncodeGraphCSV(t *testing.T) {
	start := time.Date(2021, 8, 20, 0, 0, 0, 0, jst)
	buckets := []condition.GraphBucket{
		{
			StartAt:             start,
			EndAt:               start.Add(time.Hour),
			Data:                &condition.GraphDataPoint{Score: 83, Percentage: condition.ConditionsPercentage{Sitting: 50, IsDirty: 50}},
			ConditionTimestamps: []time.Time{start, start.Add(time.Minute)},
		},
		{StartAt: start.Add(time.Hour), EndAt: start.Add(2 * time.Hour), ConditionTimestamps: []time.Time{}},
	}

	var buf bytes.Buffer
	if err := encodeGraphCSV(&buf, buckets); err != nil {
		t.Fatalf("encode: %v", err)
	}
	rows, err := csv.NewReader(&buf).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header and 2 rows, got %d", len(rows))
	}
	if rows[1][2] != "83" || rows[1][3] != "50" || rows[1][5] != "50" || rows[1][7] != "2" {
		t.Fatalf("unexpected data row %v", rows[1])
	}
	if rows[2][2] != "" || rows[2][7] != "0" {
		t.Fatalf("empty bucket should have blank score, got %v", rows[2])
	}
}

func TestRenderGraphPNG(t *testing.T) {
	start := time.Date(2021, 8, 20, 0, 0, 0, 0, jst)
	buckets := make([]condition.GraphBucket, 24)
	for i := range buckets {
		buckets[i] = condition.GraphBucket{StartAt: start.Add(time.Duration(i) * time.Hour)}
	}
	buckets[10].Data = &condition.GraphDataPoint{Score: 67}

	var buf bytes.Buffer
	if err := renderGraphPNG(&buf, "isu-1 2021-08-20", 640, 360, buckets); err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")) {
		t.Fatalf("output is not a png")
	}
}

func writeJSONFile(t *testing.T, path string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
}
