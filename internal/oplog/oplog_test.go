package oplog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestLogger(t *testing.T) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "dataset.csv")
	l, err := New(path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return l, path
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return records
}

func TestNewCreatesFileWithHeader(t *testing.T) {
	_, path := newTestLogger(t)

	records := readAll(t, path)
	if len(records) != 1 {
		t.Fatalf("rows: got %d, want header only", len(records))
	}
	if got := records[0][0]; got != "timestamp" {
		t.Errorf("first header column: got %q, want \"timestamp\"", got)
	}
	if got := len(records[0]); got != len(header) {
		t.Errorf("header columns: got %d, want %d", got, len(header))
	}
}

func TestNewKeepsExistingFile(t *testing.T) {
	l, path := newTestLogger(t)

	if err := l.Append(Entry{Mode: "AUTO", DistanceCM: 12.5}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	// Reopening must not truncate existing rows.
	if _, err := New(path); err != nil {
		t.Fatalf("New on existing file failed: %v", err)
	}
	if records := readAll(t, path); len(records) != 2 {
		t.Errorf("rows after reopen: got %d, want 2", len(records))
	}
}

func TestAppendRecordLayout(t *testing.T) {
	l, path := newTestLogger(t)

	err := l.Append(Entry{
		Timestamp:   time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC),
		Mode:        "AUTO",
		GrabSuccess: true,
		DistanceCM:  15.3,
		Servos:      []int{90, 45, 120, 90, 180},
		MotorSpeed:  -40,
		ExecutionMS: 2150,
	})
	if err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	records := readAll(t, path)
	if len(records) != 2 {
		t.Fatalf("rows: got %d, want 2", len(records))
	}
	row := records[1]
	want := []string{
		"2026-03-14T09:26:53Z", "AUTO", "true", "15.30",
		"90", "45", "120", "90", "180",
		"-40", "2150", "",
	}
	if len(row) != len(want) {
		t.Fatalf("columns: got %v, want %v", row, want)
	}
	for i := range want {
		if row[i] != want[i] {
			t.Errorf("column %d: got %q, want %q", i, row[i], want[i])
		}
	}
}

func TestAppendPadsMissingServos(t *testing.T) {
	l, path := newTestLogger(t)

	if err := l.Append(Entry{Mode: "MANUAL", Servos: []int{90, 45}}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	row := readAll(t, path)[1]
	for i := 0; i < servoColumns; i++ {
		want := "0"
		if i == 0 {
			want = "90"
		} else if i == 1 {
			want = "45"
		}
		if got := row[4+i]; got != want {
			t.Errorf("servo column %d: got %q, want %q", i, got, want)
		}
	}
}

func TestStatisticsAggregatesTrailingWindow(t *testing.T) {
	l, _ := newTestLogger(t)

	now := time.Now()
	entries := []Entry{
		{Timestamp: now.Add(-time.Hour), GrabSuccess: true, DistanceCM: 10},
		{Timestamp: now.Add(-2 * time.Hour), GrabSuccess: false, DistanceCM: 14},
		{Timestamp: now.Add(-3 * time.Hour), GrabSuccess: true, DistanceCM: 18},
		// Outside the 7-day window, must be excluded.
		{Timestamp: now.AddDate(0, 0, -10), GrabSuccess: true, DistanceCM: 99},
	}
	for _, e := range entries {
		if err := l.Append(e); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	stats, err := l.Statistics(7)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.TotalOperations != 3 {
		t.Errorf("total: got %d, want 3", stats.TotalOperations)
	}
	if stats.SuccessfulGrabs != 2 {
		t.Errorf("successes: got %d, want 2", stats.SuccessfulGrabs)
	}
	if stats.SuccessRate < 0.666 || stats.SuccessRate > 0.667 {
		t.Errorf("success rate: got %.4f, want 2/3", stats.SuccessRate)
	}
	if stats.AvgDistanceCM != 14 {
		t.Errorf("avg distance: got %.2f, want 14", stats.AvgDistanceCM)
	}
	if stats.Days != 7 {
		t.Errorf("days: got %d, want 7", stats.Days)
	}
}

func TestStatisticsEmptyLog(t *testing.T) {
	l, _ := newTestLogger(t)

	stats, err := l.Statistics(7)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.TotalOperations != 0 || stats.SuccessRate != 0 || stats.AvgDistanceCM != 0 {
		t.Errorf("empty log stats: got %+v, want zeros", stats)
	}
}

func TestStatisticsClampsDays(t *testing.T) {
	l, _ := newTestLogger(t)

	if err := l.Append(Entry{GrabSuccess: true, DistanceCM: 5}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}

	stats, err := l.Statistics(0)
	if err != nil {
		t.Fatalf("Statistics failed: %v", err)
	}
	if stats.Days != 1 {
		t.Errorf("days: got %d, want 1", stats.Days)
	}
	if stats.TotalOperations != 1 {
		t.Errorf("total: got %d, want 1", stats.TotalOperations)
	}
}
