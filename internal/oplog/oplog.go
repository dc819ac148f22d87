// Package oplog records arm operations to a CSV dataset file and computes
// aggregate statistics over it for the dashboard.
package oplog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"
)

var header = []string{
	"timestamp", "mode", "grab_success", "distance_cm",
	"servo_base", "servo_shoulder", "servo_elbow", "servo_wrist", "servo_gripper",
	"motor_speed", "execution_time_ms", "error_message",
}

const servoColumns = 5

// Entry is one logged operation.
type Entry struct {
	Timestamp    time.Time
	Mode         string
	GrabSuccess  bool
	DistanceCM   float64
	Servos       []int
	MotorSpeed   int
	ExecutionMS  int64
	ErrorMessage string
}

// Stats aggregates the log over a trailing window.
type Stats struct {
	TotalOperations int     `json:"total_operations"`
	SuccessfulGrabs int     `json:"successful_grabs"`
	SuccessRate     float64 `json:"success_rate"`
	AvgDistanceCM   float64 `json:"avg_distance_cm"`
	Days            int     `json:"days"`
}

// Logger appends entries to a CSV file. A mutex serializes writers; the
// controller and the web backend never share one process, but the
// controller logs from both the loop and the command intake.
type Logger struct {
	mu   sync.Mutex
	path string
}

// New ensures the data directory and the CSV header exist.
func New(path string) (*Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("oplog: create data dir: %w", err)
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("oplog: create %s: %w", path, err)
		}
		w := csv.NewWriter(f)
		if err := w.Write(header); err != nil {
			f.Close()
			return nil, fmt.Errorf("oplog: write header: %w", err)
		}
		w.Flush()
		if err := f.Close(); err != nil {
			return nil, fmt.Errorf("oplog: close %s: %w", path, err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("oplog: stat %s: %w", path, err)
	}

	return &Logger{path: path}, nil
}

// Append writes one entry. A zero timestamp is filled with the current
// time.
func (l *Logger) Append(e Entry) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	servos := make([]string, servoColumns)
	for i := range servos {
		if i < len(e.Servos) {
			servos[i] = strconv.Itoa(e.Servos[i])
		} else {
			servos[i] = "0"
		}
	}

	record := []string{
		e.Timestamp.Format(time.RFC3339),
		e.Mode,
		strconv.FormatBool(e.GrabSuccess),
		strconv.FormatFloat(e.DistanceCM, 'f', 2, 64),
	}
	record = append(record, servos...)
	record = append(record,
		strconv.Itoa(e.MotorSpeed),
		strconv.FormatInt(e.ExecutionMS, 10),
		e.ErrorMessage,
	)

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("oplog: open %s: %w", l.path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(record); err != nil {
		f.Close()
		return fmt.Errorf("oplog: append: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("oplog: flush: %w", err)
	}
	return f.Close()
}

// Statistics scans entries newer than the trailing window of days and
// aggregates them.
func (l *Logger) Statistics(days int) (Stats, error) {
	if days < 1 {
		days = 1
	}
	cutoff := time.Now().AddDate(0, 0, -days)

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return Stats{}, fmt.Errorf("oplog: open %s: %w", l.path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	records, err := r.ReadAll()
	if err != nil {
		return Stats{}, fmt.Errorf("oplog: read %s: %w", l.path, err)
	}

	stats := Stats{Days: days}
	var distanceSum float64
	for i, rec := range records {
		if i == 0 || len(rec) != len(header) {
			continue // header or malformed row
		}
		ts, err := time.Parse(time.RFC3339, rec[0])
		if err != nil || ts.Before(cutoff) {
			continue
		}
		stats.TotalOperations++
		if rec[2] == "true" {
			stats.SuccessfulGrabs++
		}
		if d, err := strconv.ParseFloat(rec[3], 64); err == nil {
			distanceSum += d
		}
	}

	if stats.TotalOperations > 0 {
		stats.SuccessRate = float64(stats.SuccessfulGrabs) / float64(stats.TotalOperations)
		stats.AvgDistanceCM = distanceSum / float64(stats.TotalOperations)
	}
	return stats, nil
}
