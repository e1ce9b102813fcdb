package history

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCSVSinkWritesHeaderAndRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "umbra.csv")

	sink, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}

	ts := time.Date(2026, 8, 30, 12, 0, 0, 500*int(time.Millisecond), time.UTC)
	err = sink.Record([]Sample{
		{Time: ts, MonitorID: 1, Brightness: 150.5, Opacity: 120, Dimmed: 79.67},
		{Time: ts, MonitorID: 2, Brightness: 60, Opacity: 0, Dimmed: 60},
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want header + 2", len(rows))
	}

	wantHeader := []string{"timestamp", "monitor", "raw_brightness", "opacity", "dimmed_brightness"}
	for i, col := range wantHeader {
		if rows[0][i] != col {
			t.Errorf("header[%d] = %q, want %q", i, rows[0][i], col)
		}
	}
	if rows[1][0] != "2026-08-30T12:00:00.500" {
		t.Errorf("timestamp = %q, want millisecond ISO format", rows[1][0])
	}
	if rows[1][1] != "1" || rows[1][2] != "150.50" || rows[1][3] != "120.00" {
		t.Errorf("row = %v, want monitor 1, brightness 150.50, opacity 120.00", rows[1])
	}
}

func TestCSVSinkAppendsWithoutSecondHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "umbra.csv")

	s1, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("NewCSVSink: %v", err)
	}
	_ = s1.Record([]Sample{{Time: time.Now(), MonitorID: 1}})
	_ = s1.Close()

	s2, err := NewCSVSink(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = s2.Record([]Sample{{Time: time.Now(), MonitorID: 1}})
	_ = s2.Close()

	f, _ := os.Open(path)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Errorf("rows after reopen = %d, want header + 2 (no duplicate header)", len(rows))
	}
}
