package history

import (
	"encoding/csv"
	"os"
	"strconv"
	"sync"

	"github.com/umbradim/umbra/internal/errors"
)

// csvTimeFormat is ISO-8601 with millisecond precision.
const csvTimeFormat = "2006-01-02T15:04:05.000"

var csvHeader = []string{"timestamp", "monitor", "raw_brightness", "opacity", "dimmed_brightness"}

// CSVSink appends samples to a CSV file, one row per monitor per sample
// interval. The header is written once when the file is created empty.
type CSVSink struct {
	mu   sync.Mutex
	file *os.File
	w    *csv.Writer
}

// NewCSVSink opens or creates the CSV file at path.
func NewCSVSink(path string) (*CSVSink, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeHistoryFailed, "open csv log %s", path)
	}

	s := &CSVSink{file: f, w: csv.NewWriter(f)}

	info, err := f.Stat()
	if err == nil && info.Size() == 0 {
		if err := s.w.Write(csvHeader); err != nil {
			_ = f.Close()
			return nil, errors.Wrap(err, errors.CodeHistoryFailed, "write csv header")
		}
		s.w.Flush()
	}
	return s, nil
}

// Record appends one row per sample and flushes.
func (s *CSVSink) Record(samples []Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sm := range samples {
		row := []string{
			sm.Time.Format(csvTimeFormat),
			strconv.Itoa(sm.MonitorID),
			strconv.FormatFloat(sm.Brightness, 'f', 2, 64),
			strconv.FormatFloat(sm.Opacity, 'f', 2, 64),
			strconv.FormatFloat(sm.Dimmed, 'f', 2, 64),
		}
		if err := s.w.Write(row); err != nil {
			return errors.Wrap(err, errors.CodeHistoryFailed, "write csv row")
		}
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return errors.Wrap(err, errors.CodeHistoryFailed, "flush csv")
	}
	return nil
}

// Close flushes and closes the file.
func (s *CSVSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	return s.file.Close()
}
