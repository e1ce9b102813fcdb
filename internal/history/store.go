package history

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/umbradim/umbra/internal/errors"
	"github.com/umbradim/umbra/internal/metrics"
	"github.com/umbradim/umbra/internal/resilience"
	"github.com/umbradim/umbra/internal/trace"
)

// Store batching defaults
const (
	DefaultBatchSize  = 50
	DefaultFlushDelay = 2 * time.Second
)

// Store persists samples to SQLite in batches. Writes happen on a flush
// goroutine behind a circuit breaker: when the database misbehaves,
// samples are dropped and counted, never blocking the loop.
type Store struct {
	db         *sql.DB
	breaker    *resilience.Breaker
	maxBatch   int
	flushDelay time.Duration

	mu      sync.Mutex
	pending []Sample
	timer   *time.Timer
	wg      sync.WaitGroup
}

// OpenStore opens or creates the SQLite sample store at path.
func OpenStore(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, errors.CodeHistoryFailed, "create db dir %s", dir)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeHistoryFailed, "open sqlite %s", path)
	}

	s := &Store{
		db:         db,
		maxBatch:   DefaultBatchSize,
		flushDelay: DefaultFlushDelay,
		pending:    make([]Sample, 0, DefaultBatchSize),
	}
	s.breaker = resilience.New(resilience.HistoryConfig()).
		WithHook(func(from, to resilience.State) {
			slog.Warn("history store circuit changed", "from", from.String(), "to", to.String(), "path", path)
		})
	if err := s.ensureSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS samples (
  ts TEXT NOT NULL,
  monitor INTEGER NOT NULL,
  brightness REAL NOT NULL,
  opacity REAL NOT NULL,
  dimmed REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_samples_monitor_ts ON samples(monitor, ts);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return errors.Wrap(err, errors.CodeHistoryFailed, "create samples table")
	}
	return nil
}

// Record queues samples for batched storage. Implements Sink.
func (s *Store) Record(samples []Sample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = append(s.pending, samples...)

	if len(s.pending) >= s.maxBatch {
		s.flushLocked()
		return nil
	}
	if s.timer == nil {
		s.timer = time.AfterFunc(s.flushDelay, s.timerFlush)
	} else {
		s.timer.Reset(s.flushDelay)
	}
	return nil
}

func (s *Store) timerFlush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flushLocked()
}

func (s *Store) flushLocked() {
	if len(s.pending) == 0 {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	batch := s.pending
	s.pending = make([]Sample, 0, s.maxBatch)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx, span := trace.StartSpan(context.Background(), "history_flush")
		defer span.End()
		span.SetAttr("count", len(batch))

		err := s.breaker.Execute(func() error {
			return s.insert(ctx, batch)
		})
		if err != nil {
			span.SetAttr("error", err.Error())
			metrics.HistoryDropped.Add(float64(len(batch)))
			trace.Logger(ctx).Warn("history batch dropped", "error", err, "count", len(batch))
		}
	}()
}

func (s *Store) insert(ctx context.Context, batch []Sample) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, errors.CodeHistoryFailed, "begin sample tx")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO samples (ts, monitor, brightness, opacity, dimmed) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, errors.CodeHistoryFailed, "prepare sample insert")
	}
	defer func() { _ = stmt.Close() }()

	for _, sm := range batch {
		_, err := stmt.ExecContext(ctx,
			sm.Time.UTC().Format(time.RFC3339Nano), sm.MonitorID, sm.Brightness, sm.Opacity, sm.Dimmed)
		if err != nil {
			return errors.Wrap(err, errors.CodeHistoryFailed, "insert sample")
		}
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, errors.CodeHistoryFailed, "commit sample tx")
	}
	return nil
}

// Flush forces pending samples to disk.
func (s *Store) Flush() {
	s.mu.Lock()
	s.flushLocked()
	s.mu.Unlock()
	s.wg.Wait()
}

// Query returns samples for a monitor since a point in time, newest first.
// monitor 0 means all monitors.
func (s *Store) Query(ctx context.Context, monitor int, since time.Time, limit int) ([]Sample, error) {
	q := `SELECT ts, monitor, brightness, opacity, dimmed FROM samples WHERE ts >= ?`
	args := []any{since.UTC().Format(time.RFC3339Nano)}
	if monitor > 0 {
		q += ` AND monitor = ?`
		args = append(args, monitor)
	}
	q += ` ORDER BY ts DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeHistoryFailed, "query samples")
	}
	defer func() { _ = rows.Close() }()

	var out []Sample
	for rows.Next() {
		var sm Sample
		var ts string
		if err := rows.Scan(&ts, &sm.MonitorID, &sm.Brightness, &sm.Opacity, &sm.Dimmed); err != nil {
			return nil, errors.Wrap(err, errors.CodeHistoryFailed, "scan sample")
		}
		sm.Time, _ = time.Parse(time.RFC3339Nano, ts)
		out = append(out, sm)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeHistoryFailed, "iterate samples")
	}
	return out, nil
}

// Close flushes pending samples and closes the database.
func (s *Store) Close() error {
	s.Flush()
	return s.db.Close()
}
