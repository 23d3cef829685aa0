// Package transcript persists a simulation's spoken lines and store visits
// to SQLite so a run can be queried after the fact.
package transcript

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/shopsim/shopsim/sim/trace"
)

const (
	defaultQueueSize = 4096
	commitEvery      = 256
	commitMaxWait    = 250 * time.Millisecond
)

// ErrClosed is returned by writes after Close.
var ErrClosed = errors.New("transcript: store closed")

type reqKind int

const (
	reqConversation reqKind = iota
	reqLifecycle
	reqFlush
)

type req struct {
	kind reqKind
	conv trace.ConversationRecord
	life trace.LifecycleRecord
	done chan struct{}
}

// Store is a trace.Sink backed by a single SQLite file. Writes are queued to a
// background goroutine and dropped when the queue is full so the tick loop
// never blocks on disk.
type Store struct {
	db *sql.DB
	ch chan req
	wg sync.WaitGroup

	once   sync.Once
	closed atomic.Bool

	seq atomic.Int64

	droppedConversations atomic.Uint64
	droppedLifecycle     atomic.Uint64
	writeErrors          atomic.Uint64
}

var _ trace.Sink = (*Store)(nil)

// Stats reports queue pressure and drops.
type Stats struct {
	QueueDepth           int
	QueueCapacity        int
	DroppedConversations uint64
	DroppedLifecycle     uint64
	WriteErrors          uint64
}

// OpenStore opens (or creates) the transcript database at path.
func OpenStore(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("transcript: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// One writer connection; WAL lets readers proceed alongside it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, ch: make(chan req, defaultQueueSize)}
	if err := s.initPragmas(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	var maxSeq sql.NullInt64
	if err := db.QueryRow(`SELECT MAX(seq) FROM conversations`).Scan(&maxSeq); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.seq.Store(maxSeq.Int64)
	s.wg.Add(1)
	go s.loop()
	return s, nil
}

func (s *Store) initPragmas() error {
	stmts := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, q := range stmts {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("transcript: %s: %w", q, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	schema := `
CREATE TABLE IF NOT EXISTS conversations (
  seq INTEGER PRIMARY KEY,
  tick INTEGER NOT NULL,
  kind TEXT NOT NULL,
  speaker TEXT NOT NULL,
  listener TEXT NOT NULL,
  situation TEXT NOT NULL,
  topic TEXT NOT NULL,
  source TEXT NOT NULL,
  line TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS conversations_speaker ON conversations(speaker, seq);
CREATE INDEX IF NOT EXISTS conversations_tick ON conversations(tick);

CREATE TABLE IF NOT EXISTS visits (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  tick INTEGER NOT NULL,
  actor TEXT NOT NULL,
  event TEXT NOT NULL,
  return_tick INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS visits_actor ON visits(actor, tick);
`
	_, err := s.db.Exec(schema)
	return err
}

// WriteConversation queues a spoken line.
func (s *Store) WriteConversation(r trace.ConversationRecord) error {
	if s == nil || s.closed.Load() {
		return ErrClosed
	}
	select {
	case s.ch <- req{kind: reqConversation, conv: r}:
	default:
		s.droppedConversations.Add(1)
	}
	return nil
}

// WriteLifecycle queues an enter or checkout event.
func (s *Store) WriteLifecycle(r trace.LifecycleRecord) error {
	if s == nil || s.closed.Load() {
		return ErrClosed
	}
	select {
	case s.ch <- req{kind: reqLifecycle, life: r}:
	default:
		s.droppedLifecycle.Add(1)
	}
	return nil
}

// Flush blocks until every write queued before it has been committed.
func (s *Store) Flush(ctx context.Context) error {
	if s == nil || s.closed.Load() {
		return ErrClosed
	}
	done := make(chan struct{})
	select {
	case s.ch <- req{kind: reqFlush, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue, commits and closes the database.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

// Stats returns a point-in-time view of the writer queue.
func (s *Store) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:           len(s.ch),
		QueueCapacity:        cap(s.ch),
		DroppedConversations: s.droppedConversations.Load(),
		DroppedLifecycle:     s.droppedLifecycle.Load(),
		WriteErrors:          s.writeErrors.Load(),
	}
}

func (s *Store) loop() {
	defer s.wg.Done()

	var (
		tx        *sql.Tx
		convStmt  *sql.Stmt
		visitStmt *sql.Stmt
		pending   int
		lastFlush = time.Now()
	)

	begin := func() error {
		var err error
		tx, err = s.db.Begin()
		if err != nil {
			return err
		}
		convStmt, err = tx.Prepare(`INSERT INTO conversations(seq, tick, kind, speaker, listener, situation, topic, source, line) VALUES(?,?,?,?,?,?,?,?,?)`)
		if err != nil {
			_ = tx.Rollback()
			tx = nil
			return err
		}
		visitStmt, err = tx.Prepare(`INSERT INTO visits(tick, actor, event, return_tick) VALUES(?,?,?,?)`)
		if err != nil {
			_ = convStmt.Close()
			_ = tx.Rollback()
			tx = nil
			return err
		}
		return nil
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = convStmt.Close()
		_ = visitStmt.Close()
		if err := tx.Commit(); err != nil {
			s.writeErrors.Add(1)
			logrus.Warnf("transcript: commit failed: %v", err)
		}
		tx, convStmt, visitStmt = nil, nil, nil
		pending = 0
		lastFlush = time.Now()
	}

	for r := range s.ch {
		if r.kind == reqFlush {
			commit()
			close(r.done)
			continue
		}
		if tx == nil {
			if err := begin(); err != nil {
				s.writeErrors.Add(1)
				logrus.Warnf("transcript: begin failed: %v", err)
				continue
			}
		}
		var err error
		switch r.kind {
		case reqConversation:
			c := r.conv
			_, err = convStmt.Exec(s.seq.Add(1), c.Tick, c.Kind, c.Speaker, c.Listener, c.Situation, c.Topic, c.Source, c.Line)
		case reqLifecycle:
			l := r.life
			_, err = visitStmt.Exec(l.Tick, l.Actor, l.Event, l.ReturnTick)
		}
		if err != nil {
			s.writeErrors.Add(1)
		}
		pending++
		if pending >= commitEvery || time.Since(lastFlush) >= commitMaxWait || len(s.ch) == 0 {
			commit()
		}
	}
	commit()
}

// Line is one stored conversation row.
type Line struct {
	Seq  int64
	trace.ConversationRecord
}

// LinesBy returns the most recent lines spoken by speaker, oldest first.
// An empty speaker matches everyone. limit <= 0 returns all matching rows.
func (s *Store) LinesBy(ctx context.Context, speaker string, limit int) ([]Line, error) {
	q := `SELECT seq, tick, kind, speaker, listener, situation, topic, source, line FROM conversations`
	args := []any{}
	if speaker != "" {
		q += ` WHERE speaker = ?`
		args = append(args, speaker)
	}
	q += ` ORDER BY seq DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Line
	for rows.Next() {
		var l Line
		if err := rows.Scan(&l.Seq, &l.Tick, &l.Kind, &l.Speaker, &l.Listener, &l.Situation, &l.Topic, &l.Source, &l.Line); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// CountBySource tallies stored lines per dialogue source.
func (s *Store) CountBySource(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT source, COUNT(*) FROM conversations GROUP BY source`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var src string
		var n int
		if err := rows.Scan(&src, &n); err != nil {
			return nil, err
		}
		out[src] = n
	}
	return out, rows.Err()
}

// Visits returns how many times each actor checked out.
func (s *Store) Visits(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT actor, COUNT(*) FROM visits WHERE event = ? GROUP BY actor`, trace.EventCheckout)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var actor string
		var n int
		if err := rows.Scan(&actor, &n); err != nil {
			return nil, err
		}
		out[actor] = n
	}
	return out, rows.Err()
}
