// Package indexdb maintains a queryable SQLite index of the simulation:
// element lifecycle rows, snapshot metadata, and system errors. All writes
// go through a single goroutine fed by a buffered channel so the engine
// loop never blocks on the database.
package indexdb

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JonJonesBR/Ecosse-sub003/internal/persistence/snapshot"
	"github.com/JonJonesBR/Ecosse-sub003/internal/protocol"
)

type reqKind int

const (
	reqElement reqKind = iota
	reqSnapshot
	reqError
)

type req struct {
	kind reqKind

	frame   uint64
	op      string // "added" | "removed"
	element protocol.ElementState

	snapPath string
	snap     snapshot.SimulationV1

	sysErr protocol.SystemError
}

// SQLiteIndex owns the database handle. Safe for concurrent use; Record*
// methods are non-blocking and drop when the queue is full or the index
// is closed.
type SQLiteIndex struct {
	db *sql.DB
	ch chan req

	wg        sync.WaitGroup
	closeOnce sync.Once
	closed    atomic.Bool
}

func OpenSQLite(path string) (*SQLiteIndex, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// modernc.org/sqlite is happiest with a single connection.
	db.SetMaxOpenConns(1)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{
		db: db,
		ch: make(chan req, 65536),
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		`PRAGMA journal_mode=WAL;`,
		`PRAGMA synchronous=NORMAL;`,
		`PRAGMA foreign_keys=ON;`,
		`PRAGMA busy_timeout=5000;`,
		`PRAGMA temp_store=MEMORY;`,
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return fmt.Errorf("pragma %q: %w", p, err)
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS elements (
			frame       INTEGER NOT NULL,
			element_id  TEXT NOT NULL,
			kind        TEXT NOT NULL,
			op          TEXT NOT NULL,
			raw_json    TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_elements_id ON elements(element_id);`,
		`CREATE INDEX IF NOT EXISTS idx_elements_frame ON elements(frame);`,
		`CREATE TABLE IF NOT EXISTS snapshots (
			frame       INTEGER PRIMARY KEY,
			path        TEXT NOT NULL,
			sim_id      TEXT NOT NULL,
			elements    INTEGER NOT NULL,
			elapsed     REAL NOT NULL,
			speed       REAL NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS system_errors (
			seq         INTEGER PRIMARY KEY AUTOINCREMENT,
			frame       INTEGER NOT NULL,
			source      TEXT NOT NULL,
			action      TEXT NOT NULL,
			error       TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		);`,
	}
	for _, q := range stmts {
		if _, err := db.Exec(q); err != nil {
			return fmt.Errorf("schema: %w", err)
		}
	}
	return nil
}

// Close drains pending writes and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) RecordElementAdded(frame uint64, el protocol.ElementState) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqElement, frame: frame, op: "added", element: el}:
	default:
	}
}

func (s *SQLiteIndex) RecordElementRemoved(frame uint64, el protocol.ElementState) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqElement, frame: frame, op: "removed", element: el}:
	default:
	}
}

func (s *SQLiteIndex) RecordSnapshot(path string, snap snapshot.SimulationV1) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqSnapshot, snapPath: path, snap: snap}:
	default:
	}
}

func (s *SQLiteIndex) RecordSystemError(frame uint64, se protocol.SystemError) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqError, frame: frame, sysErr: se}:
	default:
	}
}

func (s *SQLiteIndex) loop() {
	insertElement, _ := s.db.Prepare(`INSERT INTO elements(frame,element_id,kind,op,raw_json,recorded_at) VALUES(?,?,?,?,?,?)`)
	insertSnapshot, _ := s.db.Prepare(`INSERT OR REPLACE INTO snapshots(frame,path,sim_id,elements,elapsed,speed,recorded_at) VALUES(?,?,?,?,?,?,?)`)
	insertError, _ := s.db.Prepare(`INSERT INTO system_errors(frame,source,action,error,recorded_at) VALUES(?,?,?,?,?)`)
	defer func() {
		if insertElement != nil {
			_ = insertElement.Close()
		}
		if insertSnapshot != nil {
			_ = insertSnapshot.Close()
		}
		if insertError != nil {
			_ = insertError.Close()
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 500
		commitMaxWait = 2 * time.Second
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.Begin()
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	flushIfNeeded := func() {
		if tx == nil {
			return
		}
		if opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait {
			commit()
		}
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		now := time.Now().UTC().Format(time.RFC3339Nano)

		switch r.kind {
		case reqElement:
			if insertElement == nil {
				continue
			}
			raw, _ := json.Marshal(r.element)
			if _, err := tx.Stmt(insertElement).Exec(
				int64(r.frame),
				r.element.ID,
				r.element.Kind,
				r.op,
				string(raw),
				now,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqSnapshot:
			if insertSnapshot == nil {
				continue
			}
			if _, err := tx.Stmt(insertSnapshot).Exec(
				int64(r.snap.Header.Frame),
				r.snapPath,
				r.snap.Header.SimID,
				len(r.snap.Elements),
				r.snap.Elapsed,
				r.snap.Speed,
				now,
			); err != nil {
				rollback()
				continue
			}
			opCount++

		case reqError:
			if insertError == nil {
				continue
			}
			if _, err := tx.Stmt(insertError).Exec(
				int64(r.frame),
				r.sysErr.Source,
				r.sysErr.Action,
				r.sysErr.Error,
				now,
			); err != nil {
				rollback()
				continue
			}
			opCount++
		}

		flushIfNeeded()
	}
	commit()
}
