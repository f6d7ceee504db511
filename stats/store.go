package stats

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/garnet/vm"
)

// ErrRunNotFound indicates the requested run doesn't exist.
var ErrRunNotFound = errors.New("run not found")

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              TEXT PRIMARY KEY,
	project         TEXT NOT NULL,
	unit            TEXT NOT NULL,
	digest          TEXT NOT NULL,
	started         INTEGER NOT NULL,
	finished        INTEGER NOT NULL,
	error           TEXT NOT NULL,
	call_sites      INTEGER NOT NULL,
	monomorphic     INTEGER NOT NULL,
	polymorphic     INTEGER NOT NULL,
	megamorphic     INTEGER NOT NULL,
	unused_sites    INTEGER NOT NULL,
	ic_hits         INTEGER NOT NULL,
	ic_misses       INTEGER NOT NULL,
	ic_hit_rate     REAL NOT NULL,
	fibers_started  INTEGER NOT NULL,
	fibers_released INTEGER NOT NULL,
	fibers_reused   INTEGER NOT NULL,
	live            INTEGER NOT NULL,
	pages           INTEGER NOT NULL,
	allocated       INTEGER NOT NULL,
	gc_count        INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS gc_cycles (
	run_id      TEXT NOT NULL REFERENCES runs(id),
	seq         INTEGER NOT NULL,
	marked      INTEGER NOT NULL,
	swept       INTEGER NOT NULL,
	live        INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	at          INTEGER NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE INDEX IF NOT EXISTS runs_started ON runs(started);
`

// Store persists runs to a SQLite database.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
	log  commonlog.Logger
}

// Open opens (creating if needed) the statistics database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating tables: %w", err)
	}

	s := &Store{db: db, path: path, log: commonlog.GetLogger("garnet.stats")}
	s.log.Debug("stats store opened", "path", path)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Save persists a run and its collection cycles.
func (s *Store) Save(r *Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO runs VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID.String(), r.Project, r.Unit, r.Digest,
		r.Started.UnixNano(), r.Finished.UnixNano(), r.Error,
		r.IC.TotalCallSites, r.IC.Monomorphic, r.IC.Polymorphic, r.IC.Megamorphic, r.IC.Empty,
		int64(r.IC.TotalHits), int64(r.IC.TotalMisses), r.IC.HitRate,
		int64(r.Fibers.Started), int64(r.Fibers.Released), int64(r.Fibers.Reused),
		r.Alloc.Live, r.Alloc.Pages, int64(r.Alloc.TotalAllocated),
		int64(r.GCCount),
	)
	if err != nil {
		return fmt.Errorf("saving run: %w", err)
	}

	for i, c := range r.Cycles {
		_, err := tx.Exec(`INSERT INTO gc_cycles VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.ID.String(), i, c.Marked, c.Swept, c.Live, int64(c.Duration), c.Timestamp.UnixNano())
		if err != nil {
			return fmt.Errorf("saving collection %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing run: %w", err)
	}
	s.log.Info("run recorded", "run", r.ID.String(), "collections", len(r.Cycles))
	return nil
}

const runColumns = `id, project, unit, digest, started, finished, error,
	call_sites, monomorphic, polymorphic, megamorphic, unused_sites,
	ic_hits, ic_misses, ic_hit_rate,
	fibers_started, fibers_released, fibers_reused,
	live, pages, allocated, gc_count`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r                            Run
		id                           string
		started, finished            int64
		hits, misses                 int64
		fStarted, fReleased, fReused int64
		allocated, gcCount           int64
	)
	err := row.Scan(&id, &r.Project, &r.Unit, &r.Digest, &started, &finished, &r.Error,
		&r.IC.TotalCallSites, &r.IC.Monomorphic, &r.IC.Polymorphic, &r.IC.Megamorphic, &r.IC.Empty,
		&hits, &misses, &r.IC.HitRate,
		&fStarted, &fReleased, &fReused,
		&r.Alloc.Live, &r.Alloc.Pages, &allocated, &gcCount)
	if err != nil {
		return nil, err
	}
	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("run id %q: %w", id, err)
	}
	r.Started = time.Unix(0, started)
	r.Finished = time.Unix(0, finished)
	r.IC.TotalHits, r.IC.TotalMisses = uint64(hits), uint64(misses)
	r.Fibers = vm.FiberStats{Started: uint64(fStarted), Released: uint64(fReleased), Reused: uint64(fReused)}
	r.Alloc.TotalAllocated = uint64(allocated)
	r.GCCount = uint64(gcCount)
	r.Alloc.Count = r.GCCount
	return &r, nil
}

// Get loads a run with its collection cycles.
func (s *Store) Get(id uuid.UUID) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, err := scanRun(s.db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id.String()))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRunNotFound
		}
		return nil, fmt.Errorf("querying run: %w", err)
	}

	rows, err := s.db.Query(`SELECT marked, swept, live, duration_ns, at FROM gc_cycles
		WHERE run_id = ? ORDER BY seq`, id.String())
	if err != nil {
		return nil, fmt.Errorf("querying collections: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c vm.GCStats
		var dur, at int64
		if err := rows.Scan(&c.Marked, &c.Swept, &c.Live, &dur, &at); err != nil {
			return nil, fmt.Errorf("reading collection: %w", err)
		}
		c.Duration = time.Duration(dur)
		c.Timestamp = time.Unix(0, at)
		r.Cycles = append(r.Cycles, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading collections: %w", err)
	}
	return r, nil
}

// Recent returns up to limit runs, newest first, without their cycles.
func (s *Store) Recent(limit int) ([]*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("reading run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
