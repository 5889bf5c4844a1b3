package engine

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// JournalEntry is the record of one successful copy.
type JournalEntry struct {
	Src       string
	Dst       string
	Hash      string // BLAKE3, empty unless the copy was verified
	Size      int64
	MtimeNano int64
}

// Journal is the SQLite-backed resume state for a (source, output) pair.
// Entries are buffered and written in batches.
type Journal struct {
	db   *sql.DB
	path string

	mu      sync.Mutex
	batch   []JournalEntry
	done    chan struct{}
	stopped bool
}

// OpenJournal opens (or creates) the journal for src -> dst under stateDir.
func OpenJournal(stateDir, src, dst string) (*Journal, error) {
	path := filepath.Join(stateDir, jobID(src, dst)+".db")
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	j := &Journal{db: db, path: path, done: make(chan struct{})}
	if err := j.init(src, dst); err != nil {
		db.Close()
		return nil, err
	}

	go j.flushLoop()
	return j, nil
}

func (j *Journal) init(src, dst string) error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS copies (
			src   TEXT PRIMARY KEY,
			dst   TEXT NOT NULL,
			size  INTEGER NOT NULL,
			mtime INTEGER NOT NULL,
			hash  TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("create tables: %w", err)
	}

	var storedSrc, storedDst string
	err = j.db.QueryRow("SELECT value FROM meta WHERE key = 'src_root'").Scan(&storedSrc)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		_, err = j.db.Exec(
			"INSERT OR REPLACE INTO meta (key, value) VALUES ('src_root', ?), ('dst_root', ?)",
			src, dst,
		)
		if err != nil {
			return fmt.Errorf("store meta: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read meta: %w", err)
	}

	if err := j.db.QueryRow("SELECT value FROM meta WHERE key = 'dst_root'").Scan(&storedDst); err != nil {
		return fmt.Errorf("read meta: %w", err)
	}
	if storedSrc != src || storedDst != dst {
		return fmt.Errorf("journal roots mismatch: stored %s->%s, got %s->%s",
			storedSrc, storedDst, src, dst)
	}
	return nil
}

// Lookup returns the recorded copy of src, if any. Pending batched entries
// are consulted first.
func (j *Journal) Lookup(src string) (JournalEntry, bool) {
	j.mu.Lock()
	for i := len(j.batch) - 1; i >= 0; i-- {
		if j.batch[i].Src == src {
			e := j.batch[i]
			j.mu.Unlock()
			return e, true
		}
	}
	j.mu.Unlock()

	e := JournalEntry{Src: src}
	err := j.db.QueryRow(
		"SELECT dst, size, mtime, hash FROM copies WHERE src = ?", src,
	).Scan(&e.Dst, &e.Size, &e.MtimeNano, &e.Hash)
	if err != nil {
		return JournalEntry{}, false
	}
	return e, true
}

// Unchanged reports whether task still matches its journal entry and the
// recorded destination still exists in bucketDir. An entry in another bucket
// means the bucket settings changed since it was written.
func (j *Journal) Unchanged(task FileTask, bucketDir string) (JournalEntry, bool) {
	e, ok := j.Lookup(task.SrcPath)
	if !ok || e.Size != task.Size || e.MtimeNano != task.ModTime.UnixNano() {
		return e, false
	}
	if filepath.Dir(e.Dst) != bucketDir {
		return e, false
	}
	info, err := os.Stat(e.Dst)
	if err != nil || info.Size() != e.Size {
		return e, false
	}
	return e, true
}

// Record buffers a successful copy.
func (j *Journal) Record(e JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.batch = append(j.batch, e)
	if len(j.batch) >= 100 {
		return j.flushLocked()
	}
	return nil
}

// Flush writes pending entries to the database.
func (j *Journal) Flush() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.flushLocked()
}

func (j *Journal) flushLocked() error {
	if len(j.batch) == 0 {
		return nil
	}

	tx, err := j.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	stmt, err := tx.Prepare(
		"INSERT OR REPLACE INTO copies (src, dst, size, mtime, hash) VALUES (?, ?, ?, ?, ?)",
	)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range j.batch {
		if _, err := stmt.Exec(e.Src, e.Dst, e.Size, e.MtimeNano, e.Hash); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert %s: %w", e.Src, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	j.batch = j.batch[:0]
	return nil
}

func (j *Journal) flushLoop() {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			_ = j.Flush()
		}
	}
}

// Close flushes pending entries and closes the database.
func (j *Journal) Close() error {
	j.mu.Lock()
	if !j.stopped {
		j.stopped = true
		close(j.done)
	}
	flushErr := j.flushLocked()
	j.mu.Unlock()

	if err := j.db.Close(); err != nil {
		return err
	}
	return flushErr
}

// Path returns the journal's database file.
func (j *Journal) Path() string {
	return j.path
}
