package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"ckg/internal/kgerrors"
	"ckg/internal/logging"
)

// DB represents an exclusive store connection with transaction helpers.
// The store admits one open connection at a time; Open fails with a
// DB_ERROR when another connection holds the lock.
type DB struct {
	conn   *sql.DB
	logger *logging.Logger
	lock   *Lock
	dbPath string
}

// Options tunes store behavior at open time.
type Options struct {
	// BusyTimeoutMs is the sqlite busy_timeout pragma value
	BusyTimeoutMs int
}

// Open opens or creates the graph store at .ckg/ckg.db under repoRoot.
// The exclusive store lock is acquired first; overlapping opens are a
// fatal DB_ERROR, not a lock to wait on.
func Open(repoRoot string, opts Options, logger *logging.Logger) (*DB, error) {
	ckgDir := filepath.Join(repoRoot, ".ckg")
	if err := os.MkdirAll(ckgDir, 0755); err != nil {
		return nil, kgerrors.DBError("creating .ckg directory", err)
	}

	lock, err := AcquireLock(ckgDir)
	if err != nil {
		return nil, err
	}

	dbPath := filepath.Join(ckgDir, "ckg.db")
	dbExists := fileExists(dbPath)

	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		lock.Release()
		return nil, kgerrors.DBError("opening database", err)
	}

	busyTimeout := opts.BusyTimeoutMs
	if busyTimeout <= 0 {
		busyTimeout = 5000
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		fmt.Sprintf("PRAGMA busy_timeout=%d", busyTimeout),
		"PRAGMA temp_store=MEMORY",
	}

	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			lock.Release()
			return nil, kgerrors.DBError("setting pragma", err)
		}
	}

	db := &DB{
		conn:   conn,
		logger: logger,
		lock:   lock,
		dbPath: dbPath,
	}

	if !dbExists {
		logger.Info("Creating new store", map[string]interface{}{
			"path": dbPath,
		})
		if err := db.initializeSchema(); err != nil {
			_ = conn.Close()
			lock.Release()
			return nil, kgerrors.DBError("initializing schema", err)
		}
	} else {
		if err := db.runMigrations(); err != nil {
			_ = conn.Close()
			lock.Release()
			return nil, kgerrors.DBError("running migrations", err)
		}
	}

	return db, nil
}

// Close closes the connection and releases the store lock.
func (db *DB) Close() error {
	var err error
	if db.conn != nil {
		err = db.conn.Close()
		db.conn = nil
	}
	db.lock.Release()
	return err
}

// Conn returns the underlying sql.DB connection
func (db *DB) Conn() *sql.DB {
	return db.conn
}

// WithTx executes a function within a transaction.
// If the function returns an error, the transaction is rolled back.
func (db *DB) WithTx(fn func(*sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return kgerrors.QueryError("beginning transaction", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("failed to rollback transaction", map[string]interface{}{
				"error":          err.Error(),
				"rollback_error": rbErr.Error(),
			})
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return kgerrors.QueryError("committing transaction", err)
	}

	return nil
}

// Exec executes a query without returning rows
func (db *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return db.conn.Exec(query, args...)
}

// Query executes a query that returns rows
func (db *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return db.conn.Query(query, args...)
}

// QueryRow executes a query that returns at most one row
func (db *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return db.conn.QueryRow(query, args...)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
