package storage

import (
	"database/sql"
	"fmt"
)

// Schema version tracking
const currentSchemaVersion = 1

// initializeSchema creates all tables for a new database
func (db *DB) initializeSchema() error {
	return db.WithTx(func(tx *sql.Tx) error {
		if err := createSchemaVersionTable(tx); err != nil {
			return err
		}

		if err := createGraphTables(tx); err != nil {
			return err
		}
		if err := createCounterTable(tx); err != nil {
			return err
		}
		if err := createTrackingTables(tx); err != nil {
			return err
		}

		if err := setSchemaVersion(tx, currentSchemaVersion); err != nil {
			return err
		}

		db.logger.Info("Store schema initialized", map[string]interface{}{
			"version": currentSchemaVersion,
		})

		return nil
	})
}

// runMigrations runs any pending schema migrations
func (db *DB) runMigrations() error {
	version, err := db.getSchemaVersion()
	if err != nil {
		return err
	}

	if version == currentSchemaVersion {
		return nil
	}

	db.logger.Info("Running store migrations", map[string]interface{}{
		"from_version": version,
		"to_version":   currentSchemaVersion,
	})

	// Migrations are added here as the schema evolves.

	return nil
}

// getSchemaVersion gets the current schema version
func (db *DB) getSchemaVersion() (int, error) {
	var tableName string
	err := db.QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableName)

	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	var version int
	err = db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return version, nil
}

// setSchemaVersion sets the schema version
func setSchemaVersion(tx *sql.Tx, version int) error {
	if _, err := tx.Exec("DELETE FROM schema_version"); err != nil {
		return err
	}
	_, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version)
	return err
}

func createSchemaVersionTable(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`)
	return err
}

// createGraphTables creates the concepts, edges, and provenance relations.
// Concept names are deliberately not declared UNIQUE: dedup by name is the
// patch engine's contract, not the storage layer's.
func createGraphTables(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS concepts (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			vector BLOB
		)
	`); err != nil {
		return fmt.Errorf("failed to create concepts table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS edges (
			id INTEGER PRIMARY KEY,
			source INTEGER NOT NULL,
			target INTEGER NOT NULL,
			relation TEXT NOT NULL,
			weight REAL NOT NULL DEFAULT 1.0
		)
	`); err != nil {
		return fmt.Errorf("failed to create edges table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS provenance (
			concept_id INTEGER NOT NULL,
			file_url TEXT NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create provenance table: %w", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_concepts_name ON concepts(name)",
		"CREATE INDEX IF NOT EXISTS idx_concepts_type ON concepts(type)",
		"CREATE INDEX IF NOT EXISTS idx_edges_source ON edges(source)",
		"CREATE INDEX IF NOT EXISTS idx_edges_target ON edges(target)",
		"CREATE INDEX IF NOT EXISTS idx_provenance_concept ON provenance(concept_id)",
		"CREATE INDEX IF NOT EXISTS idx_provenance_file ON provenance(file_url)",
	}
	for _, indexSQL := range indexes {
		if _, err := tx.Exec(indexSQL); err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return nil
}

// createCounterTable creates the persisted id counter rows.
func createCounterTable(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS id_counters (
			kind TEXT PRIMARY KEY,
			next INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("failed to create id_counters table: %w", err)
	}

	for _, kind := range []string{CounterConcepts, CounterEdges} {
		if _, err := tx.Exec(`
			INSERT INTO id_counters (kind, next) VALUES (?, 1)
			ON CONFLICT(kind) DO NOTHING
		`, kind); err != nil {
			return fmt.Errorf("failed to seed counter %s: %w", kind, err)
		}
	}

	return nil
}

// createTrackingTables creates the tracked-file table and the
// indexed-content store with its FTS5 mirror.
func createTrackingTables(tx *sql.Tx) error {
	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS tracked_files (
			file_url TEXT PRIMARY KEY,
			content_hash TEXT NOT NULL,
			tracked_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("failed to create tracked_files table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS file_content (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			file_url TEXT UNIQUE NOT NULL,
			content TEXT NOT NULL,
			indexed_at TEXT NOT NULL DEFAULT (datetime('now'))
		)
	`); err != nil {
		return fmt.Errorf("failed to create file_content table: %w", err)
	}

	if _, err := tx.Exec(`
		CREATE VIRTUAL TABLE IF NOT EXISTS file_content_fts USING fts5(
			content,
			content='file_content',
			content_rowid='rowid'
		)
	`); err != nil {
		return fmt.Errorf("failed to create file_content_fts table: %w", err)
	}

	triggers := []string{
		`CREATE TRIGGER IF NOT EXISTS file_content_ai AFTER INSERT ON file_content BEGIN
			INSERT INTO file_content_fts(rowid, content)
			VALUES (new.rowid, new.content);
		END`,

		`CREATE TRIGGER IF NOT EXISTS file_content_au AFTER UPDATE ON file_content BEGIN
			INSERT INTO file_content_fts(file_content_fts, rowid, content)
			VALUES ('delete', old.rowid, old.content);
			INSERT INTO file_content_fts(rowid, content)
			VALUES (new.rowid, new.content);
		END`,

		`CREATE TRIGGER IF NOT EXISTS file_content_ad AFTER DELETE ON file_content BEGIN
			INSERT INTO file_content_fts(file_content_fts, rowid, content)
			VALUES ('delete', old.rowid, old.content);
		END`,
	}

	for _, trigger := range triggers {
		if _, err := tx.Exec(trigger); err != nil {
			return fmt.Errorf("failed to create trigger: %w", err)
		}
	}

	return nil
}
