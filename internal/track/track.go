// Package track maintains the tracked-file table and the indexed
// content store used for retrieval previews.
package track

import (
	"database/sql"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"

	"ckg/internal/kgerrors"
	"ckg/internal/storage"
)

// TrackedFile is one row of the tracking table.
type TrackedFile struct {
	FileURL     string `json:"fileUrl"`
	ContentHash string `json:"contentHash"`
	TrackedAt   string `json:"trackedAt"`
}

// Store provides accessors over tracked files and indexed content.
type Store struct {
	db *storage.DB
}

// NewStore creates a tracking store over an open database.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db}
}

// HashContent returns the BLAKE2b-256 hex digest of file content.
func HashContent(content []byte) string {
	sum := blake2b.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Track registers a file URL with its content hash, replacing any
// previous hash for the same URL.
func (s *Store) Track(fileURL string, content []byte) error {
	if fileURL == "" {
		return kgerrors.Required("file url")
	}
	return s.db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO tracked_files (file_url, content_hash) VALUES (?, ?)
			ON CONFLICT(file_url) DO UPDATE SET
				content_hash = excluded.content_hash,
				tracked_at = datetime('now')
		`, fileURL, HashContent(content)); err != nil {
			return kgerrors.QueryError("tracking file", err)
		}
		return nil
	})
}

// Exists reports whether a file URL is tracked.
func (s *Store) Exists(fileURL string) (bool, error) {
	var one int
	err := s.db.QueryRow("SELECT 1 FROM tracked_files WHERE file_url = ?", fileURL).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, kgerrors.QueryError("checking tracked file", err)
	}
	return true, nil
}

// Untrack removes a file URL and its indexed content.
func (s *Store) Untrack(fileURL string) error {
	return s.db.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM tracked_files WHERE file_url = ?", fileURL)
		if err != nil {
			return kgerrors.QueryError("untracking file", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return kgerrors.NotFound("tracked file", fileURL)
		}
		if _, err := tx.Exec("DELETE FROM file_content WHERE file_url = ?", fileURL); err != nil {
			return kgerrors.QueryError("removing indexed content", err)
		}
		return nil
	})
}

// List returns all tracked files.
func (s *Store) List() ([]*TrackedFile, error) {
	rows, err := s.db.Query(
		"SELECT file_url, content_hash, tracked_at FROM tracked_files ORDER BY file_url",
	)
	if err != nil {
		return nil, kgerrors.QueryError("listing tracked files", err)
	}
	defer rows.Close()

	var files []*TrackedFile
	for rows.Next() {
		var f TrackedFile
		if err := rows.Scan(&f.FileURL, &f.ContentHash, &f.TrackedAt); err != nil {
			return nil, kgerrors.QueryError("scanning tracked file", err)
		}
		files = append(files, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, kgerrors.QueryError("listing tracked files", err)
	}
	return files, nil
}

// Index stores the searchable content for a file. The FTS mirror stays
// in sync through triggers.
func (s *Store) Index(fileURL, content string) error {
	if fileURL == "" {
		return kgerrors.Required("file url")
	}
	return s.db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(`
			INSERT INTO file_content (file_url, content) VALUES (?, ?)
			ON CONFLICT(file_url) DO UPDATE SET
				content = excluded.content,
				indexed_at = datetime('now')
		`, fileURL, content); err != nil {
			return kgerrors.QueryError("indexing file content", err)
		}
		return nil
	})
}

// GetIndexedContent returns the indexed content for a file, or
// ("", false, nil) when the file has none.
func (s *Store) GetIndexedContent(fileURL string) (string, bool, error) {
	var content string
	err := s.db.QueryRow(
		"SELECT content FROM file_content WHERE file_url = ?", fileURL,
	).Scan(&content)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, kgerrors.QueryError("reading indexed content", err)
	}
	return content, true, nil
}

// SearchContent runs a full-text query over indexed content and returns
// matching file URLs in relevance order.
func (s *Store) SearchContent(query string, limit int) ([]string, error) {
	if strings.TrimSpace(query) == "" {
		return nil, kgerrors.Required("query")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.Query(`
		SELECT fc.file_url
		FROM file_content_fts fts
		JOIN file_content fc ON fc.rowid = fts.rowid
		WHERE file_content_fts MATCH ?
		ORDER BY rank
		LIMIT ?
	`, ftsQuote(query), limit)
	if err != nil {
		return nil, kgerrors.QueryError("searching file content", err)
	}
	defer rows.Close()

	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, kgerrors.QueryError("scanning search hit", err)
		}
		urls = append(urls, u)
	}
	if err := rows.Err(); err != nil {
		return nil, kgerrors.QueryError("searching file content", err)
	}
	return urls, nil
}

// ftsQuote wraps each term in double quotes so FTS5 treats the query as
// plain terms rather than operator syntax.
func ftsQuote(query string) string {
	terms := strings.Fields(query)
	for i, t := range terms {
		terms[i] = `"` + strings.ReplaceAll(t, `"`, `""`) + `"`
	}
	return strings.Join(terms, " ")
}
