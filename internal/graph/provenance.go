package graph

import (
	"database/sql"

	"ckg/internal/kgerrors"
)

// AddProvenance links a concept to a source file.
func (s *Store) AddProvenance(conceptID int64, fileURL string) error {
	if fileURL == "" {
		return kgerrors.Required("file url")
	}
	return s.db.WithTx(func(tx *sql.Tx) error {
		return AddProvenanceTx(tx, conceptID, fileURL)
	})
}

// AddProvenanceTx links a concept to a file inside a transaction.
func AddProvenanceTx(tx *sql.Tx, conceptID int64, fileURL string) error {
	if _, err := tx.Exec(
		"INSERT INTO provenance (concept_id, file_url) VALUES (?, ?)",
		conceptID, fileURL,
	); err != nil {
		return kgerrors.QueryError("adding provenance", err)
	}
	return nil
}

// RemoveProvenanceForFile removes every provenance link for a file.
// Links for a file are always replaced wholesale, never merged.
func (s *Store) RemoveProvenanceForFile(fileURL string) error {
	return s.db.WithTx(func(tx *sql.Tx) error {
		return RemoveProvenanceForFileTx(tx, fileURL)
	})
}

// RemoveProvenanceForFileTx removes a file's links inside a transaction.
func RemoveProvenanceForFileTx(tx *sql.Tx, fileURL string) error {
	if _, err := tx.Exec("DELETE FROM provenance WHERE file_url = ?", fileURL); err != nil {
		return kgerrors.QueryError("removing provenance for file", err)
	}
	return nil
}

// ListProvenance lists provenance links, optionally filtered by concept
// and/or file.
func (s *Store) ListProvenance(conceptID int64, fileURL string) ([]*ProvenanceLink, error) {
	query := "SELECT concept_id, file_url FROM provenance"
	var args []interface{}
	switch {
	case conceptID > 0 && fileURL != "":
		query += " WHERE concept_id = ? AND file_url = ?"
		args = append(args, conceptID, fileURL)
	case conceptID > 0:
		query += " WHERE concept_id = ?"
		args = append(args, conceptID)
	case fileURL != "":
		query += " WHERE file_url = ?"
		args = append(args, fileURL)
	}
	query += " ORDER BY concept_id, file_url"

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, kgerrors.QueryError("listing provenance", err)
	}
	defer rows.Close()

	var links []*ProvenanceLink
	for rows.Next() {
		var l ProvenanceLink
		if err := rows.Scan(&l.ConceptID, &l.FileURL); err != nil {
			return nil, kgerrors.QueryError("scanning provenance", err)
		}
		links = append(links, &l)
	}
	if err := rows.Err(); err != nil {
		return nil, kgerrors.QueryError("listing provenance", err)
	}
	return links, nil
}

// ConceptIDsForFileTx returns the ids of concepts linked to a file.
func ConceptIDsForFileTx(tx *sql.Tx, fileURL string) ([]int64, error) {
	rows, err := tx.Query(
		"SELECT DISTINCT concept_id FROM provenance WHERE file_url = ? ORDER BY concept_id", fileURL,
	)
	if err != nil {
		return nil, kgerrors.QueryError("listing file concepts", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, kgerrors.QueryError("scanning file concept", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, kgerrors.QueryError("listing file concepts", err)
	}
	return ids, nil
}

// CountProvenanceTx counts remaining provenance links for a concept.
func CountProvenanceTx(tx *sql.Tx, conceptID int64) (int, error) {
	var n int
	if err := tx.QueryRow(
		"SELECT COUNT(*) FROM provenance WHERE concept_id = ?", conceptID,
	).Scan(&n); err != nil {
		return 0, kgerrors.QueryError("counting provenance", err)
	}
	return n, nil
}
