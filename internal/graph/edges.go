package graph

import (
	"database/sql"
	"strings"

	"ckg/internal/kgerrors"
	"ckg/internal/storage"
)

// CreateEdge allocates an id and inserts an edge. Both endpoints must
// exist at creation time; the store does not re-check them afterwards.
func (s *Store) CreateEdge(source, target int64, relation string, weight float64) (int64, error) {
	if strings.TrimSpace(relation) == "" {
		return 0, kgerrors.Required("edge relation")
	}

	var id int64
	err := s.db.WithTx(func(tx *sql.Tx) error {
		var txErr error
		id, txErr = CreateEdgeTx(tx, source, target, relation, weight)
		return txErr
	})
	return id, err
}

// CreateEdgeTx inserts an edge inside an existing transaction,
// validating that both endpoint concepts exist.
func CreateEdgeTx(tx *sql.Tx, source, target int64, relation string, weight float64) (int64, error) {
	for _, endpoint := range []int64{source, target} {
		var exists int
		err := tx.QueryRow("SELECT 1 FROM concepts WHERE id = ?", endpoint).Scan(&exists)
		if err == sql.ErrNoRows {
			return 0, kgerrors.NotFound("concept", endpoint)
		}
		if err != nil {
			return 0, kgerrors.QueryError("checking edge endpoint", err)
		}
	}

	if weight == 0 {
		weight = 1.0
	}

	id, err := storage.NextID(tx, storage.CounterEdges)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(
		"INSERT INTO edges (id, source, target, relation, weight) VALUES (?, ?, ?, ?, ?)",
		id, source, target, relation, weight,
	); err != nil {
		return 0, kgerrors.QueryError("creating edge", err)
	}
	return id, nil
}

// GetEdge retrieves an edge by id.
func (s *Store) GetEdge(id int64) (*Edge, error) {
	var e Edge
	err := s.db.QueryRow(
		"SELECT id, source, target, relation, weight FROM edges WHERE id = ?", id,
	).Scan(&e.ID, &e.Source, &e.Target, &e.Relation, &e.Weight)
	if err == sql.ErrNoRows {
		return nil, kgerrors.NotFound("edge", id)
	}
	if err != nil {
		return nil, kgerrors.QueryError("reading edge", err)
	}
	return &e, nil
}

// ListEdges lists all edges, optionally filtered by relation.
func (s *Store) ListEdges(relationFilter string) ([]*Edge, error) {
	query := "SELECT id, source, target, relation, weight FROM edges ORDER BY id"
	args := []interface{}{}
	if relationFilter != "" {
		query = "SELECT id, source, target, relation, weight FROM edges WHERE relation = ? ORDER BY id"
		args = append(args, relationFilter)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, kgerrors.QueryError("listing edges", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

// ListEdgesTouching lists edges where any of the given concepts is
// source or target.
func (s *Store) ListEdgesTouching(conceptIDs []int64) ([]*Edge, error) {
	if len(conceptIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(conceptIDs)), ",")
	args := make([]interface{}, 0, 2*len(conceptIDs))
	for _, id := range conceptIDs {
		args = append(args, id)
	}
	for _, id := range conceptIDs {
		args = append(args, id)
	}

	rows, err := s.db.Query(
		"SELECT id, source, target, relation, weight FROM edges WHERE source IN ("+placeholders+
			") OR target IN ("+placeholders+") ORDER BY id",
		args...,
	)
	if err != nil {
		return nil, kgerrors.QueryError("listing touching edges", err)
	}
	defer rows.Close()

	return scanEdges(rows)
}

func scanEdges(rows *sql.Rows) ([]*Edge, error) {
	var edges []*Edge
	for rows.Next() {
		var e Edge
		if err := rows.Scan(&e.ID, &e.Source, &e.Target, &e.Relation, &e.Weight); err != nil {
			return nil, kgerrors.QueryError("scanning edge", err)
		}
		edges = append(edges, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, kgerrors.QueryError("listing edges", err)
	}
	return edges, nil
}

// UpdateEdge replaces the relation and/or weight of an edge. The whole
// row is rewritten, never a partial column update.
func (s *Store) UpdateEdge(id int64, relation string, weight *float64) (*Edge, error) {
	current, err := s.GetEdge(id)
	if err != nil {
		return nil, err
	}
	if relation != "" {
		current.Relation = relation
	}
	if weight != nil {
		current.Weight = *weight
	}

	err = s.db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO edges (id, source, target, relation, weight) VALUES (?, ?, ?, ?, ?)",
			current.ID, current.Source, current.Target, current.Relation, current.Weight,
		); err != nil {
			return kgerrors.QueryError("updating edge", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}

// DeleteEdge removes an edge by id.
func (s *Store) DeleteEdge(id int64) error {
	return s.db.WithTx(func(tx *sql.Tx) error {
		res, err := tx.Exec("DELETE FROM edges WHERE id = ?", id)
		if err != nil {
			return kgerrors.QueryError("deleting edge", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return kgerrors.NotFound("edge", id)
		}
		return nil
	})
}

// DeleteEdgesTouchingTx removes every edge where the concept is source
// or target. Used by the orphan sweep before the concept itself goes.
func DeleteEdgesTouchingTx(tx *sql.Tx, conceptID int64) error {
	if _, err := tx.Exec(
		"DELETE FROM edges WHERE source = ? OR target = ?", conceptID, conceptID,
	); err != nil {
		return kgerrors.QueryError("deleting edges touching concept", err)
	}
	return nil
}
