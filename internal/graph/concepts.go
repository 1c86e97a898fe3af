package graph

import (
	"database/sql"
	"strings"

	"ckg/internal/kgerrors"
	"ckg/internal/storage"
)

// Store provides typed accessors over the concepts, edges, and
// provenance relations.
type Store struct {
	db *storage.DB
}

// NewStore creates a relation store over an open database.
func NewStore(db *storage.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying database for transaction composition.
func (s *Store) DB() *storage.DB {
	return s.db
}

// CreateConcept allocates an id and inserts a concept without a vector.
func (s *Store) CreateConcept(name, typ string) (int64, error) {
	if strings.TrimSpace(name) == "" {
		return 0, kgerrors.Required("concept name")
	}
	if strings.TrimSpace(typ) == "" {
		return 0, kgerrors.Required("concept type")
	}

	var id int64
	err := s.db.WithTx(func(tx *sql.Tx) error {
		var txErr error
		id, txErr = CreateConceptTx(tx, name, typ)
		return txErr
	})
	return id, err
}

// CreateConceptTx inserts a concept inside an existing transaction.
func CreateConceptTx(tx *sql.Tx, name, typ string) (int64, error) {
	id, err := storage.NextID(tx, storage.CounterConcepts)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(
		"INSERT INTO concepts (id, name, type) VALUES (?, ?, ?)",
		id, name, typ,
	); err != nil {
		return 0, kgerrors.QueryError("creating concept", err)
	}
	return id, nil
}

// CreateConcepts inserts a batch of concepts, reserving the whole id
// range with a single counter update. Returns ids in input order.
func (s *Store) CreateConcepts(pairs [][2]string) ([]int64, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	for _, p := range pairs {
		if strings.TrimSpace(p[0]) == "" {
			return nil, kgerrors.Required("concept name")
		}
		if strings.TrimSpace(p[1]) == "" {
			return nil, kgerrors.Required("concept type")
		}
	}

	ids := make([]int64, len(pairs))
	err := s.db.WithTx(func(tx *sql.Tx) error {
		start, err := storage.ReserveIDs(tx, storage.CounterConcepts, int64(len(pairs)))
		if err != nil {
			return err
		}
		for i, p := range pairs {
			ids[i] = start + int64(i)
			if _, err := tx.Exec(
				"INSERT INTO concepts (id, name, type) VALUES (?, ?, ?)",
				ids[i], p[0], p[1],
			); err != nil {
				return kgerrors.QueryError("creating concept", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// GetConcept retrieves a concept by id.
func (s *Store) GetConcept(id int64) (*Concept, error) {
	return getConcept(s.db.QueryRow(
		"SELECT id, name, type, vector FROM concepts WHERE id = ?", id,
	), "concept", id)
}

// GetConceptByName retrieves a concept by exact name. When duplicate
// names exist in the store the lowest id wins, keeping lookups stable.
func (s *Store) GetConceptByName(name string) (*Concept, error) {
	return getConcept(s.db.QueryRow(
		"SELECT id, name, type, vector FROM concepts WHERE name = ? ORDER BY id LIMIT 1", name,
	), "concept", name)
}

func getConcept(row *sql.Row, entity string, key interface{}) (*Concept, error) {
	var c Concept
	var blob []byte
	err := row.Scan(&c.ID, &c.Name, &c.Type, &blob)
	if err == sql.ErrNoRows {
		return nil, kgerrors.NotFound(entity, key)
	}
	if err != nil {
		return nil, kgerrors.QueryError("reading concept", err)
	}
	if c.Vector, err = decodeVector(blob); err != nil {
		return nil, err
	}
	return &c, nil
}

// ListConcepts lists concepts, optionally filtered by type.
func (s *Store) ListConcepts(typeFilter string) ([]*Concept, error) {
	query := "SELECT id, name, type, vector FROM concepts ORDER BY id"
	args := []interface{}{}
	if typeFilter != "" {
		query = "SELECT id, name, type, vector FROM concepts WHERE type = ? ORDER BY id"
		args = append(args, typeFilter)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, kgerrors.QueryError("listing concepts", err)
	}
	defer rows.Close()

	var concepts []*Concept
	for rows.Next() {
		var c Concept
		var blob []byte
		if err := rows.Scan(&c.ID, &c.Name, &c.Type, &blob); err != nil {
			return nil, kgerrors.QueryError("scanning concept", err)
		}
		if c.Vector, err = decodeVector(blob); err != nil {
			return nil, err
		}
		concepts = append(concepts, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, kgerrors.QueryError("listing concepts", err)
	}
	return concepts, nil
}

// UpdateConcept replaces the name and/or type of a concept. Empty
// arguments keep the stored value. The whole row is rewritten: the
// engine identifies rows for replacement by full content.
func (s *Store) UpdateConcept(id int64, name, typ string) (*Concept, error) {
	current, err := s.GetConcept(id)
	if err != nil {
		return nil, err
	}
	if name != "" {
		current.Name = name
	}
	if typ != "" {
		current.Type = typ
	}

	err = s.db.WithTx(func(tx *sql.Tx) error {
		if _, err := tx.Exec(
			"INSERT OR REPLACE INTO concepts (id, name, type, vector) VALUES (?, ?, ?, ?)",
			current.ID, current.Name, current.Type, encodeVector(current.Vector),
		); err != nil {
			return kgerrors.QueryError("updating concept", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return current, nil
}

// SetConceptVector attaches an embedding to a concept.
func (s *Store) SetConceptVector(id int64, vector []float32) error {
	return s.db.WithTx(func(tx *sql.Tx) error {
		return SetConceptVectorTx(tx, id, vector)
	})
}

// SetConceptVectorTx attaches an embedding inside a transaction.
func SetConceptVectorTx(tx *sql.Tx, id int64, vector []float32) error {
	res, err := tx.Exec("UPDATE concepts SET vector = ? WHERE id = ?", encodeVector(vector), id)
	if err != nil {
		return kgerrors.QueryError("setting concept vector", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return kgerrors.NotFound("concept", id)
	}
	return nil
}

// DeleteConcept removes a concept by id.
func (s *Store) DeleteConcept(id int64) error {
	return s.db.WithTx(func(tx *sql.Tx) error {
		return DeleteConceptTx(tx, id)
	})
}

// DeleteConceptTx removes a concept inside a transaction.
func DeleteConceptTx(tx *sql.Tx, id int64) error {
	res, err := tx.Exec("DELETE FROM concepts WHERE id = ?", id)
	if err != nil {
		return kgerrors.QueryError("deleting concept", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return kgerrors.NotFound("concept", id)
	}
	return nil
}

// LookupConceptIDByNameTx finds a concept id by exact name inside a
// transaction, returning (0, nil) when no concept has that name.
func LookupConceptIDByNameTx(tx *sql.Tx, name string) (int64, error) {
	var id int64
	err := tx.QueryRow(
		"SELECT id FROM concepts WHERE name = ? ORDER BY id LIMIT 1", name,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, kgerrors.QueryError("looking up concept by name", err)
	}
	return id, nil
}

// GetConceptTypeTx reads just the type column inside a transaction.
func GetConceptTypeTx(tx *sql.Tx, id int64) (string, error) {
	var typ string
	err := tx.QueryRow("SELECT type FROM concepts WHERE id = ?", id).Scan(&typ)
	if err == sql.ErrNoRows {
		return "", kgerrors.NotFound("concept", id)
	}
	if err != nil {
		return "", kgerrors.QueryError("reading concept type", err)
	}
	return typ, nil
}
