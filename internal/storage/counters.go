package storage

import (
	"database/sql"

	"ckg/internal/kgerrors"
)

// Counter kinds for the persisted id allocators.
const (
	CounterConcepts = "concepts"
	CounterEdges    = "edges"
)

// ReserveIDs reserves a contiguous range of n ids of the given kind and
// returns the first id in the range. The counter row is read once and
// written once, so a batch of n entities costs a single counter update.
// Counters are never decremented: ids are strictly increasing and never
// reused within a store's lifetime.
func ReserveIDs(tx *sql.Tx, kind string, n int64) (int64, error) {
	if n <= 0 {
		return 0, kgerrors.Invalid("id reservation count must be positive")
	}

	var start int64
	err := tx.QueryRow("SELECT next FROM id_counters WHERE kind = ?", kind).Scan(&start)
	if err == sql.ErrNoRows {
		return 0, kgerrors.QueryError("unknown id counter "+kind, nil)
	}
	if err != nil {
		return 0, kgerrors.QueryError("reading id counter", err)
	}

	if _, err := tx.Exec("UPDATE id_counters SET next = ? WHERE kind = ?", start+n, kind); err != nil {
		return 0, kgerrors.QueryError("advancing id counter", err)
	}

	return start, nil
}

// NextID reserves a single id of the given kind.
func NextID(tx *sql.Tx, kind string) (int64, error) {
	return ReserveIDs(tx, kind, 1)
}
