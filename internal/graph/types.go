// Package graph implements the typed relation store for concepts, edges,
// and provenance links.
package graph

// Concept is a typed named node in the knowledge graph. Vector is nil
// for concepts that have no embedding; they are excluded from semantic
// search until re-embedded.
type Concept struct {
	ID     int64     `json:"id"`
	Name   string    `json:"name"`
	Type   string    `json:"type"`
	Vector []float32 `json:"-"`
}

// HasVector reports whether the concept carries an embedding.
func (c *Concept) HasVector() bool {
	return len(c.Vector) > 0
}

// Edge is a typed, weighted, directed relation between two concepts.
type Edge struct {
	ID       int64   `json:"id"`
	Source   int64   `json:"source"`
	Target   int64   `json:"target"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight"`
}

// ProvenanceLink associates a concept with a source file that
// contributed it.
type ProvenanceLink struct {
	ConceptID int64  `json:"conceptId"`
	FileURL   string `json:"fileUrl"`
}
