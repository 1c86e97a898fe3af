// Package patch reconciles per-file extraction results into the graph:
// name-based concept dedup, wholesale provenance replacement, and the
// orphan sweep.
package patch

import (
	"database/sql"
	"strings"

	"github.com/google/uuid"

	"ckg/internal/embed"
	"ckg/internal/graph"
	"ckg/internal/kgerrors"
	"ckg/internal/lens"
	"ckg/internal/logging"
)

// ProposedConcept is one concept of an extraction patch.
type ProposedConcept struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// ProposedEdge references its endpoints by name: either a name proposed
// in the same patch or the name of an existing stored concept.
type ProposedEdge struct {
	Source   string  `json:"source"`
	Target   string  `json:"target"`
	Relation string  `json:"relation"`
	Weight   float64 `json:"weight,omitempty"`
}

// Patch is a file-scoped proposed set of concepts and edges.
type Patch struct {
	Concepts []ProposedConcept `json:"concepts"`
	Edges    []ProposedEdge    `json:"edges"`
}

// Result reports what one patch application did.
type Result struct {
	PatchID         string `json:"patchId"`
	FileURL         string `json:"fileUrl"`
	ConceptsCreated int    `json:"conceptsCreated"`
	ConceptsReused  int    `json:"conceptsReused"`
	EdgesCreated    int    `json:"edgesCreated"`
	ProvenanceLinks int    `json:"provenanceLinks"`
	ConceptsDeleted int    `json:"conceptsDeleted"`
}

// TrackingStore validates that a file URL is a known tracked file.
type TrackingStore interface {
	Exists(fileURL string) (bool, error)
}

// Engine applies extraction patches to the graph store.
type Engine struct {
	store    *graph.Store
	lens     *lens.Lens
	embedder embed.Backend // nil disables embedding
	tracking TrackingStore // nil disables the known-file check
	logger   *logging.Logger
}

// NewEngine creates a patch engine. embedder and tracking may be nil.
func NewEngine(store *graph.Store, l *lens.Lens, embedder embed.Backend, tracking TrackingStore, logger *logging.Logger) *Engine {
	return &Engine{
		store:    store,
		lens:     l,
		embedder: embedder,
		tracking: tracking,
		logger:   logger,
	}
}

// Apply reconciles one file's patch as a single logical unit. Endpoint
// validation happens before any write; concept/provenance/edge changes
// commit in one transaction; the orphan sweep runs afterwards and may
// stop partway without undoing the committed creation. A sweep failure
// returns the non-nil Result alongside the error, which also carries
// the result as details.
func (e *Engine) Apply(fileURL string, p *Patch) (*Result, error) {
	if fileURL == "" {
		return nil, kgerrors.Required("file url")
	}

	if e.tracking != nil {
		known, err := e.tracking.Exists(fileURL)
		if err != nil {
			return nil, err
		}
		if !known {
			return nil, kgerrors.NotFound("tracked file", fileURL)
		}
	}

	for _, c := range p.Concepts {
		if strings.TrimSpace(c.Name) == "" {
			return nil, kgerrors.Required("concept name")
		}
		if err := e.lens.ValidateType(c.Type); err != nil {
			return nil, err
		}
	}
	for _, pe := range p.Edges {
		if err := e.lens.ValidateRelation(pe.Relation); err != nil {
			return nil, err
		}
	}

	// Names proposed in this patch, deduplicated. Two different ids for
	// the same name are never created by one patch.
	proposedNames := make(map[string]bool, len(p.Concepts))
	uniqueConcepts := make([]ProposedConcept, 0, len(p.Concepts))
	for _, c := range p.Concepts {
		if !proposedNames[c.Name] {
			proposedNames[c.Name] = true
			uniqueConcepts = append(uniqueConcepts, c)
		}
	}

	result := &Result{
		PatchID: uuid.NewString(),
		FileURL: fileURL,
	}

	var oldSet []int64
	newSet := make(map[int64]bool, len(uniqueConcepts))
	var createdIDs []int64
	var createdNames []string

	err := e.store.DB().WithTx(func(tx *sql.Tx) error {
		// Step 1: resolve every edge endpoint before any write. A name
		// must resolve against this patch or the store; otherwise the
		// whole patch fails.
		for _, pe := range p.Edges {
			for _, endpoint := range []string{pe.Source, pe.Target} {
				if proposedNames[endpoint] {
					continue
				}
				id, err := graph.LookupConceptIDByNameTx(tx, endpoint)
				if err != nil {
					return err
				}
				if id == 0 {
					return kgerrors.NotFound("edge endpoint concept", endpoint)
				}
			}
		}

		// Step 2: snapshot the concepts currently anchored by the file.
		var err error
		oldSet, err = graph.ConceptIDsForFileTx(tx, fileURL)
		if err != nil {
			return err
		}

		// Step 3: drop the file's provenance wholesale.
		if err := graph.RemoveProvenanceForFileTx(tx, fileURL); err != nil {
			return err
		}

		// Step 4: reuse concepts by name store-wide, create the rest.
		idByName := make(map[string]int64, len(uniqueConcepts))
		for _, c := range uniqueConcepts {
			id, err := graph.LookupConceptIDByNameTx(tx, c.Name)
			if err != nil {
				return err
			}
			if id != 0 {
				result.ConceptsReused++
			} else {
				id, err = graph.CreateConceptTx(tx, c.Name, c.Type)
				if err != nil {
					return err
				}
				result.ConceptsCreated++
				createdIDs = append(createdIDs, id)
				createdNames = append(createdNames, c.Name)
			}
			idByName[c.Name] = id
			newSet[id] = true
		}

		// Step 5: fresh provenance for the new set.
		for _, c := range uniqueConcepts {
			if err := graph.AddProvenanceTx(tx, idByName[c.Name], fileURL); err != nil {
				return err
			}
			result.ProvenanceLinks++
		}

		// Step 6: create edges, resolving endpoints to ids.
		for _, pe := range p.Edges {
			sourceID, err := resolveEndpointTx(tx, idByName, pe.Source)
			if err != nil {
				return err
			}
			targetID, err := resolveEndpointTx(tx, idByName, pe.Target)
			if err != nil {
				return err
			}
			if _, err := graph.CreateEdgeTx(tx, sourceID, targetID, pe.Relation, pe.Weight); err != nil {
				return err
			}
			result.EdgesCreated++
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	e.embedCreated(createdIDs, createdNames)

	deleted, gcErr := e.collectOrphans(oldSet, newSet)
	result.ConceptsDeleted = deleted
	if gcErr != nil {
		// Partial GC is acceptable; the created graph is already
		// committed. Surface the failure without undoing anything.
		e.logger.Warn("orphan sweep stopped early", map[string]interface{}{
			"file_url": fileURL,
			"deleted":  deleted,
			"error":    gcErr.Error(),
		})
		return result, sweepFailure(result, gcErr)
	}

	e.logger.Debug("patch applied", map[string]interface{}{
		"patch_id": result.PatchID,
		"file_url": fileURL,
		"created":  result.ConceptsCreated,
		"reused":   result.ConceptsReused,
		"edges":    result.EdgesCreated,
		"deleted":  result.ConceptsDeleted,
	})

	return result, nil
}

// sweepFailure wraps an orphan-sweep error with the already-committed
// patch result, so the creation counts survive even when callers only
// look at the error.
func sweepFailure(result *Result, cause error) error {
	return kgerrors.QueryError("orphan sweep stopped early", cause).WithDetails(result)
}

func resolveEndpointTx(tx *sql.Tx, idByName map[string]int64, name string) (int64, error) {
	if id, ok := idByName[name]; ok {
		return id, nil
	}
	id, err := graph.LookupConceptIDByNameTx(tx, name)
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, kgerrors.NotFound("edge endpoint concept", name)
	}
	return id, nil
}

// embedCreated attaches best-effort embeddings to newly created
// concepts. Reused concepts keep their original vector; embedding
// failure means no vector, never a patch failure.
func (e *Engine) embedCreated(ids []int64, names []string) {
	if e.embedder == nil || len(ids) == 0 {
		return
	}

	vectors, err := e.embedder.EmbedBatch(names)
	if err != nil {
		e.logger.Warn("embedding batch failed", map[string]interface{}{
			"count": len(names),
			"error": err.Error(),
		})
		return
	}

	for i, id := range ids {
		if i >= len(vectors) || vectors[i] == nil {
			continue
		}
		if err := e.store.SetConceptVector(id, vectors[i]); err != nil {
			e.logger.Warn("storing concept vector failed", map[string]interface{}{
				"concept_id": id,
				"error":      err.Error(),
			})
		}
	}
}

// collectOrphans removes concepts from the old set that are absent from
// the new set, unless another file still anchors them or their type is
// protected. Edges touching an orphan go first, then the concept. The
// sweep stops at the first failure.
func (e *Engine) collectOrphans(oldSet []int64, newSet map[int64]bool) (int, error) {
	deleted := 0
	for _, id := range oldSet {
		if newSet[id] {
			continue
		}

		err := e.store.DB().WithTx(func(tx *sql.Tx) error {
			remaining, err := graph.CountProvenanceTx(tx, id)
			if err != nil {
				return err
			}
			if remaining > 0 {
				return nil
			}

			typ, err := graph.GetConceptTypeTx(tx, id)
			if kgerrors.IsNotFound(err) {
				return nil
			}
			if err != nil {
				return err
			}
			if e.lens.IsProtected(typ) {
				return nil
			}

			if err := graph.DeleteEdgesTouchingTx(tx, id); err != nil {
				return err
			}
			if err := graph.DeleteConceptTx(tx, id); err != nil {
				return err
			}
			deleted++
			return nil
		})
		if err != nil {
			return deleted, err
		}
	}
	return deleted, nil
}
