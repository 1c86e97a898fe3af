// Package search implements hybrid retrieval: exact and semantic anchor
// search, bounded graph expansion, and file preview assembly.
package search

import (
	"math"
	"sort"
	"strings"

	"ckg/internal/embed"
	"ckg/internal/graph"
	"ckg/internal/kgerrors"
	"ckg/internal/logging"
)

// Mode selects how anchors are found.
type Mode string

const (
	// ModeExact matches concept names by case-insensitive substring.
	ModeExact Mode = "exact"
	// ModeSemantic ranks concepts by vector similarity to the query.
	ModeSemantic Mode = "semantic"
	// ModeHybrid merges exact and semantic anchors.
	ModeHybrid Mode = "hybrid"
)

// Queries shorter than this embed too noisily for semantic search.
const minSemanticQueryLen = 3

// Relevance tags how a concept entered the result set.
type Relevance string

const (
	// RelevanceExact marks a name match.
	RelevanceExact Relevance = "exact"
	// RelevanceSemantic marks a vector-similarity match.
	RelevanceSemantic Relevance = "semantic"
	// RelevanceBoth marks a concept found by both searches.
	RelevanceBoth Relevance = "both"
	// RelevanceNeighbor marks a concept reached only by expansion.
	RelevanceNeighbor Relevance = "neighbor"
)

// Options bound a retrieval call. Zero values take defaults.
type Options struct {
	Depth int  // graph expansion depth, clamped to 0..2
	Limit int  // result bound, clamped to 1..maxLimit
	Mode  Mode // defaults to hybrid
}

// ConceptHit is one concept in the ranked result set.
type ConceptHit struct {
	Concept   *graph.Concept `json:"concept"`
	Relevance Relevance      `json:"relevance"`
	Score     float64        `json:"score,omitempty"`
}

// FileHit is a source file associated with the result set.
type FileHit struct {
	FileURL string `json:"fileUrl"`
	Preview string `json:"preview,omitempty"`
}

// GraphView is the node/edge view over the final result set: only edges
// with both endpoints in the node set appear.
type GraphView struct {
	Nodes []int64       `json:"nodes"`
	Edges []*graph.Edge `json:"edges"`
}

// Result is the full retrieval response.
type Result struct {
	Query    string        `json:"query"`
	Mode     Mode          `json:"mode"`
	Concepts []*ConceptHit `json:"concepts"`
	Graph    GraphView     `json:"graph"`
	Files    []*FileHit    `json:"files"`
}

// PreviewStore supplies indexed file content for previews.
type PreviewStore interface {
	GetIndexedContent(fileURL string) (string, bool, error)
}

// Engine answers retrieval queries over the graph store.
type Engine struct {
	store        *graph.Store
	embedder     embed.Backend // nil degrades semantic search
	previews     PreviewStore  // nil disables previews
	logger       *logging.Logger
	defaultLimit int
	maxLimit     int
	previewChars int
}

// Config tunes engine bounds. Zero values take defaults.
type Config struct {
	DefaultLimit int
	MaxLimit     int
	PreviewChars int
}

// NewEngine creates a retrieval engine. embedder and previews may be nil.
func NewEngine(store *graph.Store, embedder embed.Backend, previews PreviewStore, cfg Config, logger *logging.Logger) *Engine {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 10
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 50
	}
	if cfg.PreviewChars <= 0 {
		cfg.PreviewChars = 240
	}
	return &Engine{
		store:        store,
		embedder:     embedder,
		previews:     previews,
		logger:       logger,
		defaultLimit: cfg.DefaultLimit,
		maxLimit:     cfg.MaxLimit,
		previewChars: cfg.PreviewChars,
	}
}

// Query runs one retrieval call. Store failures surface as QUERY_ERROR
// and fail the whole call; embedding failures degrade to exact-only.
func (e *Engine) Query(text string, opts Options) (*Result, error) {
	if strings.TrimSpace(text) == "" {
		return nil, kgerrors.Required("query")
	}

	mode := opts.Mode
	if mode == "" {
		mode = ModeHybrid
	}
	switch mode {
	case ModeExact, ModeSemantic, ModeHybrid:
	default:
		return nil, kgerrors.Invalid("unknown mode " + string(opts.Mode))
	}

	depth := opts.Depth
	if depth < 0 {
		depth = 0
	}
	if depth > 2 {
		depth = 2
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = e.defaultLimit
	}
	if limit > e.maxLimit {
		limit = e.maxLimit
	}

	if mode == ModeSemantic && len(text) < minSemanticQueryLen {
		return nil, kgerrors.Invalid("query too short for semantic search")
	}

	concepts, err := e.store.ListConcepts("")
	if err != nil {
		return nil, err
	}

	hits, seen := e.anchorSearch(text, mode, limit, concepts)
	if err := e.expand(depth, limit, hits, seen, &hits); err != nil {
		return nil, err
	}

	files, err := e.assembleFiles(hits)
	if err != nil {
		return nil, err
	}

	view, err := e.graphView(hits)
	if err != nil {
		return nil, err
	}

	return &Result{
		Query:    text,
		Mode:     mode,
		Concepts: hits,
		Graph:    view,
		Files:    files,
	}, nil
}

// anchorSearch finds the direct matches for the query.
func (e *Engine) anchorSearch(text string, mode Mode, limit int, concepts []*graph.Concept) ([]*ConceptHit, map[int64]bool) {
	seen := make(map[int64]bool)
	var hits []*ConceptHit

	var exact []*graph.Concept
	if mode == ModeExact || mode == ModeHybrid {
		exact = exactMatches(text, limit, concepts)
	}

	var semantic []scoredConcept
	if mode == ModeSemantic || (mode == ModeHybrid && len(text) >= minSemanticQueryLen) {
		semantic = e.semanticMatches(text, limit, concepts)
	}

	semanticScore := make(map[int64]float64, len(semantic))
	for _, s := range semantic {
		semanticScore[s.concept.ID] = s.score
	}

	for _, c := range exact {
		if len(hits) >= limit {
			break
		}
		hit := &ConceptHit{Concept: c, Relevance: RelevanceExact}
		if score, ok := semanticScore[c.ID]; ok {
			hit.Relevance = RelevanceBoth
			hit.Score = score
		}
		hits = append(hits, hit)
		seen[c.ID] = true
	}

	// Remaining semantic-only matches, best first, until the limit.
	for _, s := range semantic {
		if len(hits) >= limit {
			break
		}
		if seen[s.concept.ID] {
			continue
		}
		hits = append(hits, &ConceptHit{
			Concept:   s.concept,
			Relevance: RelevanceSemantic,
			Score:     s.score,
		})
		seen[s.concept.ID] = true
	}

	return hits, seen
}

// exactMatches scans concept names for a case-insensitive substring
// match, stopping at limit.
func exactMatches(text string, limit int, concepts []*graph.Concept) []*graph.Concept {
	needle := strings.ToLower(text)
	var out []*graph.Concept
	for _, c := range concepts {
		if strings.Contains(strings.ToLower(c.Name), needle) {
			out = append(out, c)
			if len(out) >= limit {
				break
			}
		}
	}
	return out
}

type scoredConcept struct {
	concept *graph.Concept
	score   float64
}

// semanticMatches embeds the query and ranks concepts by cosine
// similarity. An embedding failure degrades to an empty result set.
func (e *Engine) semanticMatches(text string, limit int, concepts []*graph.Concept) []scoredConcept {
	if e.embedder == nil {
		return nil
	}

	queryVec, err := e.embedder.Embed(text)
	if err != nil {
		e.logger.Warn("query embedding failed, degrading to exact search", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}

	var scored []scoredConcept
	for _, c := range concepts {
		if !c.HasVector() || len(c.Vector) != len(queryVec) {
			continue
		}
		distance := 1 - cosineSimilarity(queryVec, c.Vector)
		score := math.Round((1-distance)*1000) / 1000
		scored = append(scored, scoredConcept{concept: c, score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored
}

func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// expand walks the edge graph outward from the anchors. Depth 1 adds
// unseen neighbors of the anchor set; depth 2 repeats from the depth-1
// neighbors only. Already-seen concepts are never re-added or
// re-tagged. A store failure fails the whole call; an edge whose
// endpoint no longer exists is skipped.
func (e *Engine) expand(depth, limit int, anchors []*ConceptHit, seen map[int64]bool, hits *[]*ConceptHit) error {
	if depth < 1 || len(anchors) == 0 {
		return nil
	}

	frontier := make([]int64, 0, len(anchors))
	for _, h := range anchors {
		frontier = append(frontier, h.Concept.ID)
	}

	for level := 1; level <= depth; level++ {
		if len(*hits) >= limit || len(frontier) == 0 {
			return nil
		}

		edges, err := e.store.ListEdgesTouching(frontier)
		if err != nil {
			return err
		}

		inFrontier := make(map[int64]bool, len(frontier))
		for _, id := range frontier {
			inFrontier[id] = true
		}

		var next []int64
		for _, edge := range edges {
			for _, id := range []int64{edge.Source, edge.Target} {
				if seen[id] || inFrontier[id] {
					continue
				}
				if len(*hits) >= limit {
					return nil
				}
				c, err := e.store.GetConcept(id)
				if kgerrors.IsNotFound(err) {
					continue
				}
				if err != nil {
					return err
				}
				*hits = append(*hits, &ConceptHit{Concept: c, Relevance: RelevanceNeighbor})
				seen[id] = true
				next = append(next, id)
			}
		}

		frontier = next
	}
	return nil
}

// assembleFiles collects provenance files for the result set, attaching
// truncated previews where indexed content exists.
func (e *Engine) assembleFiles(hits []*ConceptHit) ([]*FileHit, error) {
	seenFiles := make(map[string]bool)
	var files []*FileHit

	for _, h := range hits {
		links, err := e.store.ListProvenance(h.Concept.ID, "")
		if err != nil {
			return nil, err
		}
		for _, link := range links {
			if seenFiles[link.FileURL] {
				continue
			}
			seenFiles[link.FileURL] = true

			hit := &FileHit{FileURL: link.FileURL}
			if e.previews != nil {
				content, ok, err := e.previews.GetIndexedContent(link.FileURL)
				if err != nil {
					return nil, err
				}
				if ok {
					hit.Preview = truncate(content, e.previewChars)
				}
			}
			files = append(files, hit)
		}
	}

	return files, nil
}

// graphView returns the node id list and the edges internal to it.
func (e *Engine) graphView(hits []*ConceptHit) (GraphView, error) {
	nodes := make([]int64, 0, len(hits))
	inSet := make(map[int64]bool, len(hits))
	for _, h := range hits {
		nodes = append(nodes, h.Concept.ID)
		inSet[h.Concept.ID] = true
	}

	view := GraphView{Nodes: nodes, Edges: []*graph.Edge{}}
	if len(nodes) == 0 {
		return view, nil
	}

	edges, err := e.store.ListEdgesTouching(nodes)
	if err != nil {
		return view, err
	}
	for _, edge := range edges {
		if inSet[edge.Source] && inSet[edge.Target] {
			view.Edges = append(view.Edges, edge)
		}
	}
	return view, nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}
