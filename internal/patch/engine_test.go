package patch

import (
	"errors"
	"testing"

	"ckg/internal/embed"
	"ckg/internal/graph"
	"ckg/internal/kgerrors"
	"ckg/internal/lens"
	"ckg/internal/logging"
	"ckg/internal/storage"
)

// fakeTracking accepts a fixed set of file URLs.
type fakeTracking struct {
	known map[string]bool
}

func (f *fakeTracking) Exists(fileURL string) (bool, error) {
	return f.known[fileURL], nil
}

func newTestEngine(t *testing.T, embedder embed.Backend) (*Engine, *graph.Store) {
	t.Helper()
	db, err := storage.Open(t.TempDir(), storage.Options{}, logging.NewDiscard())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store := graph.NewStore(db)
	engine := NewEngine(store, lens.Default(), embedder, nil, logging.NewDiscard())
	return engine, store
}

func authPatch() *Patch {
	return &Patch{
		Concepts: []ProposedConcept{
			{Name: "AuthService", Type: "Entity"},
			{Name: "TokenRefresh", Type: "Process"},
		},
		Edges: []ProposedEdge{
			{Source: "AuthService", Target: "TokenRefresh", Relation: "uses"},
		},
	}
}

func TestApplyFirstPatch(t *testing.T) {
	engine, store := newTestEngine(t, nil)

	result, err := engine.Apply("file://auth.ts", authPatch())
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}

	if result.PatchID == "" {
		t.Error("PatchID is empty")
	}
	if result.ConceptsCreated != 2 {
		t.Errorf("ConceptsCreated = %d, want 2", result.ConceptsCreated)
	}
	if result.ConceptsReused != 0 {
		t.Errorf("ConceptsReused = %d, want 0", result.ConceptsReused)
	}
	if result.EdgesCreated != 1 {
		t.Errorf("EdgesCreated = %d, want 1", result.EdgesCreated)
	}
	if result.ProvenanceLinks != 2 {
		t.Errorf("ProvenanceLinks = %d, want 2", result.ProvenanceLinks)
	}
	if result.ConceptsDeleted != 0 {
		t.Errorf("ConceptsDeleted = %d, want 0", result.ConceptsDeleted)
	}

	links, err := store.ListProvenance(0, "file://auth.ts")
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 2 {
		t.Errorf("provenance links = %d, want 2", len(links))
	}
}

func TestApplyIdempotent(t *testing.T) {
	engine, store := newTestEngine(t, nil)

	first, err := engine.Apply("file://auth.ts", authPatch())
	if err != nil {
		t.Fatal(err)
	}

	auth, err := store.GetConceptByName("AuthService")
	if err != nil {
		t.Fatal(err)
	}

	second, err := engine.Apply("file://auth.ts", authPatch())
	if err != nil {
		t.Fatalf("second Apply() error = %v", err)
	}

	if second.ConceptsCreated != 0 {
		t.Errorf("second ConceptsCreated = %d, want 0", second.ConceptsCreated)
	}
	if second.ConceptsReused != 2 {
		t.Errorf("second ConceptsReused = %d, want 2", second.ConceptsReused)
	}
	if second.ConceptsDeleted != 0 {
		t.Errorf("second ConceptsDeleted = %d, want 0", second.ConceptsDeleted)
	}
	if second.PatchID == first.PatchID {
		t.Error("patch ids repeat across applications")
	}

	// Concept ids are stable across re-application.
	authAgain, err := store.GetConceptByName("AuthService")
	if err != nil {
		t.Fatal(err)
	}
	if authAgain.ID != auth.ID {
		t.Errorf("AuthService id changed %d -> %d", auth.ID, authAgain.ID)
	}

	// Provenance is replaced, not accumulated.
	links, err := store.ListProvenance(0, "file://auth.ts")
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 2 {
		t.Errorf("provenance links after re-apply = %d, want 2", len(links))
	}
}

func TestApplyRemovedConceptCollected(t *testing.T) {
	engine, store := newTestEngine(t, nil)

	if _, err := engine.Apply("file://auth.ts", authPatch()); err != nil {
		t.Fatal(err)
	}
	doomed, err := store.GetConceptByName("TokenRefresh")
	if err != nil {
		t.Fatal(err)
	}

	// The file no longer mentions TokenRefresh.
	result, err := engine.Apply("file://auth.ts", &Patch{
		Concepts: []ProposedConcept{{Name: "AuthService", Type: "Entity"}},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.ConceptsDeleted != 1 {
		t.Errorf("ConceptsDeleted = %d, want 1", result.ConceptsDeleted)
	}

	if _, err := store.GetConcept(doomed.ID); !kgerrors.IsNotFound(err) {
		t.Errorf("orphan lookup code = %v, want NOT_FOUND", kgerrors.CodeOf(err))
	}

	// Its edges went with it.
	edges, err := store.ListEdges("")
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 0 {
		t.Errorf("edges after sweep = %d, want 0", len(edges))
	}
}

func TestApplySharedConceptSurvives(t *testing.T) {
	engine, store := newTestEngine(t, nil)

	shared := &Patch{Concepts: []ProposedConcept{{Name: "Session", Type: "Entity"}}}
	if _, err := engine.Apply("file://a.ts", shared); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Apply("file://b.ts", shared); err != nil {
		t.Fatal(err)
	}

	// a.ts drops Session; b.ts still anchors it.
	result, err := engine.Apply("file://a.ts", &Patch{})
	if err != nil {
		t.Fatal(err)
	}
	if result.ConceptsDeleted != 0 {
		t.Errorf("ConceptsDeleted = %d, want 0", result.ConceptsDeleted)
	}

	if _, err := store.GetConceptByName("Session"); err != nil {
		t.Errorf("shared concept deleted: %v", err)
	}

	// Once b.ts drops it too, it goes.
	result, err = engine.Apply("file://b.ts", &Patch{})
	if err != nil {
		t.Fatal(err)
	}
	if result.ConceptsDeleted != 1 {
		t.Errorf("ConceptsDeleted after last anchor = %d, want 1", result.ConceptsDeleted)
	}
}

func TestApplyProtectedTypeSurvives(t *testing.T) {
	engine, store := newTestEngine(t, nil)

	caveat := &Patch{Concepts: []ProposedConcept{
		{Name: "RetryIsNotSafe", Type: "Caveat"},
	}}
	if _, err := engine.Apply("file://auth.ts", caveat); err != nil {
		t.Fatal(err)
	}

	result, err := engine.Apply("file://auth.ts", &Patch{})
	if err != nil {
		t.Fatal(err)
	}
	if result.ConceptsDeleted != 0 {
		t.Errorf("ConceptsDeleted = %d, want 0 for protected type", result.ConceptsDeleted)
	}

	c, err := store.GetConceptByName("RetryIsNotSafe")
	if err != nil {
		t.Fatalf("protected concept deleted: %v", err)
	}

	// The survivor has no provenance left.
	links, err := store.ListProvenance(c.ID, "")
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 0 {
		t.Errorf("provenance links on orphaned protected concept = %d, want 0", len(links))
	}
}

func TestApplyEdgeToExistingConcept(t *testing.T) {
	engine, store := newTestEngine(t, nil)

	if _, err := engine.Apply("file://auth.ts", authPatch()); err != nil {
		t.Fatal(err)
	}

	// db.ts links its own concept to one auth.ts introduced.
	result, err := engine.Apply("file://db.ts", &Patch{
		Concepts: []ProposedConcept{{Name: "SessionStore", Type: "Entity"}},
		Edges: []ProposedEdge{
			{Source: "AuthService", Target: "SessionStore", Relation: "uses"},
		},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.ConceptsCreated != 1 {
		t.Errorf("ConceptsCreated = %d, want 1", result.ConceptsCreated)
	}
	if result.EdgesCreated != 1 {
		t.Errorf("EdgesCreated = %d, want 1", result.EdgesCreated)
	}

	edges, err := store.ListEdges("uses")
	if err != nil {
		t.Fatal(err)
	}
	if len(edges) != 2 {
		t.Errorf("total uses edges = %d, want 2", len(edges))
	}
}

func TestApplyUnresolvableEndpointFailsWholePatch(t *testing.T) {
	engine, store := newTestEngine(t, nil)

	_, err := engine.Apply("file://auth.ts", &Patch{
		Concepts: []ProposedConcept{{Name: "AuthService", Type: "Entity"}},
		Edges: []ProposedEdge{
			{Source: "AuthService", Target: "Ghost", Relation: "uses"},
		},
	})
	if !kgerrors.IsNotFound(err) {
		t.Fatalf("error code = %v, want NOT_FOUND", kgerrors.CodeOf(err))
	}

	// Nothing was written.
	concepts, listErr := store.ListConcepts("")
	if listErr != nil {
		t.Fatal(listErr)
	}
	if len(concepts) != 0 {
		t.Errorf("concepts after failed patch = %d, want 0", len(concepts))
	}
}

func TestApplyFailureLeavesPriorStateIntact(t *testing.T) {
	engine, store := newTestEngine(t, nil)

	if _, err := engine.Apply("file://auth.ts", authPatch()); err != nil {
		t.Fatal(err)
	}

	_, err := engine.Apply("file://auth.ts", &Patch{
		Concepts: []ProposedConcept{{Name: "Replacement", Type: "Entity"}},
		Edges: []ProposedEdge{
			{Source: "Replacement", Target: "Ghost", Relation: "uses"},
		},
	})
	if err == nil {
		t.Fatal("Apply() with bad endpoint succeeded")
	}

	// The failed patch must not have dropped auth.ts provenance.
	links, err := store.ListProvenance(0, "file://auth.ts")
	if err != nil {
		t.Fatal(err)
	}
	if len(links) != 2 {
		t.Errorf("provenance after failed patch = %d links, want 2", len(links))
	}
}

func TestApplyDuplicateNamesInPatch(t *testing.T) {
	engine, store := newTestEngine(t, nil)

	result, err := engine.Apply("file://a.ts", &Patch{
		Concepts: []ProposedConcept{
			{Name: "Session", Type: "Entity"},
			{Name: "Session", Type: "Process"},
		},
	})
	if err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if result.ConceptsCreated != 1 {
		t.Errorf("ConceptsCreated = %d, want 1", result.ConceptsCreated)
	}

	concepts, err := store.ListConcepts("")
	if err != nil {
		t.Fatal(err)
	}
	if len(concepts) != 1 {
		t.Fatalf("concepts = %d, want 1", len(concepts))
	}
	// First occurrence wins the type.
	if concepts[0].Type != "Entity" {
		t.Errorf("Type = %q, want %q", concepts[0].Type, "Entity")
	}
}

func TestApplyValidation(t *testing.T) {
	engine, _ := newTestEngine(t, nil)

	tests := []struct {
		name     string
		fileURL  string
		patch    *Patch
		wantCode kgerrors.ErrorCode
	}{
		{
			name:     "empty file url",
			fileURL:  "",
			patch:    &Patch{},
			wantCode: kgerrors.CodeRequired,
		},
		{
			name:    "empty concept name",
			fileURL: "file://a.ts",
			patch: &Patch{
				Concepts: []ProposedConcept{{Name: " ", Type: "Entity"}},
			},
			wantCode: kgerrors.CodeRequired,
		},
		{
			name:    "empty concept type",
			fileURL: "file://a.ts",
			patch: &Patch{
				Concepts: []ProposedConcept{{Name: "A", Type: ""}},
			},
			wantCode: kgerrors.CodeRequired,
		},
		{
			name:    "empty relation",
			fileURL: "file://a.ts",
			patch: &Patch{
				Concepts: []ProposedConcept{{Name: "A", Type: "Entity"}},
				Edges:    []ProposedEdge{{Source: "A", Target: "A", Relation: ""}},
			},
			wantCode: kgerrors.CodeRequired,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := engine.Apply(tt.fileURL, tt.patch)
			if kgerrors.CodeOf(err) != tt.wantCode {
				t.Errorf("error code = %v, want %v", kgerrors.CodeOf(err), tt.wantCode)
			}
		})
	}
}

func TestApplyNonGoldenTypeAccepted(t *testing.T) {
	engine, store := newTestEngine(t, nil)

	// The golden sets are advisory; any non-empty type passes.
	_, err := engine.Apply("file://a.ts", &Patch{
		Concepts: []ProposedConcept{{Name: "Widget", Type: "CustomKind"}},
	})
	if err != nil {
		t.Fatalf("Apply() with non-golden type error = %v", err)
	}
	c, err := store.GetConceptByName("Widget")
	if err != nil {
		t.Fatal(err)
	}
	if c.Type != "CustomKind" {
		t.Errorf("Type = %q, want %q", c.Type, "CustomKind")
	}
}

func TestApplyUntrackedFileRejected(t *testing.T) {
	db, err := storage.Open(t.TempDir(), storage.Options{}, logging.NewDiscard())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	store := graph.NewStore(db)
	tracking := &fakeTracking{known: map[string]bool{"file://known.ts": true}}
	engine := NewEngine(store, lens.Default(), nil, tracking, logging.NewDiscard())

	_, err = engine.Apply("file://unknown.ts", authPatch())
	if !kgerrors.IsNotFound(err) {
		t.Errorf("untracked file error code = %v, want NOT_FOUND", kgerrors.CodeOf(err))
	}

	if _, err := engine.Apply("file://known.ts", authPatch()); err != nil {
		t.Errorf("tracked file Apply() error = %v", err)
	}
}

func TestApplyEmbedsCreatedConcepts(t *testing.T) {
	engine, store := newTestEngine(t, embed.NewMock(16))

	if _, err := engine.Apply("file://auth.ts", authPatch()); err != nil {
		t.Fatal(err)
	}

	c, err := store.GetConceptByName("AuthService")
	if err != nil {
		t.Fatal(err)
	}
	if !c.HasVector() {
		t.Error("created concept has no vector")
	}
	if len(c.Vector) != 16 {
		t.Errorf("vector length = %d, want 16", len(c.Vector))
	}
}

func TestApplyReusedConceptKeepsVector(t *testing.T) {
	engine, store := newTestEngine(t, embed.NewMock(16))

	if _, err := engine.Apply("file://auth.ts", authPatch()); err != nil {
		t.Fatal(err)
	}
	before, err := store.GetConceptByName("AuthService")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := engine.Apply("file://auth.ts", authPatch()); err != nil {
		t.Fatal(err)
	}
	after, err := store.GetConceptByName("AuthService")
	if err != nil {
		t.Fatal(err)
	}

	if len(before.Vector) != len(after.Vector) {
		t.Fatalf("vector length changed %d -> %d", len(before.Vector), len(after.Vector))
	}
	for i := range before.Vector {
		if before.Vector[i] != after.Vector[i] {
			t.Fatal("reused concept vector changed across re-apply")
		}
	}
}

func TestSweepFailureCarriesResult(t *testing.T) {
	result := &Result{
		PatchID:         "p-1",
		FileURL:         "file://auth.ts",
		ConceptsCreated: 2,
		ConceptsDeleted: 1,
	}
	cause := errors.New("disk gone")

	err := sweepFailure(result, cause)
	if !kgerrors.IsQueryError(err) {
		t.Errorf("error code = %v, want QUERY_ERROR", kgerrors.CodeOf(err))
	}
	if !errors.Is(err, cause) {
		t.Error("cause lost in wrapping")
	}

	var kerr *kgerrors.Error
	if !errors.As(err, &kerr) {
		t.Fatal("not a coded error")
	}
	got, ok := kerr.Details.(*Result)
	if !ok {
		t.Fatalf("Details = %T, want *Result", kerr.Details)
	}
	if got.ConceptsCreated != 2 || got.ConceptsDeleted != 1 {
		t.Errorf("details counts = %d/%d, want 2/1", got.ConceptsCreated, got.ConceptsDeleted)
	}
}

func TestCollectOrphansStopsOnStoreFailure(t *testing.T) {
	engine, store := newTestEngine(t, nil)

	id, err := store.CreateConcept("Doomed", "Entity")
	if err != nil {
		t.Fatal(err)
	}

	// Break the store: the sweep must stop and report the failure with
	// the partial deletion count.
	if err := store.DB().Conn().Close(); err != nil {
		t.Fatal(err)
	}

	deleted, err := engine.collectOrphans([]int64{id}, map[int64]bool{})
	if err == nil {
		t.Fatal("collectOrphans() over a broken store succeeded")
	}
	if deleted != 0 {
		t.Errorf("deleted = %d, want 0", deleted)
	}
}

func TestApplyEmptyPatchClearsFile(t *testing.T) {
	engine, store := newTestEngine(t, nil)

	if _, err := engine.Apply("file://auth.ts", authPatch()); err != nil {
		t.Fatal(err)
	}

	result, err := engine.Apply("file://auth.ts", &Patch{})
	if err != nil {
		t.Fatalf("empty patch Apply() error = %v", err)
	}
	if result.ConceptsDeleted != 2 {
		t.Errorf("ConceptsDeleted = %d, want 2", result.ConceptsDeleted)
	}

	concepts, err := store.ListConcepts("")
	if err != nil {
		t.Fatal(err)
	}
	if len(concepts) != 0 {
		t.Errorf("concepts after clearing patch = %d, want 0", len(concepts))
	}
}
