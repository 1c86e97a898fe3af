package track

import (
	"testing"

	"ckg/internal/kgerrors"
	"ckg/internal/logging"
	"ckg/internal/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := storage.Open(t.TempDir(), storage.Options{}, logging.NewDiscard())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func TestHashContent(t *testing.T) {
	a := HashContent([]byte("hello"))
	b := HashContent([]byte("hello"))
	c := HashContent([]byte("world"))

	if a != b {
		t.Error("same content hashed differently")
	}
	if a == c {
		t.Error("different content hashed identically")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}

func TestTrackAndExists(t *testing.T) {
	s := newTestStore(t)

	ok, err := s.Exists("file://a.ts")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Exists() before tracking = true")
	}

	if err := s.Track("file://a.ts", []byte("content")); err != nil {
		t.Fatalf("Track() error = %v", err)
	}

	ok, err = s.Exists("file://a.ts")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Error("Exists() after tracking = false")
	}
}

func TestTrackReplacesHash(t *testing.T) {
	s := newTestStore(t)

	if err := s.Track("file://a.ts", []byte("v1")); err != nil {
		t.Fatal(err)
	}
	if err := s.Track("file://a.ts", []byte("v2")); err != nil {
		t.Fatalf("re-Track() error = %v", err)
	}

	files, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 {
		t.Fatalf("List() = %d files, want 1", len(files))
	}
	if files[0].ContentHash != HashContent([]byte("v2")) {
		t.Error("hash not replaced on re-track")
	}
}

func TestTrackRequiresURL(t *testing.T) {
	s := newTestStore(t)

	if err := s.Track("", []byte("x")); !kgerrors.IsRequired(err) {
		t.Errorf("Track(\"\") code = %v, want REQUIRED", kgerrors.CodeOf(err))
	}
}

func TestUntrack(t *testing.T) {
	s := newTestStore(t)

	if err := s.Track("file://a.ts", []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := s.Index("file://a.ts", "x"); err != nil {
		t.Fatal(err)
	}

	if err := s.Untrack("file://a.ts"); err != nil {
		t.Fatalf("Untrack() error = %v", err)
	}

	ok, err := s.Exists("file://a.ts")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("Exists() after untrack = true")
	}

	// Indexed content goes with the tracking row.
	_, found, err := s.GetIndexedContent("file://a.ts")
	if err != nil {
		t.Fatal(err)
	}
	if found {
		t.Error("indexed content survived untrack")
	}

	if err := s.Untrack("file://a.ts"); !kgerrors.IsNotFound(err) {
		t.Errorf("second Untrack() code = %v, want NOT_FOUND", kgerrors.CodeOf(err))
	}
}

func TestList(t *testing.T) {
	s := newTestStore(t)

	for _, url := range []string{"file://b.ts", "file://a.ts"} {
		if err := s.Track(url, []byte(url)); err != nil {
			t.Fatal(err)
		}
	}

	files, err := s.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 2 {
		t.Fatalf("List() = %d files, want 2", len(files))
	}
	if files[0].FileURL != "file://a.ts" {
		t.Errorf("List() not ordered by url: first = %q", files[0].FileURL)
	}
	if files[0].TrackedAt == "" {
		t.Error("TrackedAt is empty")
	}
}

func TestIndexAndGetContent(t *testing.T) {
	s := newTestStore(t)

	if err := s.Index("file://a.ts", "export class A {}"); err != nil {
		t.Fatalf("Index() error = %v", err)
	}

	content, ok, err := s.GetIndexedContent("file://a.ts")
	if err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("GetIndexedContent() found = false")
	}
	if content != "export class A {}" {
		t.Errorf("content = %q", content)
	}

	// Re-index replaces.
	if err := s.Index("file://a.ts", "updated"); err != nil {
		t.Fatal(err)
	}
	content, _, err = s.GetIndexedContent("file://a.ts")
	if err != nil {
		t.Fatal(err)
	}
	if content != "updated" {
		t.Errorf("content after re-index = %q, want %q", content, "updated")
	}
}

func TestGetIndexedContentMissing(t *testing.T) {
	s := newTestStore(t)

	_, ok, err := s.GetIndexedContent("file://nope.ts")
	if err != nil {
		t.Fatal(err)
	}
	if ok {
		t.Error("found = true for unindexed file")
	}
}

func TestSearchContent(t *testing.T) {
	s := newTestStore(t)

	if err := s.Index("file://auth.ts", "token refresh and session handling"); err != nil {
		t.Fatal(err)
	}
	if err := s.Index("file://db.ts", "database connection pooling"); err != nil {
		t.Fatal(err)
	}

	urls, err := s.SearchContent("token refresh", 10)
	if err != nil {
		t.Fatalf("SearchContent() error = %v", err)
	}
	if len(urls) != 1 || urls[0] != "file://auth.ts" {
		t.Errorf("SearchContent() = %v, want [file://auth.ts]", urls)
	}

	urls, err = s.SearchContent("nonexistent", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(urls) != 0 {
		t.Errorf("SearchContent(miss) = %v, want empty", urls)
	}
}

func TestSearchContentQuotesOperators(t *testing.T) {
	s := newTestStore(t)

	if err := s.Index("file://a.ts", "select AND insert"); err != nil {
		t.Fatal(err)
	}

	// FTS operator words are treated as plain terms.
	urls, err := s.SearchContent("AND", 10)
	if err != nil {
		t.Fatalf("SearchContent(\"AND\") error = %v", err)
	}
	if len(urls) != 1 {
		t.Errorf("SearchContent(\"AND\") = %v, want one hit", urls)
	}
}

func TestSearchContentRequiresQuery(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.SearchContent("  ", 10); !kgerrors.IsRequired(err) {
		t.Errorf("SearchContent(blank) code = %v, want REQUIRED", kgerrors.CodeOf(err))
	}
}

func TestFTSQuote(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"token", `"token"`},
		{"token refresh", `"token" "refresh"`},
		{`say "hi"`, `"say" """hi"""`},
	}

	for _, tt := range tests {
		if got := ftsQuote(tt.in); got != tt.want {
			t.Errorf("ftsQuote(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
