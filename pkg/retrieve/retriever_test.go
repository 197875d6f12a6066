// SPDX-License-Identifier: Apache-2.0

package retrieve

import (
	"context"
	"fmt"
	"testing"

	"github.com/jllopis/gnosis/pkg/vectorstore"
)

type stubEmbedder struct {
	queries []string
	err     error
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 2, 3}
	}
	return out, nil
}

func (s *stubEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.queries = append(s.queries, text)
	return []float32{1, 2, 3}, nil
}

func (s *stubEmbedder) Dimensions() int { return 3 }
func (s *stubEmbedder) Model() string   { return "stub" }

type stubStore struct {
	docs      []vectorstore.ScoredDocument
	lastLimit int
}

func (s *stubStore) EnsureCollection(_ context.Context, _ int) error { return nil }

func (s *stubStore) Upsert(_ context.Context, pts []vectorstore.Point) (int, error) {
	return len(pts), nil
}

func (s *stubStore) Search(_ context.Context, _ []float32, limit int, _ float32) ([]vectorstore.ScoredDocument, error) {
	s.lastLimit = limit
	if len(s.docs) > limit {
		return s.docs[:limit], nil
	}
	return s.docs, nil
}

func TestRetrieveEmptyStore(t *testing.T) {
	r := New(&stubEmbedder{}, &stubStore{}, 3, 0)

	docs, err := r.Retrieve(context.Background(), "anything")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if len(docs) != 0 {
		t.Errorf("expected empty result from empty store, got %d", len(docs))
	}
}

func TestRetrieveUsesConfiguredLimit(t *testing.T) {
	store := &stubStore{}
	for i := 0; i < 5; i++ {
		store.docs = append(store.docs, vectorstore.ScoredDocument{
			Document: vectorstore.Document{Text: fmt.Sprintf("doc %d", i)},
			Score:    float32(5-i) / 10,
		})
	}
	r := New(&stubEmbedder{}, store, 3, 0)

	docs, err := r.Retrieve(context.Background(), "query")
	if err != nil {
		t.Fatalf("Retrieve failed: %v", err)
	}
	if store.lastLimit != 3 {
		t.Errorf("expected search limit 3, got %d", store.lastLimit)
	}
	if len(docs) != 3 {
		t.Errorf("expected 3 documents, got %d", len(docs))
	}
	if docs[0].Text != "doc 0" {
		t.Errorf("expected best match first, got %q", docs[0].Text)
	}
}

func TestRetrieveDefaultLimit(t *testing.T) {
	r := New(&stubEmbedder{}, &stubStore{}, 0, 0)
	if r.Limit() != DefaultLimit {
		t.Errorf("expected default limit %d, got %d", DefaultLimit, r.Limit())
	}
}

func TestRetrieveEmbedError(t *testing.T) {
	r := New(&stubEmbedder{err: fmt.Errorf("no api key")}, &stubStore{}, 3, 0)

	if _, err := r.Retrieve(context.Background(), "query"); err == nil {
		t.Fatalf("expected embedding error to propagate")
	}
}
