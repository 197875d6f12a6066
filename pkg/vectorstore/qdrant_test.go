// SPDX-License-Identifier: Apache-2.0

package vectorstore

import (
	"context"
	"reflect"
	"testing"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"

	"github.com/jllopis/gnosis/pkg/errors"
)

type fakeCollections struct {
	pb.CollectionsClient
	names       map[string]bool
	dim         uint64
	createCalls int
}

func (f *fakeCollections) List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error) {
	var cols []*pb.CollectionDescription
	for name := range f.names {
		cols = append(cols, &pb.CollectionDescription{Name: name})
	}
	return &pb.ListCollectionsResponse{Collections: cols}, nil
}

func (f *fakeCollections) Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error) {
	f.createCalls++
	f.names[in.GetCollectionName()] = true
	f.dim = in.GetVectorsConfig().GetParams().GetSize()
	return &pb.CollectionOperationResponse{}, nil
}

func (f *fakeCollections) Get(ctx context.Context, in *pb.GetCollectionInfoRequest, opts ...grpc.CallOption) (*pb.GetCollectionInfoResponse, error) {
	return &pb.GetCollectionInfoResponse{
		Result: &pb.CollectionInfo{
			Config: &pb.CollectionConfig{
				Params: &pb.CollectionParams{
					VectorsConfig: &pb.VectorsConfig{
						Config: &pb.VectorsConfig_Params{
							Params: &pb.VectorParams{Size: f.dim, Distance: pb.Distance_Cosine},
						},
					},
				},
			},
		},
	}, nil
}

type fakePoints struct {
	pb.PointsClient
	upserts []*pb.UpsertPoints
	hits    []*pb.ScoredPoint
}

func (f *fakePoints) Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error) {
	f.upserts = append(f.upserts, in)
	return &pb.PointsOperationResponse{}, nil
}

func (f *fakePoints) Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error) {
	return &pb.SearchResponse{Result: f.hits}, nil
}

func newFakeStore(existing ...string) (*Qdrant, *fakeCollections, *fakePoints) {
	fc := &fakeCollections{names: map[string]bool{}}
	for _, name := range existing {
		fc.names[name] = true
	}
	fp := &fakePoints{}
	return &Qdrant{points: fp, collections: fc, collection: "documents"}, fc, fp
}

func TestEnsureCollectionIdempotent(t *testing.T) {
	store, fc, _ := newFakeStore()
	ctx := context.Background()

	if err := store.EnsureCollection(ctx, 3072); err != nil {
		t.Fatalf("first EnsureCollection failed: %v", err)
	}
	if err := store.EnsureCollection(ctx, 3072); err != nil {
		t.Fatalf("second EnsureCollection failed: %v", err)
	}

	if fc.createCalls != 1 {
		t.Errorf("expected exactly 1 create call, got %d", fc.createCalls)
	}
	if fc.dim != 3072 {
		t.Errorf("expected collection dim 3072, got %d", fc.dim)
	}
}

func TestEnsureCollectionDimMismatch(t *testing.T) {
	store, fc, _ := newFakeStore("documents")
	fc.dim = 1536

	err := store.EnsureCollection(context.Background(), 3072)
	if err == nil {
		t.Fatalf("expected error for dimension mismatch")
	}
	ge := errors.AsGnosisError(err)
	if ge.Code != errors.CodeVectorStore {
		t.Errorf("expected CodeVectorStore, got %v", ge.Code)
	}
	if fc.createCalls != 0 {
		t.Errorf("mismatched collection must not be recreated")
	}
}

func TestUpsertAssignsSequentialIDs(t *testing.T) {
	store, _, fp := newFakeStore()

	count, err := store.Upsert(context.Background(), []Point{
		{Vector: []float32{1, 2}, Payload: Document{Text: "first"}},
		{Vector: []float32{3, 4}, Payload: Document{Text: "second"}},
		{ID: "0a8c6f7e-4a9b-5c3d-8e2f-1a2b3c4d5e6f", Vector: []float32{5, 6}},
	})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if count != 3 {
		t.Errorf("expected 3 points written, got %d", count)
	}

	if len(fp.upserts) != 1 {
		t.Fatalf("expected a single upsert request, got %d", len(fp.upserts))
	}
	pts := fp.upserts[0].GetPoints()
	if pts[0].GetId().GetNum() != 0 || pts[1].GetId().GetNum() != 1 {
		t.Errorf("expected sequential integer ids for id-less points")
	}
	if pts[2].GetId().GetUuid() == "" {
		t.Errorf("expected uuid id to be preserved")
	}
}

func TestUpsertRejectsWrongDimension(t *testing.T) {
	store, _, _ := newFakeStore()
	store.dim = 4

	_, err := store.Upsert(context.Background(), []Point{
		{Vector: []float32{1, 2, 3}},
	})
	if err == nil {
		t.Fatalf("expected error for wrong vector size")
	}
	ge := errors.AsGnosisError(err)
	if ge.Code != errors.CodeVectorStore {
		t.Errorf("expected CodeVectorStore, got %v", ge.Code)
	}
}

func TestUpsertEmpty(t *testing.T) {
	store, _, fp := newFakeStore()

	count, err := store.Upsert(context.Background(), nil)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if count != 0 || len(fp.upserts) != 0 {
		t.Errorf("expected no writes for empty input")
	}
}

func TestSearchEmptyStore(t *testing.T) {
	store, _, _ := newFakeStore()

	results, err := store.Search(context.Background(), []float32{1, 2}, 3, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("expected empty result set, got %d", len(results))
	}
}

func TestSearchReturnsScoredDocuments(t *testing.T) {
	store, _, fp := newFakeStore()
	doc := Document{
		Text:        "qdrant is a vector database",
		FileName:    "intro.md",
		FileExt:     "md",
		Tags:        []string{"vectors", "search", "database"},
		ChunkID:     2,
		TotalChunks: 5,
		Created:     "2026-08-25T10:00:00+02:00",
	}
	fp.hits = []*pb.ScoredPoint{
		{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: "abc"}},
			Score:   0.91,
			Payload: toPayload(doc),
		},
	}

	results, err := store.Search(context.Background(), []float32{1, 2}, 3, 0)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].Score != 0.91 {
		t.Errorf("expected score 0.91, got %f", results[0].Score)
	}
	if !reflect.DeepEqual(results[0].Document, doc) {
		t.Errorf("payload round trip mismatch:\n got %+v\nwant %+v", results[0].Document, doc)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	doc := Document{
		Text:        "some text",
		FileName:    "file.pdf",
		FileExt:     "pdf",
		Tags:        []string{"alpha", "beta", "gamma"},
		ChunkID:     1,
		TotalChunks: 3,
		Created:     "2026-08-25T09:30:00Z",
	}

	got := fromPayload(toPayload(doc))
	if !reflect.DeepEqual(got, doc) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, doc)
	}
}
