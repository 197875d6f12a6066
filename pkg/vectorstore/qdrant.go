// Copyright 2026 © The Gnosis Authors
// SPDX-License-Identifier: Apache-2.0

package vectorstore

import (
	"context"
	"fmt"
	"log/slog"

	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/jllopis/gnosis/pkg/errors"
)

// Qdrant implements Store over the Qdrant gRPC API.
type Qdrant struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dim         int
}

// NewQdrant connects to addr and binds the store to collection. The
// collection name is fixed for the lifetime of the store.
func NewQdrant(addr, collection string) (*Qdrant, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, errors.New(errors.CodeVectorStore,
			fmt.Sprintf("failed to connect to qdrant at %s", addr), err)
	}

	return &Qdrant{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// Close releases the underlying connection.
func (s *Qdrant) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// Collection returns the bound collection name.
func (s *Qdrant) Collection() string { return s.collection }

// Ping verifies the server is reachable. Used by health checks.
func (s *Qdrant) Ping(ctx context.Context) error {
	_, err := s.collectionExists(ctx)
	return err
}

// EnsureCollection creates the collection with a cosine distance metric
// if it does not exist. When the collection already exists its vector
// size is checked against dim; a mismatch is fatal since every upsert
// and search would fail anyway.
func (s *Qdrant) EnsureCollection(ctx context.Context, dim int) error {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}

	if exists {
		existingDim, err := s.collectionDim(ctx)
		if err != nil {
			return err
		}
		if existingDim > 0 && existingDim != dim {
			return errors.New(errors.CodeVectorStore,
				fmt.Sprintf("collection %s has vector size %d, expected %d", s.collection, existingDim, dim), nil).
				WithContext("collection", s.collection)
		}
		s.dim = dim
		return nil
	}

	_, err = s.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dim),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return errors.New(errors.CodeVectorStore,
			fmt.Sprintf("failed to create collection %s", s.collection), err).
			WithRecoverable(true)
	}

	slog.Info("vectorstore.collection.created", "collection", s.collection, "dim", dim)
	s.dim = dim
	return nil
}

func (s *Qdrant) collectionExists(ctx context.Context) (bool, error) {
	resp, err := s.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return false, errors.New(errors.CodeVectorStore, "failed to list collections", err).
			WithRecoverable(true)
	}
	for _, col := range resp.GetCollections() {
		if col.GetName() == s.collection {
			return true, nil
		}
	}
	return false, nil
}

// collectionDim reads the vector size of the existing collection.
// Returns 0 when the server response does not carry one.
func (s *Qdrant) collectionDim(ctx context.Context) (int, error) {
	resp, err := s.collections.Get(ctx, &pb.GetCollectionInfoRequest{CollectionName: s.collection})
	if err != nil {
		return 0, errors.New(errors.CodeVectorStore,
			fmt.Sprintf("failed to describe collection %s", s.collection), err).
			WithRecoverable(true)
	}
	params := resp.GetResult().GetConfig().GetParams().GetVectorsConfig().GetParams()
	if params == nil {
		return 0, nil
	}
	return int(params.GetSize()), nil
}

// Upsert writes points to the collection. Points without an ID get a
// sequential integer identifier based on their position in the batch.
func (s *Qdrant) Upsert(ctx context.Context, points []Point) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	qPoints := make([]*pb.PointStruct, len(points))
	for i, p := range points {
		if s.dim > 0 && len(p.Vector) != s.dim {
			return 0, errors.New(errors.CodeVectorStore,
				fmt.Sprintf("point %d has vector size %d, collection %s expects %d", i, len(p.Vector), s.collection, s.dim), nil)
		}

		var id *pb.PointId
		if p.ID != "" {
			id = &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: p.ID}}
		} else {
			id = &pb.PointId{PointIdOptions: &pb.PointId_Num{Num: uint64(i)}}
		}

		qPoints[i] = &pb.PointStruct{
			Id: id,
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: p.Vector},
				},
			},
			Payload: toPayload(p.Payload),
		}
	}

	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Points:         qPoints,
	})
	if err != nil {
		return 0, errors.New(errors.CodeVectorStore, "failed to upsert points", err)
	}

	return len(qPoints), nil
}

// Search returns the limit nearest points with payloads, best match
// first.
func (s *Qdrant) Search(ctx context.Context, vector []float32, limit int, scoreThreshold float32) ([]ScoredDocument, error) {
	req := &pb.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if scoreThreshold > 0 {
		req.ScoreThreshold = &scoreThreshold
	}

	resp, err := s.points.Search(ctx, req)
	if err != nil {
		return nil, errors.New(errors.CodeVectorStore, "failed to search points", err)
	}

	results := make([]ScoredDocument, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		results[i] = ScoredDocument{
			Document: fromPayload(r.GetPayload()),
			Score:    r.GetScore(),
		}
	}
	return results, nil
}

func toPayload(doc Document) map[string]*pb.Value {
	tags := make([]*pb.Value, len(doc.Tags))
	for i, tag := range doc.Tags {
		tags[i] = &pb.Value{Kind: &pb.Value_StringValue{StringValue: tag}}
	}

	return map[string]*pb.Value{
		"text":         {Kind: &pb.Value_StringValue{StringValue: doc.Text}},
		"file_name":    {Kind: &pb.Value_StringValue{StringValue: doc.FileName}},
		"file_ext":     {Kind: &pb.Value_StringValue{StringValue: doc.FileExt}},
		"tags":         {Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: tags}}},
		"chunk_id":     {Kind: &pb.Value_IntegerValue{IntegerValue: int64(doc.ChunkID)}},
		"total_chunks": {Kind: &pb.Value_IntegerValue{IntegerValue: int64(doc.TotalChunks)}},
		"created":      {Kind: &pb.Value_StringValue{StringValue: doc.Created}},
	}
}

func fromPayload(payload map[string]*pb.Value) Document {
	doc := Document{
		Text:        payload["text"].GetStringValue(),
		FileName:    payload["file_name"].GetStringValue(),
		FileExt:     payload["file_ext"].GetStringValue(),
		ChunkID:     int(payload["chunk_id"].GetIntegerValue()),
		TotalChunks: int(payload["total_chunks"].GetIntegerValue()),
		Created:     payload["created"].GetStringValue(),
	}
	for _, v := range payload["tags"].GetListValue().GetValues() {
		doc.Tags = append(doc.Tags, v.GetStringValue())
	}
	return doc
}
