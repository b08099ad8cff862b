// Package vectorstore provides the external vector index used for chunk
// retrieval: a Qdrant-backed store and an in-memory store for tests.
package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/code-sleuth/sage-go/internal/rag/interfaces"
	"github.com/code-sleuth/sage-go/internal/rag/models"
	"github.com/code-sleuth/sage-go/pkg/util"
	qdrant "github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

var ErrEmptyVector = errors.New("vector cannot be empty")

// QdrantStore implements interfaces.VectorStore over a Qdrant gRPC
// connection. The collection uses cosine distance; Qdrant reports a cosine
// score (a similarity), which the store converts to a distance so callers
// apply the uniform similarity = 1 - distance rule.
type QdrantStore struct {
	conn        *grpc.ClientConn
	collections qdrant.CollectionsClient
	points      qdrant.PointsClient
	collection  string

	mu      sync.Mutex
	ensured bool

	logger zerolog.Logger
}

// NewQdrantStore connects to Qdrant at host:port and binds to the named
// collection. The collection is created lazily on first write.
func NewQdrantStore(host string, port int, collection string) (*QdrantStore, error) {
	logger := util.NewLogger(util.LogLevelFromEnv())

	target := fmt.Sprintf("%s:%d", host, port)
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		logger.Error().Err(err).Str("target", target).Msg("failed to connect to Qdrant")
		return nil, fmt.Errorf("failed to connect to Qdrant at %s: %w", target, err)
	}

	return &QdrantStore{
		conn:        conn,
		collections: qdrant.NewCollectionsClient(conn),
		points:      qdrant.NewPointsClient(conn),
		collection:  collection,
		logger:      logger,
	}, nil
}

// Close releases the gRPC connection.
func (s *QdrantStore) Close() error {
	return s.conn.Close()
}

// Store upserts a single chunk into the index.
func (s *QdrantStore) Store(ctx context.Context, chunk interfaces.StoredChunk) error {
	return s.StoreBatch(ctx, []interfaces.StoredChunk{chunk})
}

// StoreBatch upserts a batch of chunks into the index.
func (s *QdrantStore) StoreBatch(ctx context.Context, chunks []interfaces.StoredChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if len(chunks[0].Vector) == 0 {
		return ErrEmptyVector
	}

	if err := s.ensureCollection(ctx, len(chunks[0].Vector)); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(chunks))
	for _, chunk := range chunks {
		points = append(points, &qdrant.PointStruct{
			Id: &qdrant.PointId{
				PointIdOptions: &qdrant.PointId_Uuid{Uuid: chunk.ID},
			},
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vector{
					Vector: &qdrant.Vector{Data: chunk.Vector},
				},
			},
			Payload: payloadFromChunk(chunk),
		})
	}

	_, err := s.points.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		s.logger.Error().Err(err).Int("points", len(points)).Msg("failed to upsert points")
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// Search returns the k nearest chunks with payload and distance, in the
// index's relevance order.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, k int) ([]interfaces.SearchResult, error) {
	if len(vector) == 0 {
		return nil, ErrEmptyVector
	}

	enable := true
	resp, err := s.points.Search(ctx, &qdrant.SearchPoints{
		CollectionName: s.collection,
		Vector:         vector,
		Limit:          uint64(k),
		WithPayload: &qdrant.WithPayloadSelector{
			SelectorOptions: &qdrant.WithPayloadSelector_Enable{Enable: enable},
		},
	})
	if err != nil {
		s.logger.Error().Err(err).Str("collection", s.collection).Msg("search failed")
		return nil, fmt.Errorf("failed to search collection %s: %w", s.collection, err)
	}

	results := make([]interfaces.SearchResult, 0, len(resp.GetResult()))
	for _, point := range resp.GetResult() {
		payload := point.GetPayload()
		results = append(results, interfaces.SearchResult{
			Text:     payload["text"].GetStringValue(),
			Metadata: metadataFromPayload(payload),
			Distance: 1 - float64(point.GetScore()),
		})
	}
	return results, nil
}

// Count returns the number of stored chunks, zero when the collection does
// not exist yet.
func (s *QdrantStore) Count(ctx context.Context) (int, error) {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, nil
	}

	exact := true
	resp, err := s.points.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          &exact,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("collection", s.collection).Msg("count failed")
		return 0, fmt.Errorf("failed to count collection %s: %w", s.collection, err)
	}
	return int(resp.GetResult().GetCount()), nil
}

// DeleteAll drops the collection. It is recreated on the next write.
func (s *QdrantStore) DeleteAll(ctx context.Context) error {
	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}

	_, err = s.collections.Delete(ctx, &qdrant.DeleteCollection{
		CollectionName: s.collection,
	})
	if err != nil {
		s.logger.Error().Err(err).Str("collection", s.collection).Msg("failed to delete collection")
		return fmt.Errorf("failed to delete collection %s: %w", s.collection, err)
	}

	s.mu.Lock()
	s.ensured = false
	s.mu.Unlock()

	s.logger.Info().Str("collection", s.collection).Msg("collection deleted")
	return nil
}

func (s *QdrantStore) collectionExists(ctx context.Context) (bool, error) {
	resp, err := s.collections.List(ctx, &qdrant.ListCollectionsRequest{})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list collections")
		return false, fmt.Errorf("failed to list collections: %w", err)
	}
	for _, col := range resp.GetCollections() {
		if col.GetName() == s.collection {
			return true, nil
		}
	}
	return false, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context, dimension int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ensured {
		return nil
	}

	exists, err := s.collectionExists(ctx)
	if err != nil {
		return err
	}

	if !exists {
		_, err = s.collections.Create(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: &qdrant.VectorsConfig{
				Config: &qdrant.VectorsConfig_Params{
					Params: &qdrant.VectorParams{
						Size:     uint64(dimension),
						Distance: qdrant.Distance_Cosine,
					},
				},
			},
		})
		if err != nil {
			s.logger.Error().Err(err).Str("collection", s.collection).Msg("failed to create collection")
			return fmt.Errorf("failed to create collection %s: %w", s.collection, err)
		}
		s.logger.Info().Str("collection", s.collection).Int("dimension", dimension).Msg("collection created")
	}

	s.ensured = true
	return nil
}

func payloadFromChunk(chunk interfaces.StoredChunk) map[string]*qdrant.Value {
	md := chunk.Metadata
	return map[string]*qdrant.Value{
		"text":         {Kind: &qdrant.Value_StringValue{StringValue: chunk.Text}},
		"page_title":   {Kind: &qdrant.Value_StringValue{StringValue: md.PageTitle}},
		"url":          {Kind: &qdrant.Value_StringValue{StringValue: md.URL}},
		"page_id":      {Kind: &qdrant.Value_StringValue{StringValue: md.PageID}},
		"section":      {Kind: &qdrant.Value_StringValue{StringValue: md.Section}},
		"type":         {Kind: &qdrant.Value_StringValue{StringValue: md.Type}},
		"chunk_index":  {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(md.ChunkIndex)}},
		"total_chunks": {Kind: &qdrant.Value_IntegerValue{IntegerValue: int64(md.TotalChunks)}},
	}
}

func metadataFromPayload(payload map[string]*qdrant.Value) models.ChunkMetadata {
	return models.ChunkMetadata{
		PageTitle:   payload["page_title"].GetStringValue(),
		URL:         payload["url"].GetStringValue(),
		PageID:      payload["page_id"].GetStringValue(),
		Section:     payload["section"].GetStringValue(),
		Type:        payload["type"].GetStringValue(),
		ChunkIndex:  int(payload["chunk_index"].GetIntegerValue()),
		TotalChunks: int(payload["total_chunks"].GetIntegerValue()),
	}
}
