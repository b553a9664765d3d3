package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

const (
	// Vector field names for hybrid search
	denseVectorName  = "dense"
	sparseVectorName = "sparse"

	// payloadKeyID holds the compound record key inside the point payload,
	// since qdrant point IDs must be UUIDs.
	payloadKeyID   = "id"
	payloadKeyText = "text"
)

// QdrantStore implements Store using Qdrant with named dense+sparse vectors
// and RRF fusion queries.
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore creates a new Qdrant vector store client.
// url should be in format "host:port" (e.g., "localhost:6334")
func NewQdrantStore(ctx context.Context, url string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		// If no port specified, assume default
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

// Close closes the Qdrant client connection
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// collectionName maps an index/namespace pair to a qdrant collection.
func collectionName(index, namespace string) string {
	return fmt.Sprintf("%s_%s", index, namespace)
}

// pointID derives a deterministic UUID from the compound record key so that
// re-upserting the same key stays idempotent.
func pointID(recordID string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(recordID)).String()
}

// EnsureNamespace creates the hybrid collection for an index/namespace pair
// if it does not already exist.
func (s *QdrantStore) EnsureNamespace(ctx context.Context, index, namespace string, dimension int) error {
	name := collectionName(index, namespace)

	exists, err := s.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("%w: checking collection: %v", ErrWrite, err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			denseVectorName: {
				Size:     uint64(dimension),
				Distance: qdrant.Distance_Cosine,
			},
		}),
		SparseVectorsConfig: qdrant.NewSparseVectorsConfig(map[string]*qdrant.SparseVectorParams{
			sparseVectorName: {}, // Use default sparse vector config
		}),
	})
	if err != nil {
		return fmt.Errorf("%w: creating collection: %v", ErrWrite, err)
	}

	return nil
}

// Upsert inserts or replaces records in the namespace.
func (s *QdrantStore) Upsert(ctx context.Context, index, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	name := collectionName(index, namespace)

	points := make([]*qdrant.PointStruct, len(records))
	for i, record := range records {
		payload := map[string]*qdrant.Value{
			payloadKeyID:   qdrant.NewValueString(record.ID),
			payloadKeyText: qdrant.NewValueString(record.Text),
		}
		for k, v := range record.Metadata {
			payload[k] = qdrant.NewValueString(v)
		}

		vectors := map[string]*qdrant.Vector{
			denseVectorName: {Data: record.Dense},
		}
		if record.Sparse != nil {
			vectors[sparseVectorName] = &qdrant.Vector{
				Indices: &qdrant.SparseIndices{Data: record.Sparse.Indices},
				Data:    record.Sparse.Values,
			}
		}

		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointID(record.ID)),
			Payload: payload,
			Vectors: &qdrant.Vectors{
				VectorsOptions: &qdrant.Vectors_Vectors{
					Vectors: &qdrant.NamedVectors{Vectors: vectors},
				},
			},
		}
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: name,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("%w: upserting %d points: %v", ErrWrite, len(points), err)
	}

	return nil
}

// Query performs hybrid search combining dense and sparse vectors with RRF
// fusion, returning payloads but not raw vector values.
func (s *QdrantStore) Query(ctx context.Context, index, namespace string, dense []float32, sparse *SparseVector, topK int) ([]Match, error) {
	name := collectionName(index, namespace)

	// Get more candidates per modality for fusion
	prefetchLimit := uint64(topK * 2)

	prefetch := []*qdrant.PrefetchQuery{
		{
			Query: qdrant.NewQueryDense(dense),
			Using: qdrant.PtrOf(denseVectorName),
			Limit: qdrant.PtrOf(prefetchLimit),
		},
	}

	if sparse != nil && len(sparse.Indices) > 0 {
		prefetch = append(prefetch, &qdrant.PrefetchQuery{
			Query: qdrant.NewQuerySparse(sparse.Indices, sparse.Values),
			Using: qdrant.PtrOf(sparseVectorName),
			Limit: qdrant.PtrOf(prefetchLimit),
		})
	}

	response, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Prefetch:       prefetch,
		Query:          qdrant.NewQueryFusion(qdrant.Fusion_RRF),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQuery, err)
	}

	matches := make([]Match, 0, len(response))
	for _, point := range response {
		match := Match{
			Score:   point.Score,
			Payload: make(map[string]string),
		}

		for k, v := range point.Payload {
			switch k {
			case payloadKeyID:
				match.ID = v.GetStringValue()
			case payloadKeyText:
				match.Text = v.GetStringValue()
			default:
				match.Payload[k] = v.GetStringValue()
			}
		}

		matches = append(matches, match)
	}

	return matches, nil
}

// DeleteDocument removes all vectors belonging to a document.
func (s *QdrantStore) DeleteDocument(ctx context.Context, index, namespace, documentName string) error {
	name := collectionName(index, namespace)

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: name,
		Points: &qdrant.PointsSelector{
			PointsSelectorOneOf: &qdrant.PointsSelector_Filter{
				Filter: &qdrant.Filter{
					Must: []*qdrant.Condition{
						qdrant.NewMatch("documentName", documentName),
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("%w: deleting document %q: %v", ErrWrite, documentName, err)
	}

	return nil
}

// DeleteNamespace removes every vector in the namespace by dropping its
// collection.
func (s *QdrantStore) DeleteNamespace(ctx context.Context, index, namespace string) error {
	name := collectionName(index, namespace)

	if err := s.client.DeleteCollection(ctx, name); err != nil {
		return fmt.Errorf("%w: deleting namespace %q: %v", ErrWrite, namespace, err)
	}

	return nil
}

// Ensure QdrantStore implements Store
var _ Store = (*QdrantStore)(nil)
