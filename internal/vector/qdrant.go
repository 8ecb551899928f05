package vector

import (
	"context"
	"fmt"
	"hash/fnv"

	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"
)

// QdrantDatabase is the Qdrant-backed VectorDatabase. Grounded on the
// teacher's service_init.go call site (vector.NewQdrantDatabase(host, port,
// apiKey, logger)); the teacher's own qdrant wrapper wasn't retrieved, so
// the client calls below follow the qdrant/go-client v1.15 public API
// directly.
type QdrantDatabase struct {
	client *qdrant.Client
	logger *zap.Logger
}

// NewQdrantDatabase dials a Qdrant instance at host:port, using apiKey when
// non-empty.
func NewQdrantDatabase(host string, port int, apiKey string, logger *zap.Logger) (*QdrantDatabase, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to construct qdrant client for %s:%d: %w", host, port, err)
	}
	return &QdrantDatabase{client: client, logger: logger}, nil
}

func toQdrantDistance(m DistanceMetric) qdrant.Distance {
	switch m {
	case DistanceMetricCosine:
		return qdrant.Distance_Cosine
	default:
		return qdrant.Distance_Cosine
	}
}

func (q *QdrantDatabase) EnsureCollection(ctx context.Context, collection string, dims int, metric DistanceMetric) error {
	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return fmt.Errorf("failed to check collection %s existence: %w", collection, err)
	}
	if exists {
		return nil
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: toQdrantDistance(metric),
		}),
	})
}

func (q *QdrantDatabase) CollectionInfo(ctx context.Context, collection string) (CollectionCompatibility, bool, error) {
	exists, err := q.client.CollectionExists(ctx, collection)
	if err != nil {
		return CollectionCompatibility{}, false, fmt.Errorf("failed to check collection %s existence: %w", collection, err)
	}
	if !exists {
		return CollectionCompatibility{}, false, nil
	}
	info, err := q.client.GetCollectionInfo(ctx, collection)
	if err != nil {
		return CollectionCompatibility{}, false, fmt.Errorf("failed to get collection %s info: %w", collection, err)
	}
	var dims int
	if vp := info.GetConfig().GetParams().GetVectorsConfig().GetParams(); vp != nil {
		dims = int(vp.GetSize())
	}
	var count int64
	if info.PointsCount != nil {
		count = int64(*info.PointsCount)
	}
	return CollectionCompatibility{ExistingDims: dims, PointCount: count}, true, nil
}

func (q *QdrantDatabase) RecreateCollection(ctx context.Context, collection string, dims int, metric DistanceMetric) error {
	if err := q.client.DeleteCollection(ctx, collection); err != nil {
		q.logger.Warn("failed to delete collection before recreate, continuing", zap.String("collection", collection), zap.Error(err))
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dims),
			Distance: toQdrantDistance(metric),
		}),
	})
}

func (q *QdrantDatabase) DeleteCollection(ctx context.Context, collection string) error {
	return q.client.DeleteCollection(ctx, collection)
}

// pointID hashes a content-addressed string id (e.g. a chunk or embedding
// id) down to the uint64 point id Qdrant requires, mirroring the teacher's
// practice of stashing the original string id in the payload under "_id" so
// lookups by string id remain possible.
func pointID(id string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return h.Sum64()
}

func (q *QdrantDatabase) UpsertBatch(ctx context.Context, collection string, points []Point) error {
	pts := make([]*qdrant.PointStruct, 0, len(points))
	for _, p := range points {
		payload := make(map[string]any, len(p.Payload)+1)
		for k, v := range p.Payload {
			payload[k] = v
		}
		payload["_id"] = p.ID
		pts = append(pts, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(pointID(p.ID)),
			Vectors: qdrant.NewVectors(p.Vector...),
			Payload: qdrant.NewValueMap(payload),
		})
	}
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: collection,
		Points:         pts,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert %d points into %s: %w", len(points), collection, err)
	}
	return nil
}

func (q *QdrantDatabase) DeleteWhere(ctx context.Context, collection string, payloadKey, payloadValue string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(payloadKey, payloadValue),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points where %s=%s in %s: %w", payloadKey, payloadValue, collection, err)
	}
	return nil
}

func (q *QdrantDatabase) Search(ctx context.Context, collection string, query []float32, limit int, filter map[string]string) ([]SearchResult, error) {
	var qf *qdrant.Filter
	if len(filter) > 0 {
		conds := make([]*qdrant.Condition, 0, len(filter))
		for k, v := range filter {
			conds = append(conds, qdrant.NewMatch(k, v))
		}
		qf = &qdrant.Filter{Must: conds}
	}

	lim := uint64(limit)
	res, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(query...),
		Filter:         qf,
		Limit:          &lim,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query collection %s: %w", collection, err)
	}

	out := make([]SearchResult, 0, len(res))
	for _, r := range res {
		payload := make(map[string]any, len(r.GetPayload()))
		for k, v := range r.GetPayload() {
			payload[k] = v.AsInterface()
		}
		id, _ := payload["_id"].(string)
		out = append(out, SearchResult{ID: id, Score: r.GetScore(), Payload: payload})
	}
	return out, nil
}

func (q *QdrantDatabase) Close() error {
	return q.client.Close()
}
