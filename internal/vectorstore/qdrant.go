package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"

	"philoagent/internal/config"
)

// payloadIDField stores the caller's original chunk id. Qdrant only
// accepts UUIDs and positive integers as point ids, so ids that are not
// already UUIDs are rewritten deterministically and the original is
// recovered from the payload on read.
const payloadIDField = "_original_id"

type qdrantStore struct {
	client     *qdrant.Client
	collection string
	dimension  int
	metric     string
}

// New connects to Qdrant over its gRPC API (default port 6334) and
// ensures the configured collection exists.
func New(cfg config.QdrantConfig) (Store, error) {
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection name is required")
	}
	parsed, err := url.Parse(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse qdrant dsn: %w", err)
	}
	host := parsed.Hostname()
	if host == "" {
		host = "localhost"
	}
	port := parsed.Port()
	if port == "" {
		port = "6334"
	}
	portNum, err := strconv.Atoi(port)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant dsn: %w", err)
	}
	qcfg := &qdrant.Config{Host: host, Port: portNum}
	if parsed.Scheme == "https" {
		qcfg.UseTLS = true
	}
	if apiKey := parsed.Query().Get("api_key"); apiKey != "" {
		qcfg.APIKey = apiKey
	}
	client, err := qdrant.NewClient(qcfg)
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	q := &qdrantStore{
		client:     client,
		collection: cfg.Collection,
		dimension:  cfg.Dimensions,
		metric:     strings.ToLower(strings.TrimSpace(cfg.Metric)),
	}
	if err := q.ensureCollection(context.Background()); err != nil {
		client.Close()
		return nil, fmt.Errorf("ensure collection: %w", err)
	}
	return q, nil
}

func (q *qdrantStore) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check collection exists: %w", err)
	}
	if exists {
		return nil
	}
	var distance qdrant.Distance
	switch q.metric {
	case "l2", "euclidean":
		distance = qdrant.Distance_Euclid
	case "ip", "dot":
		distance = qdrant.Distance_Dot
	case "manhattan":
		distance = qdrant.Distance_Manhattan
	default:
		distance = qdrant.Distance_Cosine
	}
	if q.dimension <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0")
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(q.dimension),
			Distance: distance,
		}),
	})
}

// BatchQuery issues one Query RPC per request (the client library has no
// native multi-query batch endpoint); requests run sequentially here
// because the caller (the vector-store adapter) is itself invoked from
// inside ExecuteQueries's bounded fan-out, so no additional concurrency
// is introduced at this layer.
func (q *qdrantStore) BatchQuery(ctx context.Context, queries []Query) ([][]Hit, error) {
	out := make([][]Hit, len(queries))
	for i, query := range queries {
		hits, err := q.singleQuery(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("batch query %d: %w", i, err)
		}
		out[i] = hits
	}
	return out, nil
}

func (q *qdrantStore) singleQuery(ctx context.Context, query Query) ([]Hit, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = 1
	}
	var queryFilter *qdrant.Filter
	if len(query.Filter) > 0 {
		must := make([]*qdrant.Condition, 0, len(query.Filter))
		for k, v := range query.Filter {
			must = append(must, qdrant.NewMatch(k, v))
		}
		queryFilter = &qdrant.Filter{Must: must}
	}
	lim := uint64(limit)
	result, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(query.Vector),
		Limit:          &lim,
		Filter:         queryFilter,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(result))
	hits := make([]Hit, 0, len(result))
	for _, hit := range result {
		uuidStr := hit.Id.GetUuid()
		if uuidStr == "" {
			uuidStr = hit.Id.String()
		}
		if _, dup := seen[uuidStr]; dup {
			continue
		}
		seen[uuidStr] = struct{}{}

		metadata := make(map[string]string)
		var originalID string
		if hit.Payload != nil {
			for k, v := range hit.Payload {
				if k == payloadIDField {
					originalID = v.GetStringValue()
					continue
				}
				metadata[k] = v.GetStringValue()
			}
		}
		id := originalID
		if id == "" {
			id = uuidStr
		}
		hits = append(hits, Hit{ID: id, Score: float64(hit.Score), Metadata: metadata})
	}
	return hits, nil
}

func (q *qdrantStore) Close() error {
	return q.client.Close()
}
