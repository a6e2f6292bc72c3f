// Package vectorstore implements the vector-store external collaborator:
// batched nearest-neighbor search over exact-match-filtered embeddings.
package vectorstore

import "context"

// Filter is an exact-match conjunction over string-valued payload keys.
type Filter map[string]string

// Query is one batched nearest-neighbor request.
type Query struct {
	Vector []float32
	Limit  int
	Filter Filter
}

// Hit is one nearest-neighbor result, carrying back enough payload to
// assemble a Citation.
type Hit struct {
	ID       string
	Score    float64
	Metadata map[string]string
}

// Store is the contract the orchestration core depends on: a single
// batched query over many (vector, limit, filter) requests.
type Store interface {
	BatchQuery(ctx context.Context, queries []Query) ([][]Hit, error)
	Close() error
}
