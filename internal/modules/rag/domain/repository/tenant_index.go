package repository

import (
	"context"

	"DocLink/internal/modules/rag/domain/document"
)

// TenantIndexStore owns one vector collection per tenant. Collections are
// mutually isolated: no operation touches another tenant's data.
type TenantIndexStore interface {
	// UpsertDocument atomically replaces the chunk set of (tenant, docID).
	// Any chunk ids of the form docID_i are removed before the new
	// (id, text, vector) triples are inserted. chunks and vectors are 1:1.
	UpsertDocument(ctx context.Context, tenant, docID string, chunks []string, vectors [][]float32) error

	// Query returns up to topK nearest chunks by vector similarity.
	// topK is clamped to the tenant's chunk count; an empty tenant yields
	// an empty slice, not an error.
	Query(ctx context.Context, tenant string, vector []float32, topK int) ([]document.SearchHit, error)

	// DeleteDocument removes every chunk prefixed docID_. Idempotent:
	// deleting an absent document succeeds with removed == 0.
	DeleteDocument(ctx context.Context, tenant, docID string) (removed int64, err error)

	// Count reports the tenant's total chunk count.
	Count(ctx context.Context, tenant string) (int64, error)

	// CollectionName reports the deterministic collection name the tenant
	// maps to, with unsafe characters normalized.
	CollectionName(tenant string) string
}
