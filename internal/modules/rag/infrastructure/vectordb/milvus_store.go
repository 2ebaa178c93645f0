package vectordb

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"DocLink/internal/modules/rag/domain/document"
	"DocLink/internal/modules/rag/domain/repository"
	"DocLink/pkg/zlog"

	mclient "github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// MilvusStore keeps one collection per tenant. Collections are created
// lazily on first write; creation runs under a singleflight guard so
// concurrent cold-start writes build the schema exactly once.
type MilvusStore struct {
	cli       mclient.Client
	vectorDim int

	ensureGroup singleflight.Group
	mu          sync.RWMutex
	ready       map[string]bool
}

var _ repository.TenantIndexStore = (*MilvusStore)(nil)

func NewMilvusStore(cli mclient.Client, vectorDim int) (*MilvusStore, error) {
	if cli == nil {
		return nil, fmt.Errorf("milvus client is nil")
	}
	if vectorDim <= 0 {
		return nil, fmt.Errorf("invalid vector dim: %d", vectorDim)
	}
	return &MilvusStore{
		cli:       cli,
		vectorDim: vectorDim,
		ready:     make(map[string]bool),
	}, nil
}

// CollectionName derives the deterministic collection name for a tenant.
// Spaces and hyphens are normalized so the same tenant always maps to the
// same collection across restarts.
func (s *MilvusStore) CollectionName(tenant string) string {
	safe := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.TrimSpace(tenant))
	return "docs_" + safe
}

// ensureCollection creates the tenant collection and its index on first use.
func (s *MilvusStore) ensureCollection(ctx context.Context, tenant string) (string, error) {
	collection := s.CollectionName(tenant)

	s.mu.RLock()
	ok := s.ready[collection]
	s.mu.RUnlock()
	if ok {
		return collection, nil
	}

	_, err, _ := s.ensureGroup.Do(collection, func() (interface{}, error) {
		has, err := s.cli.HasCollection(ctx, collection)
		if err != nil {
			return nil, err
		}
		if !has {
			schema := &entity.Schema{
				CollectionName: collection,
				Description:    "DocLink tenant document chunks",
				Fields: []*entity.Field{
					{
						Name:       "id",
						DataType:   entity.FieldTypeVarChar,
						PrimaryKey: true,
						TypeParams: map[string]string{"max_length": "160"},
					},
					{
						Name:       "vector",
						DataType:   entity.FieldTypeFloatVector,
						TypeParams: map[string]string{entity.TypeParamDim: fmt.Sprintf("%d", s.vectorDim)},
					},
					{
						Name:       "doc_id",
						DataType:   entity.FieldTypeVarChar,
						TypeParams: map[string]string{"max_length": "128"},
					},
					{
						Name:     "chunk_index",
						DataType: entity.FieldTypeInt64,
					},
					{
						Name:       "content",
						DataType:   entity.FieldTypeVarChar,
						TypeParams: map[string]string{"max_length": "8192"},
					},
				},
			}
			if err := s.cli.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
				return nil, err
			}
			idx, err := entity.NewIndexAUTOINDEX(entity.COSINE)
			if err != nil {
				return nil, err
			}
			if err := s.cli.CreateIndex(ctx, collection, "vector", idx, false); err != nil {
				return nil, err
			}
			zlog.Info("created tenant collection", zap.String("collection", collection))
		}
		if err := s.cli.LoadCollection(ctx, collection, false); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.ready[collection] = true
		s.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		return "", fmt.Errorf("ensure collection %s: %w", collection, err)
	}
	return collection, nil
}

// UpsertDocument removes the document's existing chunk rows, then inserts
// the new set, then flushes so a subsequent query sees either the old or
// the new chunk set, never a mix of unflushed state.
func (s *MilvusStore) UpsertDocument(ctx context.Context, tenant, docID string, chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	collection, err := s.ensureCollection(ctx, tenant)
	if err != nil {
		return err
	}

	expr := fmt.Sprintf(`doc_id == "%s"`, escapeExpr(docID))
	if err := s.cli.Delete(ctx, collection, "", expr); err != nil {
		return fmt.Errorf("delete stale chunks for %s: %w", docID, err)
	}

	ids := make([]string, 0, len(chunks))
	docIDs := make([]string, 0, len(chunks))
	indexes := make([]int64, 0, len(chunks))
	contents := make([]string, 0, len(chunks))
	for i, text := range chunks {
		if len(vectors[i]) != s.vectorDim {
			return fmt.Errorf("vector dim mismatch for chunk %d of %s", i, docID)
		}
		ids = append(ids, fmt.Sprintf("%s_%d", docID, i))
		docIDs = append(docIDs, docID)
		indexes = append(indexes, int64(i))
		contents = append(contents, text)
	}

	if _, err := s.cli.Insert(
		ctx,
		collection,
		"",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector("vector", s.vectorDim, vectors),
		entity.NewColumnVarChar("doc_id", docIDs),
		entity.NewColumnInt64("chunk_index", indexes),
		entity.NewColumnVarChar("content", contents),
	); err != nil {
		return fmt.Errorf("insert chunks for %s: %w", docID, err)
	}

	return s.cli.Flush(ctx, collection, false)
}

// Query searches the tenant collection; topK is clamped to the tenant's
// chunk count and an empty tenant yields an empty result, not an error.
func (s *MilvusStore) Query(ctx context.Context, tenant string, vector []float32, topK int) ([]document.SearchHit, error) {
	collection, err := s.ensureCollection(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if len(vector) != s.vectorDim {
		return nil, fmt.Errorf("query vector dim mismatch")
	}

	total, err := s.Count(ctx, tenant)
	if err != nil {
		return nil, err
	}
	if total == 0 {
		return []document.SearchHit{}, nil
	}
	if int64(topK) > total {
		topK = int(total)
	}
	if topK <= 0 {
		topK = 1
	}

	sp, _ := entity.NewIndexAUTOINDEXSearchParam(1)
	res, err := s.cli.Search(
		ctx,
		collection,
		nil,
		"",
		[]string{"id", "doc_id", "content"},
		[]entity.Vector{entity.FloatVector(vector)},
		"vector",
		entity.COSINE,
		topK,
		sp,
	)
	if err != nil {
		return nil, err
	}

	hits := make([]document.SearchHit, 0, topK)
	for _, sr := range res {
		if sr.Err != nil {
			return nil, sr.Err
		}
		getCol := func(name string) entity.Column {
			for _, c := range sr.Fields {
				if c.Name() == name {
					return c
				}
			}
			return nil
		}
		docIDCol := getCol("doc_id")
		contentCol := getCol("content")

		for i := 0; i < sr.ResultCount; i++ {
			id, _ := sr.IDs.GetAsString(i)
			hit := document.SearchHit{ID: id, Score: sr.Scores[i]}
			if docIDCol != nil {
				hit.DocID, _ = docIDCol.GetAsString(i)
			}
			if contentCol != nil {
				hit.Content, _ = contentCol.GetAsString(i)
			}
			hits = append(hits, hit)
		}
	}
	return hits, nil
}

// DeleteDocument removes all chunk rows of docID. Idempotent.
func (s *MilvusStore) DeleteDocument(ctx context.Context, tenant, docID string) (int64, error) {
	collection, err := s.ensureCollection(ctx, tenant)
	if err != nil {
		return 0, err
	}

	expr := fmt.Sprintf(`doc_id == "%s"`, escapeExpr(docID))
	existing, err := s.cli.Query(ctx, collection, nil, expr, []string{"id"})
	if err != nil {
		return 0, err
	}
	var removed int64
	for _, col := range existing {
		if col.Name() == "id" {
			removed = int64(col.Len())
		}
	}
	if removed == 0 {
		return 0, nil
	}

	if err := s.cli.Delete(ctx, collection, "", expr); err != nil {
		return 0, err
	}
	if err := s.cli.Flush(ctx, collection, false); err != nil {
		return 0, err
	}
	return removed, nil
}

// Count reports the tenant's total chunk count.
func (s *MilvusStore) Count(ctx context.Context, tenant string) (int64, error) {
	collection, err := s.ensureCollection(ctx, tenant)
	if err != nil {
		return 0, err
	}
	res, err := s.cli.Query(ctx, collection, nil, `chunk_index >= 0`, []string{"id"})
	if err != nil {
		return 0, err
	}
	for _, col := range res {
		if col.Name() == "id" {
			return int64(col.Len()), nil
		}
	}
	return 0, nil
}

// escapeExpr keeps user-provided identifiers from breaking the filter expr.
func escapeExpr(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	return strings.ReplaceAll(v, `"`, `\"`)
}
