package vectordb

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"DocLink/internal/modules/rag/domain/document"
	"DocLink/internal/modules/rag/domain/repository"
)

// MemoryStore is an in-process TenantIndexStore using brute-force cosine
// similarity. It backs unit tests and storage-less deployments; the
// per-tenant isolation and upsert semantics match the milvus store.
type MemoryStore struct {
	vectorDim int

	mu      sync.RWMutex
	tenants map[string]*memoryCollection
}

type memoryCollection struct {
	mu     sync.RWMutex
	chunks []document.Chunk
}

var _ repository.TenantIndexStore = (*MemoryStore)(nil)

func NewMemoryStore(vectorDim int) *MemoryStore {
	return &MemoryStore{
		vectorDim: vectorDim,
		tenants:   make(map[string]*memoryCollection),
	}
}

func (s *MemoryStore) CollectionName(tenant string) string {
	safe := strings.NewReplacer(" ", "_", "-", "_").Replace(strings.TrimSpace(tenant))
	return "docs_" + safe
}

// collection returns the tenant's collection, creating it lazily on first
// use. Tenants never share a collection.
func (s *MemoryStore) collection(tenant string) *memoryCollection {
	name := s.CollectionName(tenant)

	s.mu.RLock()
	col, ok := s.tenants[name]
	s.mu.RUnlock()
	if ok {
		return col
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if col, ok = s.tenants[name]; ok {
		return col
	}
	col = &memoryCollection{}
	s.tenants[name] = col
	return col
}

func (s *MemoryStore) UpsertDocument(ctx context.Context, tenant, docID string, chunks []string, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d vs %d", len(chunks), len(vectors))
	}
	for i, v := range vectors {
		if len(v) != s.vectorDim {
			return fmt.Errorf("vector dim mismatch for chunk %d of %s", i, docID)
		}
	}

	col := s.collection(tenant)
	col.mu.Lock()
	defer col.mu.Unlock()

	// 先整体删除旧分块，再写入新分块；持锁期间对查询不可见中间态
	kept := col.chunks[:0]
	for _, c := range col.chunks {
		if c.DocID != docID {
			kept = append(kept, c)
		}
	}
	col.chunks = kept
	for i, text := range chunks {
		col.chunks = append(col.chunks, document.Chunk{
			Tenant:     tenant,
			DocID:      docID,
			ChunkIndex: i,
			Text:       text,
			Vector:     vectors[i],
		})
	}
	return nil
}

func (s *MemoryStore) Query(ctx context.Context, tenant string, vector []float32, topK int) ([]document.SearchHit, error) {
	if len(vector) != s.vectorDim {
		return nil, fmt.Errorf("query vector dim mismatch")
	}
	col := s.collection(tenant)
	col.mu.RLock()
	defer col.mu.RUnlock()

	if len(col.chunks) == 0 {
		return []document.SearchHit{}, nil
	}
	if topK > len(col.chunks) {
		topK = len(col.chunks)
	}
	if topK <= 0 {
		topK = 1
	}

	hits := make([]document.SearchHit, 0, len(col.chunks))
	for _, c := range col.chunks {
		hits = append(hits, document.SearchHit{
			ID:      fmt.Sprintf("%s_%d", c.DocID, c.ChunkIndex),
			DocID:   c.DocID,
			Content: c.Text,
			Score:   cosine(c.Vector, vector),
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	return hits[:topK], nil
}

func (s *MemoryStore) DeleteDocument(ctx context.Context, tenant, docID string) (int64, error) {
	col := s.collection(tenant)
	col.mu.Lock()
	defer col.mu.Unlock()

	var removed int64
	kept := col.chunks[:0]
	for _, c := range col.chunks {
		if c.DocID == docID {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	col.chunks = kept
	return removed, nil
}

func (s *MemoryStore) Count(ctx context.Context, tenant string) (int64, error) {
	col := s.collection(tenant)
	col.mu.RLock()
	defer col.mu.RUnlock()
	return int64(len(col.chunks)), nil
}

func cosine(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float32
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / float32(math.Sqrt(float64(na))*math.Sqrt(float64(nb)))
}
