package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"DocLink/internal/modules/rag/application/dto/respond"
	"DocLink/internal/modules/rag/domain/document"
	"DocLink/internal/modules/rag/domain/repository"
	"DocLink/internal/modules/rag/infrastructure/chunking"
	"DocLink/internal/modules/rag/infrastructure/embedding"
	"DocLink/internal/modules/rag/infrastructure/llm"
	"DocLink/pkg/xerr"
	"DocLink/pkg/zlog"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NoDocumentsAnswer 租户还没有上传任何文档时的固定回复。
// 这种情况下不调用向量化，也不调用生成后端。
const NoDocumentsAnswer = "Sorry, I couldn't find that information. No documents have been uploaded yet."

const groundingPrompt = `
You are a friendly and helpful assistant. Your main purpose is to answer questions using ONLY the information provided in the ` + "`Context`" + `.

First, read the ` + "`Context`" + ` and identify its main subject.

Here are your rules:

1.  **Greeting:** If the user starts with a greeting or a conversational message, respond politely and state that you can help with questions about the main subject of the context. For example: "Hello! I'm here to help you with any questions you have about [main subject of the context]."
2.  **Answering Questions:** If the user asks a question, find the answer *solely* within the ` + "`Context`" + ` and provide it in a clear, conversational manner. Do not add any information that is not in the text.
3.  **Missing Information:** If the answer to a question is not found in the ` + "`Context`" + `, politely inform the user that you cannot find that information in the text you have.
4.  **No Information Dumps:** Avoid preemptively providing large blocks of text from the context. Wait for the user to ask a specific question.

Context:
%s

Question:
%s

Answer:
`

// RAGService 串联切片、向量化、租户索引与生成网关
type RAGService interface {
	Ingest(ctx context.Context, tenant, docID, content string) (*respond.IngestResult, error)
	Answer(ctx context.Context, tenant, question string) string
	Delete(ctx context.Context, tenant, docID string) (*respond.DeleteResult, error)
	Stats(ctx context.Context, tenant string) (*document.TenantStats, error)
}

type ragService struct {
	chunker  *chunking.SentenceChunker
	embedder *embedding.Service
	store    repository.TenantIndexStore
	gateway  llm.GenerationGateway
	topK     int

	// 同一 (tenant, doc) 的写操作串行化，避免并发重传时
	// 旧删新增两步交错；不同文档、不同租户完全并行
	docMu sync.Mutex
	docs  map[string]*sync.Mutex
}

func NewRAGService(
	chunker *chunking.SentenceChunker,
	embedder *embedding.Service,
	store repository.TenantIndexStore,
	gateway llm.GenerationGateway,
	topK int,
) RAGService {
	if topK <= 0 {
		topK = 3
	}
	return &ragService{
		chunker:  chunker,
		embedder: embedder,
		store:    store,
		gateway:  gateway,
		topK:     topK,
		docs:     make(map[string]*sync.Mutex),
	}
}

func (s *ragService) docLock(tenant, docID string) *sync.Mutex {
	key := tenant + "\x00" + docID
	s.docMu.Lock()
	defer s.docMu.Unlock()
	mu, ok := s.docs[key]
	if !ok {
		mu = &sync.Mutex{}
		s.docs[key] = mu
	}
	return mu
}

// Ingest 摄取一篇文档：切片和向量化全部在内存中完成，
// 任何一步失败都不会产生部分写入
func (s *ragService) Ingest(ctx context.Context, tenant, docID, content string) (*respond.IngestResult, error) {
	start := time.Now()
	tenant = strings.TrimSpace(tenant)
	docID = strings.TrimSpace(docID)
	if tenant == "" || docID == "" || strings.TrimSpace(content) == "" {
		return nil, xerr.ErrEmptyInput
	}

	chunks, err := s.chunker.Chunk(ctx, content)
	if err != nil {
		return nil, err
	}

	// 一次批量调用完成整篇文档的向量化
	vectors, err := s.embedder.EmbedBatch(ctx, chunks)
	if err != nil {
		zlog.Error("ingest embedding failed", zap.String("tenant", tenant), zap.String("doc_id", docID), zap.Error(err))
		return nil, err
	}

	mu := s.docLock(tenant, docID)
	mu.Lock()
	err = s.store.UpsertDocument(ctx, tenant, docID, chunks, vectors)
	mu.Unlock()
	if err != nil {
		zlog.Error("ingest upsert failed", zap.String("tenant", tenant), zap.String("doc_id", docID), zap.Error(err))
		return nil, err
	}

	elapsed := time.Since(start).Seconds()
	zlog.Info("document ingested",
		zap.String("tenant", tenant),
		zap.String("doc_id", docID),
		zap.Int("chunks", len(chunks)),
		zap.Float64("seconds", elapsed))

	return &respond.IngestResult{
		DocID:          docID,
		TenantID:       tenant,
		ChunksCreated:  len(chunks),
		ProcessingTime: elapsed,
	}, nil
}

// Answer 回答问题。这条路径永不向调用方抛错：
// 任何内部失败都降级为固定的兜底回复。
func (s *ragService) Answer(ctx context.Context, tenant, question string) string {
	start := time.Now()
	tenant = strings.TrimSpace(tenant)
	question = strings.TrimSpace(question)
	if tenant == "" || question == "" {
		return llm.FallbackAnswer
	}

	queryID := uuid.NewString()

	// 空租户短路：不值得为注定无解的问题调用模型
	count, err := s.store.Count(ctx, tenant)
	if err != nil {
		zlog.Error("answer count failed", zap.String("query_id", queryID), zap.String("tenant", tenant), zap.Error(err))
		return llm.FallbackAnswer
	}
	if count == 0 {
		zlog.Warn("no documents for tenant", zap.String("query_id", queryID), zap.String("tenant", tenant))
		return NoDocumentsAnswer
	}

	vector, err := s.embedder.Embed(ctx, question)
	if err != nil {
		zlog.Error("answer embedding failed", zap.String("query_id", queryID), zap.String("tenant", tenant), zap.Error(err))
		return llm.FallbackAnswer
	}

	hits, err := s.store.Query(ctx, tenant, vector, s.topK)
	if err != nil {
		zlog.Error("answer retrieval failed", zap.String("query_id", queryID), zap.String("tenant", tenant), zap.Error(err))
		return llm.FallbackAnswer
	}
	if len(hits) == 0 {
		zlog.Warn("no relevant chunks", zap.String("query_id", queryID), zap.String("tenant", tenant))
		return llm.FallbackAnswer
	}

	texts := make([]string, 0, len(hits))
	for _, h := range hits {
		texts = append(texts, h.Content)
	}
	prompt := BuildPrompt(strings.Join(texts, "\n"), question)

	answer := s.gateway.Generate(ctx, prompt)

	zlog.Info("query answered",
		zap.String("query_id", queryID),
		zap.String("tenant", tenant),
		zap.Int("hits", len(hits)),
		zap.Int64("ms", time.Since(start).Milliseconds()))
	return answer
}

// Delete 删除文档及其全部分块，幂等
func (s *ragService) Delete(ctx context.Context, tenant, docID string) (*respond.DeleteResult, error) {
	tenant = strings.TrimSpace(tenant)
	docID = strings.TrimSpace(docID)
	if tenant == "" || docID == "" {
		return nil, xerr.ErrEmptyInput
	}

	mu := s.docLock(tenant, docID)
	mu.Lock()
	removed, err := s.store.DeleteDocument(ctx, tenant, docID)
	mu.Unlock()
	if err != nil {
		return nil, err
	}

	zlog.Info("document deleted", zap.String("tenant", tenant), zap.String("doc_id", docID), zap.Int64("chunks", removed))
	return &respond.DeleteResult{
		Message: fmt.Sprintf("Document %s deleted successfully", docID),
	}, nil
}

// Stats 返回租户的分块数量与集合名
func (s *ragService) Stats(ctx context.Context, tenant string) (*document.TenantStats, error) {
	tenant = strings.TrimSpace(tenant)
	if tenant == "" {
		return nil, xerr.ErrEmptyInput
	}
	count, err := s.store.Count(ctx, tenant)
	if err != nil {
		return nil, err
	}
	return &document.TenantStats{
		TenantID:       tenant,
		DocumentCount:  count,
		CollectionName: s.store.CollectionName(tenant),
	}, nil
}

// BuildPrompt 组装 grounding 提示词：模型只能基于 Context 作答
func BuildPrompt(context, question string) string {
	return fmt.Sprintf(groundingPrompt, context, question)
}
