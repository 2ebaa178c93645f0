package service

import (
	"context"
	"strings"
	"sync/atomic"
	"testing"

	"DocLink/internal/modules/rag/infrastructure/chunking"
	"DocLink/internal/modules/rag/infrastructure/embedding"
	"DocLink/internal/modules/rag/infrastructure/vectordb"
	"DocLink/pkg/xerr"

	eino "github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingGateway 捕获发给生成后端的提示词
type recordingGateway struct {
	calls      int64
	lastPrompt string
	reply      string
}

func (g *recordingGateway) Generate(ctx context.Context, prompt string) string {
	atomic.AddInt64(&g.calls, 1)
	g.lastPrompt = prompt
	return g.reply
}

func newTestService(t *testing.T, gw *recordingGateway, topK int) RAGService {
	t.Helper()
	chunker, err := chunking.NewSentenceChunker(500, 0)
	require.NoError(t, err)
	embedSvc, err := embedding.NewServiceWithEmbedder(embedding.NewMockEmbedder(32), embedding.EmbedderMeta{Provider: "mock", Dim: 32})
	require.NoError(t, err)
	store := vectordb.NewMemoryStore(32)
	return NewRAGService(chunker, embedSvc, store, gw, topK)
}

func TestIngestAndAnswer(t *testing.T) {
	ctx := context.Background()
	gw := &recordingGateway{reply: "The Eiffel Tower is in Paris."}
	svc := newTestService(t, gw, 3)

	result, err := svc.Ingest(ctx, "acme", "d1",
		"Paris is the capital of France. It is known for the Eiffel Tower. Berlin is the capital of Germany.")
	require.NoError(t, err)
	assert.Equal(t, "d1", result.DocID)
	assert.Equal(t, "acme", result.TenantID)
	assert.Equal(t, 1, result.ChunksCreated)
	assert.GreaterOrEqual(t, result.ProcessingTime, 0.0)

	answer := svc.Answer(ctx, "acme", "What is Paris known for?")
	assert.Equal(t, "The Eiffel Tower is in Paris.", answer)
	assert.Equal(t, int64(1), atomic.LoadInt64(&gw.calls))

	// 提示词里带上了检索到的上下文与原问题
	assert.Contains(t, gw.lastPrompt, "Eiffel Tower")
	assert.Contains(t, gw.lastPrompt, "What is Paris known for?")
}

// countingEmbedder 包装 MockEmbedder，统计模型调用次数
type countingEmbedder struct {
	inner *embedding.MockEmbedder
	calls int64
}

func (c *countingEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...eino.Option) ([][]float64, error) {
	atomic.AddInt64(&c.calls, 1)
	return c.inner.EmbedStrings(ctx, texts, opts...)
}

func TestAnswerNoDocuments(t *testing.T) {
	ctx := context.Background()
	gw := &recordingGateway{reply: "should not be called"}

	chunker, err := chunking.NewSentenceChunker(500, 0)
	require.NoError(t, err)
	ce := &countingEmbedder{inner: embedding.NewMockEmbedder(32)}
	embedSvc, err := embedding.NewServiceWithEmbedder(ce, embedding.EmbedderMeta{Provider: "mock", Dim: 32})
	require.NoError(t, err)
	svc := NewRAGService(chunker, embedSvc, vectordb.NewMemoryStore(32), gw, 3)

	answer := svc.Answer(ctx, "acme", "anything?")
	assert.Equal(t, NoDocumentsAnswer, answer)
	// 空租户短路：不向量化、不调生成后端
	assert.Equal(t, int64(0), atomic.LoadInt64(&ce.calls))
	assert.Equal(t, int64(0), atomic.LoadInt64(&gw.calls))
}

func TestAnswerEmptyQuestion(t *testing.T) {
	gw := &recordingGateway{reply: "x"}
	svc := newTestService(t, gw, 3)

	answer := svc.Answer(context.Background(), "acme", "   ")
	assert.Equal(t, "Sorry, I couldn't find that information.", answer)
	assert.Equal(t, int64(0), atomic.LoadInt64(&gw.calls))
}

func TestAnswerTopKRespectsChunkCount(t *testing.T) {
	ctx := context.Background()
	gw := &recordingGateway{reply: "ok"}
	// topK 远大于分块数时照常工作
	svc := newTestService(t, gw, 100)

	_, err := svc.Ingest(ctx, "acme", "d1", "Only one sentence here.")
	require.NoError(t, err)

	answer := svc.Answer(ctx, "acme", "what?")
	assert.Equal(t, "ok", answer)
	assert.Contains(t, gw.lastPrompt, "Only one sentence here")
}

func TestIngestValidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &recordingGateway{}, 3)

	_, err := svc.Ingest(ctx, "", "d1", "text.")
	assert.ErrorIs(t, err, xerr.ErrEmptyInput)

	_, err = svc.Ingest(ctx, "acme", "", "text.")
	assert.ErrorIs(t, err, xerr.ErrEmptyInput)

	_, err = svc.Ingest(ctx, "acme", "d1", "  ")
	assert.ErrorIs(t, err, xerr.ErrEmptyInput)
}

func TestReingestReplacesDocument(t *testing.T) {
	ctx := context.Background()
	gw := &recordingGateway{reply: "ok"}
	svc := newTestService(t, gw, 10)

	_, err := svc.Ingest(ctx, "acme", "d1", "Old content about dinosaurs.")
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "acme", "d1", "New content about rockets.")
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "acme")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.DocumentCount)

	svc.Answer(ctx, "acme", "tell me")
	assert.Contains(t, gw.lastPrompt, "rockets")
	assert.NotContains(t, gw.lastPrompt, "dinosaurs")
}

func TestDeleteThenAnswer(t *testing.T) {
	ctx := context.Background()
	gw := &recordingGateway{reply: "ok"}
	svc := newTestService(t, gw, 3)

	_, err := svc.Ingest(ctx, "acme", "d1", "Some facts.")
	require.NoError(t, err)

	res, err := svc.Delete(ctx, "acme", "d1")
	require.NoError(t, err)
	assert.Equal(t, "Document d1 deleted successfully", res.Message)

	// 删除后租户为空，回到固定回复
	answer := svc.Answer(ctx, "acme", "anything?")
	assert.Equal(t, NoDocumentsAnswer, answer)

	// 幂等：再删不报错
	_, err = svc.Delete(ctx, "acme", "d1")
	require.NoError(t, err)
}

func TestTenantIsolationInAnswer(t *testing.T) {
	ctx := context.Background()
	gw := &recordingGateway{reply: "ok"}
	svc := newTestService(t, gw, 10)

	_, err := svc.Ingest(ctx, "acme", "d1", "Acme builds anvils.")
	require.NoError(t, err)
	_, err = svc.Ingest(ctx, "globex", "d1", "Globex builds rockets.")
	require.NoError(t, err)

	svc.Answer(ctx, "acme", "what do you build?")
	assert.Contains(t, gw.lastPrompt, "anvils")
	assert.NotContains(t, gw.lastPrompt, "rockets")
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(t, &recordingGateway{}, 3)

	_, err := svc.Ingest(ctx, "acme corp", "d1", "One. Two. Three.")
	require.NoError(t, err)

	stats, err := svc.Stats(ctx, "acme corp")
	require.NoError(t, err)
	assert.Equal(t, "acme corp", stats.TenantID)
	assert.Equal(t, "docs_acme_corp", stats.CollectionName)
	assert.Equal(t, int64(1), stats.DocumentCount)
}

func TestBuildPrompt(t *testing.T) {
	prompt := BuildPrompt("ctx text", "the question")
	assert.Contains(t, prompt, "ctx text")
	assert.Contains(t, prompt, "the question")
	assert.True(t, strings.Index(prompt, "ctx text") < strings.Index(prompt, "the question"))
	assert.Contains(t, prompt, "ONLY the information provided")
}
