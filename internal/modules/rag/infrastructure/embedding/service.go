package embedding

import (
	"context"
	"strings"
	"sync"

	"DocLink/internal/config"
	"DocLink/pkg/xerr"
	"DocLink/pkg/zlog"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// Service 进程级共享的向量化服务。
// 底层 embedder 构造开销大，按需构造且至多一次；
// 所有编码调用经过固定大小的工作池，避免占满请求协程。
type Service struct {
	conf *config.Config

	initOnce sync.Once
	initErr  error
	embedder embedding.Embedder
	meta     EmbedderMeta

	pool *ants.Pool
}

func NewService(conf *config.Config) (*Service, error) {
	workers := conf.EmbeddingConfig.Workers
	if workers <= 0 {
		workers = 4
	}
	// 阻塞提交：池满时排队而不是无限扩张
	pool, err := ants.NewPool(workers)
	if err != nil {
		return nil, err
	}
	return &Service{conf: conf, pool: pool}, nil
}

// NewServiceWithEmbedder 直接注入 embedder，测试时避免加载真实模型
func NewServiceWithEmbedder(em embedding.Embedder, meta EmbedderMeta) (*Service, error) {
	pool, err := ants.NewPool(4)
	if err != nil {
		return nil, err
	}
	s := &Service{pool: pool}
	s.initOnce.Do(func() {
		s.embedder = em
		s.meta = meta
	})
	return s, nil
}

func (s *Service) Close() {
	if s.pool != nil {
		s.pool.Release()
	}
}

// Meta 返回当前 embedder 的元信息（惰性初始化后有效）
func (s *Service) Meta() EmbedderMeta {
	return s.meta
}

// ensureEmbedder 惰性构造 embedder。并发首用时也只会构造一次。
func (s *Service) ensureEmbedder(ctx context.Context) (embedding.Embedder, error) {
	s.initOnce.Do(func() {
		zlog.Info("loading embedding model",
			zap.String("provider", s.conf.EmbeddingConfig.Provider),
			zap.String("model", s.conf.EmbeddingConfig.Model))
		em, meta, err := NewEmbedderFromConfig(ctx, s.conf)
		if err != nil {
			s.initErr = err
			return
		}
		s.embedder = em
		s.meta = meta
	})
	if s.initErr != nil {
		return nil, s.initErr
	}
	return s.embedder, nil
}

// Embed 向量化单段文本
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, xerr.ErrEmptyInput
	}
	vecs, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, xerr.ErrEmbeddingFailure
	}
	return vecs[0], nil
}

// EmbedBatch 批量向量化，结果与输入一一对应。
// 空输入直接返回空切片，不触发模型调用。
func (s *Service) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	em, err := s.ensureEmbedder(ctx)
	if err != nil {
		return nil, err
	}

	type result struct {
		vecs [][]float64
		err  error
	}
	done := make(chan result, 1)
	if submitErr := s.pool.Submit(func() {
		vecs, embedErr := em.EmbedStrings(ctx, texts)
		done <- result{vecs: vecs, err: embedErr}
	}); submitErr != nil {
		return nil, submitErr
	}

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.err != nil {
		zlog.Error("embed batch failed", zap.Int("texts", len(texts)), zap.Error(res.err))
		return nil, res.err
	}
	if len(res.vecs) != len(texts) {
		return nil, xerr.ErrEmbeddingFailure
	}

	out := make([][]float32, len(res.vecs))
	for i, v := range res.vecs {
		if len(v) == 0 {
			return nil, xerr.ErrEmbeddingFailure
		}
		f := make([]float32, len(v))
		for j := range v {
			f[j] = float32(v[j])
		}
		out[i] = f
	}
	return out, nil
}
