package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"DocLink/internal/config"
	"DocLink/pkg/zlog"

	"go.uber.org/zap"
)

// FallbackAnswer 生成后端不可用时的兜底回复。
// 网关对任何失败都返回这个字符串，绝不向上抛错。
const FallbackAnswer = "Sorry, I couldn't find that information."

// GenerationGateway 调用外部生成后端。失败即降级，不重试：
// 后端慢的时候重试只会放大故障。
type GenerationGateway interface {
	Generate(ctx context.Context, prompt string) string
}

// OllamaGateway 通过 HTTP 调用 ollama 风格的 /api/generate 接口。
// 请求 {model, prompt, stream:false}，成功时响应 {response}。
type OllamaGateway struct {
	baseURL string
	model   string
	timeout time.Duration
	client  *http.Client
}

var _ GenerationGateway = (*OllamaGateway)(nil)

func NewOllamaGateway(baseURL, model string, timeout time.Duration) *OllamaGateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &OllamaGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		timeout: timeout,
		client:  &http.Client{},
	}
}

func NewOllamaGatewayFromConfig(conf *config.Config) *OllamaGateway {
	return NewOllamaGateway(
		conf.GenerationConfig.BaseURL,
		conf.GenerationConfig.Model,
		time.Duration(conf.GenerationConfig.TimeoutSeconds)*time.Second,
	)
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate 单次请求，带超时，超时或取消时连接随 context 释放
func (g *OllamaGateway) Generate(ctx context.Context, prompt string) string {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{Model: g.model, Prompt: prompt, Stream: false})
	if err != nil {
		zlog.Error("generation request marshal failed", zap.Error(err))
		return FallbackAnswer
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		zlog.Error("generation request build failed", zap.Error(err))
		return FallbackAnswer
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		zlog.Error("generation backend unreachable", zap.Error(err))
		return FallbackAnswer
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		zlog.Error("generation backend returned non-200", zap.Int("status", resp.StatusCode))
		return FallbackAnswer
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		zlog.Error("generation response decode failed", zap.Error(err))
		return FallbackAnswer
	}
	if out.Response == "" {
		zlog.Warn("generation backend returned empty response")
		return FallbackAnswer
	}
	return out.Response
}

// NewGatewayFromConfig 按配置选择生成后端。
// ollama 走固定的 /api/generate 协议；openai/ark 复用 eino ChatModel。
func NewGatewayFromConfig(ctx context.Context, conf *config.Config) (GenerationGateway, error) {
	provider := strings.ToLower(strings.TrimSpace(conf.GenerationConfig.Provider))
	switch provider {
	case "", "ollama":
		return NewOllamaGatewayFromConfig(conf), nil
	case "openai", "ark":
		cm, meta, err := NewChatModelFromConfig(ctx, conf)
		if err != nil {
			return nil, err
		}
		zlog.Info("generation via chat model", zap.String("provider", meta.Provider), zap.String("model", meta.Model))
		return NewChatModelGateway(cm), nil
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", provider)
	}
}
