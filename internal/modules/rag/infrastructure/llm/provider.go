package llm

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"DocLink/internal/config"
	"DocLink/pkg/zlog"

	arkModel "github.com/cloudwego/eino-ext/components/model/ark"
	openaiModel "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"
)

type ChatModelMeta struct {
	Provider string
	Model    string
}

func NewChatModelFromConfig(ctx context.Context, conf *config.Config) (model.BaseChatModel, ChatModelMeta, error) {
	if conf == nil {
		return nil, ChatModelMeta{}, fmt.Errorf("nil config")
	}

	provider := strings.ToLower(strings.TrimSpace(conf.GenerationConfig.Provider))
	modelName := strings.TrimSpace(conf.GenerationConfig.Model)

	timeout := 15 * time.Second
	if conf.GenerationConfig.TimeoutSeconds > 0 {
		timeout = time.Duration(conf.GenerationConfig.TimeoutSeconds) * time.Second
	}

	switch provider {
	case "openai":
		apiKey := strings.TrimSpace(conf.GenerationConfig.APIKey)
		if apiKey == "" {
			apiKey = strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))
		}
		if modelName == "" {
			modelName = strings.TrimSpace(os.Getenv("OPENAI_MODEL"))
		}
		baseURL := strings.TrimSpace(conf.GenerationConfig.BaseURL)
		if baseURL == "" {
			baseURL = strings.TrimSpace(os.Getenv("OPENAI_BASE_URL"))
		}
		if apiKey == "" || modelName == "" {
			return nil, ChatModelMeta{}, fmt.Errorf("openai chat model missing apiKey/model")
		}

		cm, err := openaiModel.NewChatModel(ctx, &openaiModel.ChatModelConfig{
			APIKey:  apiKey,
			Model:   modelName,
			BaseURL: baseURL,
			Timeout: timeout,
		})
		if err != nil {
			return nil, ChatModelMeta{}, err
		}
		return cm, ChatModelMeta{Provider: "openai", Model: modelName}, nil

	case "ark":
		apiKey := strings.TrimSpace(conf.GenerationConfig.APIKey)
		if apiKey == "" {
			apiKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		}
		if modelName == "" {
			modelName = strings.TrimSpace(os.Getenv("ARK_MODEL_ID"))
		}
		baseURL := strings.TrimSpace(conf.GenerationConfig.BaseURL)
		if baseURL == "" {
			baseURL = strings.TrimSpace(os.Getenv("ARK_BASE_URL"))
		}
		if apiKey == "" || modelName == "" {
			return nil, ChatModelMeta{}, fmt.Errorf("ark chat model missing apiKey/model")
		}

		cm, err := arkModel.NewChatModel(ctx, &arkModel.ChatModelConfig{
			APIKey:  apiKey,
			Model:   modelName,
			BaseURL: baseURL,
			Timeout: &timeout,
		})
		if err != nil {
			return nil, ChatModelMeta{}, err
		}
		return cm, ChatModelMeta{Provider: "ark", Model: modelName}, nil

	default:
		return nil, ChatModelMeta{}, fmt.Errorf("unknown chat model provider: %s", provider)
	}
}

// ChatModelGateway 把 eino ChatModel 适配成 GenerationGateway，
// 沿用同样的 fail-open 策略
type ChatModelGateway struct {
	cm model.BaseChatModel
}

var _ GenerationGateway = (*ChatModelGateway)(nil)

func NewChatModelGateway(cm model.BaseChatModel) *ChatModelGateway {
	return &ChatModelGateway{cm: cm}
}

func (g *ChatModelGateway) Generate(ctx context.Context, prompt string) string {
	if g.cm == nil {
		return FallbackAnswer
	}
	msg, err := g.cm.Generate(ctx, []*schema.Message{schema.UserMessage(prompt)})
	if err != nil {
		zlog.Error("chat model generate failed", zap.Error(err))
		return FallbackAnswer
	}
	if msg == nil || strings.TrimSpace(msg.Content) == "" {
		return FallbackAnswer
	}
	return msg.Content
}
