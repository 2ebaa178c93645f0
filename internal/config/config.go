package config

import (
	"log"
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

type MainConfig struct {
	AppName     string `toml:"appName"`
	Host        string `toml:"host"`
	Port        int    `toml:"port"`
	AdminAPIKey string `toml:"adminApiKey"`
	EnableTLS   bool   `toml:"enableTls"`
}

type LogConfig struct {
	LogPath string `toml:"logPath"`
}

type SqliteConfig struct {
	Path string `toml:"path"`
}

type MilvusConfig struct {
	Address  string `toml:"address"`
	Username string `toml:"username"`
	Password string `toml:"password"`
	DBName   string `toml:"dbName"`
}

type VectorStoreConfig struct {
	// Backend 取值 milvus 或 memory
	Backend   string `toml:"backend"`
	VectorDim int    `toml:"vectorDim"`
}

type ChunkerConfig struct {
	// Mode 取值 sentence（默认，按句子贪心打包）或 recursive
	Mode      string `toml:"mode"`
	MaxTokens int    `toml:"maxTokens"`
	Overlap   int    `toml:"overlap"`
}

type EmbeddingConfig struct {
	Provider       string `toml:"provider"`
	APIKey         string `toml:"apiKey"`
	BaseURL        string `toml:"baseURL"`
	Model          string `toml:"model"`
	Dimensions     int    `toml:"dimensions"`
	TimeoutSeconds int    `toml:"timeoutSeconds"`
	// Workers 限制向量化并发的工作协程数量
	Workers int `toml:"workers"`
}

type GenerationConfig struct {
	// Provider 取值 ollama（默认，走 /api/generate 协议）、openai 或 ark
	Provider       string `toml:"provider"`
	BaseURL        string `toml:"baseURL"`
	APIKey         string `toml:"apiKey"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeoutSeconds"`
}

type RetrievalConfig struct {
	TopK int `toml:"topK"`
}

type Config struct {
	MainConfig        `toml:"mainConfig"`
	LogConfig         `toml:"logConfig"`
	SqliteConfig      `toml:"sqliteConfig"`
	MilvusConfig      `toml:"milvusConfig"`
	VectorStoreConfig `toml:"vectorStoreConfig"`
	ChunkerConfig     `toml:"chunkerConfig"`
	EmbeddingConfig   `toml:"embeddingConfig"`
	GenerationConfig  `toml:"generationConfig"`
	RetrievalConfig   `toml:"retrievalConfig"`
}

var config *Config

func LoadConfig() error {
	configPath := os.Getenv("DOCLINK_CONFIG")
	if configPath == "" {
		configPath = "configs/config_local.toml"
	}
	if _, err := toml.DecodeFile(configPath, config); err != nil {
		log.Printf("加载配置文件失败: %v, 尝试使用默认设置", err)
		return err
	}
	return nil
}

func GetConfig() *Config {
	if config == nil {
		config = new(Config)
		_ = LoadConfig()
		applyDefaults(config)
		applyEnvOverrides(config)
	}
	return config
}

func applyDefaults(c *Config) {
	if c.MainConfig.AppName == "" {
		c.MainConfig.AppName = "DocLink"
	}
	if c.MainConfig.Port == 0 {
		c.MainConfig.Port = 8000
	}
	if c.SqliteConfig.Path == "" {
		c.SqliteConfig.Path = "data/doclink.db"
	}
	if c.VectorStoreConfig.Backend == "" {
		c.VectorStoreConfig.Backend = "milvus"
	}
	if c.VectorStoreConfig.VectorDim <= 0 {
		c.VectorStoreConfig.VectorDim = 384
	}
	if c.ChunkerConfig.Mode == "" {
		c.ChunkerConfig.Mode = "sentence"
	}
	if c.ChunkerConfig.MaxTokens <= 0 {
		c.ChunkerConfig.MaxTokens = 500
	}
	if c.ChunkerConfig.Overlap < 0 {
		c.ChunkerConfig.Overlap = 0
	}
	if c.EmbeddingConfig.Workers <= 0 {
		c.EmbeddingConfig.Workers = 4
	}
	if c.GenerationConfig.Provider == "" {
		c.GenerationConfig.Provider = "ollama"
	}
	if c.GenerationConfig.BaseURL == "" {
		c.GenerationConfig.BaseURL = "http://localhost:11434"
	}
	if c.GenerationConfig.Model == "" {
		c.GenerationConfig.Model = "mistral"
	}
	if c.GenerationConfig.TimeoutSeconds <= 0 {
		c.GenerationConfig.TimeoutSeconds = 15
	}
	if c.RetrievalConfig.TopK <= 0 {
		c.RetrievalConfig.TopK = 3
	}
}

// applyEnvOverrides 允许用环境变量覆盖部署相关的配置项，
// 密钥类配置优先从环境读取，避免落盘
func applyEnvOverrides(c *Config) {
	if v := os.Getenv("DOCLINK_ADMIN_API_KEY"); v != "" {
		c.MainConfig.AdminAPIKey = v
	}
	if v := os.Getenv("DOCLINK_MILVUS_ADDRESS"); v != "" {
		c.MilvusConfig.Address = v
	}
	if v := os.Getenv("DOCLINK_SQLITE_PATH"); v != "" {
		c.SqliteConfig.Path = v
	}
	if v := os.Getenv("DOCLINK_EMBEDDING_MODEL"); v != "" {
		c.EmbeddingConfig.Model = v
	}
	if v := os.Getenv("DOCLINK_GENERATION_URL"); v != "" {
		c.GenerationConfig.BaseURL = v
	}
	if v := os.Getenv("DOCLINK_GENERATION_MODEL"); v != "" {
		c.GenerationConfig.Model = v
	}
	if v := os.Getenv("DOCLINK_GENERATION_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
			c.GenerationConfig.TimeoutSeconds = secs
		}
	}
	if v := os.Getenv("DOCLINK_TOP_K"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.RetrievalConfig.TopK = k
		}
	}
}
