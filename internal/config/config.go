package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"google.golang.org/genai"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Client ClientConfig
	Store  StoreConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	client, err := loadClientConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Client: client, Store: store}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr       string
	EngineName string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "3000"
	}

	engine := getEnvOrDefault("ENGINE_NAME", "Vanguard Core")

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":3000" 或 "127.0.0.1:3000"。
		return ServerConfig{Addr: port, EngineName: engine}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: "0.0.0.0:" + port, EngineName: engine}, nil
}

// AIConfig 描述 Gemini 相关配置。
type AIConfig struct {
	APIKey      string
	Model       string
	BaseURL     string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	Timeout     time.Duration
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.APIKey != ""
}

// NewGenAIClient 使用配置创建 Gemini 客户端。
func (c AIConfig) NewGenAIClient(ctx context.Context) (*genai.Client, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("GEMINI_API_KEY is not configured")
	}

	cc := &genai.ClientConfig{
		APIKey:  c.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.BaseURL != "" {
		cc.HTTPOptions.BaseURL = c.BaseURL
	}

	return genai.NewClient(ctx, cc)
}

// GenerateConfig 返回每次调用共享的生成参数，不含 system instruction。
func (c AIConfig) GenerateConfig() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		cfg.Temperature = &val
	}
	if c.TopP != nil {
		val := float32(*c.TopP)
		cfg.TopP = &val
	}
	if c.MaxTokens != nil {
		cfg.MaxOutputTokens = int32(*c.MaxTokens)
	}
	return cfg
}

func loadAIConfig() (AIConfig, error) {
	temperature, err := parseOptionalFloatEnv("GEMINI_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("GEMINI_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("GEMINI_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	timeout, err := parseDurationEnv("PROVIDER_TIMEOUT", 2*time.Minute)
	if err != nil {
		return AIConfig{}, err
	}

	return AIConfig{
		APIKey:      strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		Model:       getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		BaseURL:     strings.TrimSpace(os.Getenv("GEMINI_BASE_URL")),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		Timeout:     timeout,
	}, nil
}

// ClientConfig 描述客户端访问中继服务的配置。
type ClientConfig struct {
	APIURL  string
	Timeout time.Duration
}

func loadClientConfig() (ClientConfig, error) {
	timeout, err := parseDurationEnv("CLIENT_TIMEOUT", 0)
	if err != nil {
		return ClientConfig{}, err
	}

	return ClientConfig{
		APIURL:  strings.TrimRight(getEnvOrDefault("API_URL", "http://127.0.0.1:3000"), "/"),
		Timeout: timeout,
	}, nil
}

// StoreConfig 描述本地会话存储。
type StoreConfig struct {
	Driver string
	Path   string
}

func loadStoreConfig() (StoreConfig, error) {
	driver := strings.ToLower(getEnvOrDefault("STORE_DRIVER", "bolt"))
	switch driver {
	case "bolt", "sqlite", "memory":
	default:
		return StoreConfig{}, fmt.Errorf("invalid STORE_DRIVER value %q", driver)
	}

	return StoreConfig{
		Driver: driver,
		Path:   getEnvOrDefault("STORE_PATH", "data/vanguard.db"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
