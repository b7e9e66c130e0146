package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"

	"github.com/zhouzirui/z-chat/backend/internal/model/chat"
	"github.com/zhouzirui/z-chat/backend/internal/provider/gemini"
)

const (
	ProviderGemini = "gemini"
	ProviderArk    = "ark"
)

const (
	DefaultGreeting = "Salam! Main **Gemini Pro Advanced Assistant** hun.\n" +
		"University project ke liye banaya gaya hun.\n\n" +
		"Mujhse coding, assignment, research, ya koi bhi sawal pooch sakte ho!\n" +
		"English aur Urdu dono mein baat kar sakta hun 🤖"
	DefaultApology      = "Kuch galat ho gaya. Dobara try karein!"
	DefaultExportPrefix = "gemini_chat"
	DefaultModel        = "gemini-2.0-flash"
)

// ErrMissingCredential marks a required secret that was not provided.
var ErrMissingCredential = errors.New("required credential missing")

// StartupConfigError 表示启动阶段无法恢复的配置错误。
type StartupConfigError struct {
	Key string
	Err error
}

func (e *StartupConfigError) Error() string {
	return fmt.Sprintf("startup config %s: %v", e.Key, e.Err)
}

func (e *StartupConfigError) Unwrap() error {
	return e.Err
}

// Config 聚合整个服务的配置项。
type Config struct {
	Server    ServerConfig
	AI        AIConfig
	Chat      ChatConfig
	Telemetry TelemetryConfig
	Storage   StorageConfig
}

// Load 从环境变量（以及可选的 TOML 设置文件）加载配置。
func Load() (*Config, error) {
	settings, err := loadSettingsFile(strings.TrimSpace(os.Getenv("CHAT_SETTINGS_FILE")))
	if err != nil {
		return nil, &StartupConfigError{Key: "CHAT_SETTINGS_FILE", Err: err}
	}

	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig(settings)
	if err != nil {
		return nil, err
	}
	if err := ai.RequireCredentials(); err != nil {
		return nil, err
	}

	chatCfg, err := loadChatConfig(settings)
	if err != nil {
		return nil, err
	}

	telemetry, err := loadTelemetryConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:    server,
		AI:        ai,
		Chat:      chatCfg,
		Telemetry: telemetry,
		Storage:   StorageConfig{RequestLogPath: strings.TrimSpace(os.Getenv("CHAT_REQUEST_LOG"))},
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider       string
	GeminiAPIKey   string
	GeminiBaseURL  string
	APIKey         string
	AccessKey      string
	SecretKey      string
	Model          string
	BaseURL        string
	Region         string
	Temperature    *float64
	TopP           *float64
	MaxTokens      *int
	SystemPrompt   string
	StreamResponse bool
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	default:
		return c.GeminiAPIKey != ""
	}
}

// RequireCredentials returns a StartupConfigError when the selected provider has no credential.
func (c AIConfig) RequireCredentials() error {
	if c.Enabled() {
		return nil
	}
	if c.Provider == ProviderArk {
		return &StartupConfigError{Key: "ARK_API_KEY", Err: ErrMissingCredential}
	}
	return &StartupConfigError{Key: "GEMINI_API_KEY", Err: ErrMissingCredential}
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if err := c.RequireCredentials(); err != nil {
		return nil, err
	}

	switch c.Provider {
	case ProviderArk:
		return c.newArkChatModel(ctx)
	default:
		return gemini.NewChatModel(ctx, &gemini.Config{
			APIKey:  c.GeminiAPIKey,
			BaseURL: c.GeminiBaseURL,
			Model:   c.Model,
		})
	}
}

func (c AIConfig) newArkChatModel(ctx context.Context) (model.BaseChatModel, error) {
	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	var maxTokens *int
	if c.MaxTokens != nil {
		val := *c.MaxTokens
		maxTokens = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   maxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

func loadAIConfig(settings fileSettings) (AIConfig, error) {
	provider := strings.ToLower(getEnvOrDefault("CHAT_PROVIDER", ProviderGemini))
	if provider != ProviderGemini && provider != ProviderArk {
		return AIConfig{}, fmt.Errorf("invalid CHAT_PROVIDER value %q", provider)
	}

	temperature, err := parseOptionalFloatEnv("ARK_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("ARK_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("ARK_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	stream, err := parseBoolEnv("CHAT_STREAM", true)
	if err != nil {
		return AIConfig{}, err
	}

	modelID := strings.TrimSpace(os.Getenv("Model"))
	if provider == ProviderGemini {
		modelID = getEnvOrDefault("CHAT_DEFAULT_MODEL", orDefault(settings.Defaults.Model, DefaultModel))
	}

	return AIConfig{
		Provider:       provider,
		GeminiAPIKey:   strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiBaseURL:  getEnvOrDefault("GEMINI_BASE_URL", gemini.DefaultBaseURL),
		APIKey:         strings.TrimSpace(os.Getenv("ARK_API_KEY")),
		AccessKey:      strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY")),
		SecretKey:      strings.TrimSpace(os.Getenv("ARK_SECRET_KEY")),
		Model:          modelID,
		BaseURL:        getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3"),
		Region:         getEnvOrDefault("ARK_REGION", "cn-beijing"),
		Temperature:    temperature,
		TopP:           topP,
		MaxTokens:      maxTokens,
		SystemPrompt:   getEnvOrDefault("CHAT_SYSTEM_PROMPT", settings.Chat.SystemPrompt),
		StreamResponse: stream,
	}, nil
}

// ChatConfig 描述会话与界面相关配置。
type ChatConfig struct {
	Greeting           string
	Apology            string
	ExportPrefix       string
	DefaultModel       string
	DefaultTemperature float64
	ShowDiagnostics    bool
}

// DefaultGenerationConfig returns the sampling settings new sessions start with.
func (c ChatConfig) DefaultGenerationConfig() chat.GenerationConfig {
	return chat.NewGenerationConfig(c.DefaultModel, c.DefaultTemperature)
}

func loadChatConfig(settings fileSettings) (ChatConfig, error) {
	temperature := chat.DefaultTemperature
	if settings.Defaults.Temperature != nil {
		temperature = *settings.Defaults.Temperature
	}
	override, err := parseOptionalFloatEnv("CHAT_DEFAULT_TEMPERATURE")
	if err != nil {
		return ChatConfig{}, err
	}
	if override != nil {
		temperature = *override
	}
	if temperature < 0 || temperature > 1 {
		return ChatConfig{}, fmt.Errorf("invalid CHAT_DEFAULT_TEMPERATURE value %v: %w", temperature, chat.ErrTemperatureOutOfRange)
	}

	showDiagnostics := true
	if settings.Chat.ShowDiagnostics != nil {
		showDiagnostics = *settings.Chat.ShowDiagnostics
	}
	showDiagnostics, err = parseBoolEnv("CHAT_SHOW_DIAGNOSTICS", showDiagnostics)
	if err != nil {
		return ChatConfig{}, err
	}

	return ChatConfig{
		Greeting:           getEnvOrDefault("CHAT_GREETING", orDefault(settings.Chat.Greeting, DefaultGreeting)),
		Apology:            getEnvOrDefault("CHAT_APOLOGY", orDefault(settings.Chat.Apology, DefaultApology)),
		ExportPrefix:       getEnvOrDefault("CHAT_EXPORT_PREFIX", orDefault(settings.Chat.ExportPrefix, DefaultExportPrefix)),
		DefaultModel:       getEnvOrDefault("CHAT_DEFAULT_MODEL", orDefault(settings.Defaults.Model, DefaultModel)),
		DefaultTemperature: chat.SnapTemperature(temperature),
		ShowDiagnostics:    showDiagnostics,
	}, nil
}

// TelemetryConfig 描述日志与链路追踪输出。
type TelemetryConfig struct {
	LogFile      string
	OTelEnabled  bool
	OTelDir      string
	ServiceName  string
	ExportPeriod int
}

func loadTelemetryConfig() (TelemetryConfig, error) {
	enabled, err := parseBoolEnv("OTEL_ENABLED", false)
	if err != nil {
		return TelemetryConfig{}, err
	}

	period := 10
	if override, err := parseOptionalIntEnv("OTEL_EXPORT_INTERVAL"); err != nil {
		return TelemetryConfig{}, err
	} else if override != nil && *override > 0 {
		period = *override
	}

	return TelemetryConfig{
		LogFile:      strings.TrimSpace(os.Getenv("LOG_FILE")),
		OTelEnabled:  enabled,
		OTelDir:      getEnvOrDefault("OTEL_DIR", "logs"),
		ServiceName:  getEnvOrDefault("OTEL_SERVICE_NAME", "z-chat"),
		ExportPeriod: period,
	}, nil
}

// StorageConfig 描述可选的请求日志存储。
type StorageConfig struct {
	RequestLogPath string
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func orDefault(value, defaultValue string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
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

// PerRequestModel reports whether the session's model choice is forwarded to the provider.
// Ark endpoints are bound to one deployed model, so the dropdown only applies to Gemini.
func (c AIConfig) PerRequestModel() bool {
	return c.Provider != ProviderArk
}
