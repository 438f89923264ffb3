package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
	"github.com/spf13/viper"

	"github.com/foodloop/assistant/internal/storage"
)

// 可选的意图识别后端。
const (
	AgentDialogflow = "dialogflow"
	AgentArk        = "ark"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server     ServerConfig
	Dialogflow DialogflowConfig
	AI         AIConfig
	Store      storage.Options
	Agent      string
	LogLevel   string
}

// Load 从环境变量加载配置（.env 需已提前载入）。
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ASSISTANT_AGENT", AgentDialogflow)
	v.SetDefault("DIALOGFLOW_LANGUAGE_CODE", "en")
	v.SetDefault("DIALOGFLOW_ENDPOINT", "https://dialogflow.googleapis.com/v2")
	v.SetDefault("DIALOGFLOW_TIMEOUT", "0s")
	v.SetDefault("STORE_DRIVER", storage.DriverMemory)
	v.SetDefault("STORE_SQLITE_PATH", "data/assistant.db")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
	v.SetDefault("ARK_REGION", "cn-beijing")
	v.SetDefault("LOG_LEVEL", "info")

	server, err := loadServerConfig(v)
	if err != nil {
		return nil, err
	}

	dialogflow, err := loadDialogflowConfig(v)
	if err != nil {
		return nil, err
	}

	agent := strings.ToLower(strings.TrimSpace(v.GetString("ASSISTANT_AGENT")))
	switch agent {
	case AgentDialogflow, AgentArk:
	default:
		return nil, fmt.Errorf("invalid ASSISTANT_AGENT value: %q", agent)
	}

	return &Config{
		Server:     server,
		Dialogflow: dialogflow,
		AI:         loadAIConfig(v),
		Store: storage.Options{
			Driver:     v.GetString("STORE_DRIVER"),
			SQLitePath: v.GetString("STORE_SQLITE_PATH"),
			RedisAddr:  v.GetString("REDIS_ADDR"),
			RedisDB:    v.GetInt("REDIS_DB"),
		},
		Agent:    agent,
		LogLevel: v.GetString("LOG_LEVEL"),
	}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr string
}

func loadServerConfig(v *viper.Viper) (ServerConfig, error) {
	port := strings.TrimSpace(v.GetString("PORT"))
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

// DialogflowConfig 描述 Dialogflow 意图识别及其凭据配置。
type DialogflowConfig struct {
	ProjectID       string
	LanguageCode    string
	Endpoint        string
	CredentialsFile string
	StaticToken     string
	// 单次 detectIntent 调用的超时，0 表示不限制
	Timeout time.Duration
}

// Enabled 表示是否同时配置了项目和凭据。
func (c DialogflowConfig) Enabled() bool {
	return c.ProjectID != "" && (c.CredentialsFile != "" || c.StaticToken != "")
}

func loadDialogflowConfig(v *viper.Viper) (DialogflowConfig, error) {
	raw := strings.TrimSpace(v.GetString("DIALOGFLOW_TIMEOUT"))
	timeout, err := time.ParseDuration(raw)
	if err != nil {
		return DialogflowConfig{}, fmt.Errorf("invalid DIALOGFLOW_TIMEOUT value %q: %w", raw, err)
	}
	if timeout < 0 {
		return DialogflowConfig{}, fmt.Errorf("invalid DIALOGFLOW_TIMEOUT value %q: must not be negative", raw)
	}

	return DialogflowConfig{
		ProjectID:       strings.TrimSpace(v.GetString("DIALOGFLOW_PROJECT_ID")),
		LanguageCode:    strings.TrimSpace(v.GetString("DIALOGFLOW_LANGUAGE_CODE")),
		Endpoint:        strings.TrimSpace(v.GetString("DIALOGFLOW_ENDPOINT")),
		CredentialsFile: strings.TrimSpace(v.GetString("GOOGLE_APPLICATION_CREDENTIALS")),
		StaticToken:     strings.TrimSpace(v.GetString("DIALOGFLOW_STATIC_TOKEN")),
		Timeout:         timeout,
	}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	APIKey    string
	AccessKey string
	SecretKey string
	Model     string
	BaseURL   string
	Region    string
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_MODEL with ARK_API_KEY or ARK_ACCESS_KEY/ARK_SECRET_KEY")
	}

	chatModel, err := ark.NewChatModel(ctx, &ark.ChatModelConfig{
		BaseURL:   c.BaseURL,
		Region:    c.Region,
		APIKey:    c.APIKey,
		AccessKey: c.AccessKey,
		SecretKey: c.SecretKey,
		Model:     c.Model,
	})
	if err != nil {
		return nil, err
	}
	return chatModel, nil
}

func loadAIConfig(v *viper.Viper) AIConfig {
	return AIConfig{
		APIKey:    strings.TrimSpace(v.GetString("ARK_API_KEY")),
		AccessKey: strings.TrimSpace(v.GetString("ARK_ACCESS_KEY")),
		SecretKey: strings.TrimSpace(v.GetString("ARK_SECRET_KEY")),
		Model:     strings.TrimSpace(v.GetString("ARK_MODEL")),
		BaseURL:   v.GetString("ARK_BASE_URL"),
		Region:    v.GetString("ARK_REGION"),
	}
}
