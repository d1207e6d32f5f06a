// Package config 加载服务配置：YAML 文件 + 环境变量覆盖。
//
// 环境变量只覆盖部署间最常变化的少数键（地址、密钥、模型），
// 其余细粒度调参一律走配置文件。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/BaSui01/consultflow/agent"
	"github.com/BaSui01/consultflow/artifact"
	"github.com/BaSui01/consultflow/internal/cache"
	"github.com/BaSui01/consultflow/llm/budget"
	"github.com/BaSui01/consultflow/types"
	"github.com/BaSui01/consultflow/workflow"
)

// LLMConfig 远端模型服务配置。
type LLMConfig struct {
	BaseURL           string         `yaml:"base_url"`
	APIKey            string         `yaml:"api_key"`
	Timeout           types.Duration `yaml:"timeout"`
	RequestsPerSecond float64        `yaml:"requests_per_second"`
	Burst             int            `yaml:"burst"`
}

// LogConfig 日志配置。
type LogConfig struct {
	Level       string `yaml:"level"`
	Development bool   `yaml:"development"`
}

// ServerConfig 指标端点配置。
type ServerConfig struct {
	MetricsAddr string `yaml:"metrics_addr"`
}

// RendererConfig 渲染协作方配置。
type RendererConfig struct {
	BaseURL string         `yaml:"base_url"`
	Timeout types.Duration `yaml:"timeout"`
}

// Config 服务配置总成。
type Config struct {
	LLM      LLMConfig            `yaml:"llm"`
	Agent    agent.Config         `yaml:"agent"`
	Budget   budget.Config        `yaml:"budget"`
	Mongo    artifact.MongoConfig `yaml:"mongo"`
	Redis    cache.Config         `yaml:"redis"`
	Workflow workflow.Config      `yaml:"workflow"`
	Renderer RendererConfig       `yaml:"renderer"`
	Server   ServerConfig         `yaml:"server"`
	Log      LogConfig            `yaml:"log"`
}

// Default 返回全量默认配置。
func Default() Config {
	return Config{
		LLM: LLMConfig{
			BaseURL:           "https://api.openai.com/v1",
			Timeout:           types.Duration(60 * time.Second),
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Agent:    agent.DefaultConfig(),
		Budget:   budget.DefaultConfig(),
		Mongo:    artifact.DefaultMongoConfig(),
		Redis:    cache.DefaultConfig(),
		Workflow: workflow.DefaultConfig(),
		Renderer: RendererConfig{Timeout: types.Duration(30 * time.Second)},
		Server:   ServerConfig{MetricsAddr: ":9090"},
		Log:      LogConfig{Level: "info"},
	}
}

// Load 读取 YAML 配置并套用环境变量覆盖。
// path 为空或文件不存在时直接使用默认值。
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return cfg, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.LLM.BaseURL, "CONSULTFLOW_LLM_BASE_URL")
	setString(&cfg.LLM.APIKey, "CONSULTFLOW_LLM_API_KEY")
	setString(&cfg.Agent.Model, "CONSULTFLOW_MODEL")
	setString(&cfg.Mongo.URI, "CONSULTFLOW_MONGO_URI")
	setString(&cfg.Redis.Addr, "CONSULTFLOW_REDIS_ADDR")
	setString(&cfg.Redis.Password, "CONSULTFLOW_REDIS_PASSWORD")
	setString(&cfg.Renderer.BaseURL, "CONSULTFLOW_RENDERER_URL")
	setString(&cfg.Server.MetricsAddr, "CONSULTFLOW_METRICS_ADDR")
	setString(&cfg.Log.Level, "CONSULTFLOW_LOG_LEVEL")
	setFloat(&cfg.Budget.MaxCostPerRequest, "CONSULTFLOW_MAX_COST_PER_REQUEST")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setFloat(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}
