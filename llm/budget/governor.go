// Package budget 提供模型调用的成本预检与事后核算。
package budget

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/BaSui01/consultflow/types"
)

// costPerThousandTokens 每千 token 的混合费率（USD）。
// 费率取 prompt/completion 的加权近似值，预检只需要量级正确。
var costPerThousandTokens = map[string]float64{
	"gpt-4o":            0.0125,
	"gpt-4o-mini":       0.00075,
	"gpt-4-turbo":       0.02,
	"gpt-4":             0.045,
	"gpt-3.5-turbo":     0.0015,
	"claude-sonnet-4.5": 0.009,
	"claude-haiku-4.5":  0.0024,
	"deepseek-chat":     0.00055,
}

// maxKnownRate 返回表中最贵的费率。
// 未知模型回落到最贵费率而不是零：宁可错误拒绝也不放行无法核算的请求。
func maxKnownRate() float64 {
	max := 0.0
	for _, rate := range costPerThousandTokens {
		if rate > max {
			max = rate
		}
	}
	return max
}

// RateFor 返回模型的每千 token 费率。
func RateFor(model string) float64 {
	if rate, ok := costPerThousandTokens[model]; ok {
		return rate
	}
	return maxKnownRate()
}

// Config 成本上限配置。
type Config struct {
	// MaxCostPerRequest 单次请求成本上限（USD）
	MaxCostPerRequest float64 `yaml:"max_cost_per_request" json:"max_cost_per_request"`
}

// DefaultConfig 返回默认成本配置。
func DefaultConfig() Config {
	return Config{MaxCostPerRequest: 0.50}
}

// Governor 在远端调用前执行成本预检。
// 预检是 advisory 性质：事后实际成本按真实用量核算并上报指标，
// 但不会再次与上限比对（已知缺口，见 DESIGN.md）。
type Governor struct {
	config Config
	logger *zap.Logger

	encOnce sync.Once
	enc     *tiktoken.Tiktoken
}

// NewGovernor 创建成本治理器。
func NewGovernor(config Config, logger *zap.Logger) *Governor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if config.MaxCostPerRequest <= 0 {
		config.MaxCostPerRequest = DefaultConfig().MaxCostPerRequest
	}
	return &Governor{
		config: config,
		logger: logger.With(zap.String("component", "budget")),
	}
}

// EstimateTokens 估算文本的 token 数。
// 优先使用 tiktoken（cl100k_base），编码不可用时退化为 len/4 启发式。
func (g *Governor) EstimateTokens(text string) int {
	g.encOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			g.logger.Warn("tiktoken encoding unavailable, using heuristic", zap.Error(err))
			return
		}
		g.enc = enc
	})

	if g.enc != nil {
		return len(g.enc.Encode(text, nil, nil))
	}
	return len(text) / 4
}

// EstimateCost 计算预检成本：rate(model) * (promptTokens + maxTokens) / 1000。
func EstimateCost(model string, promptTokens, maxTokens int) float64 {
	return RateFor(model) * float64(promptTokens+maxTokens) / 1000.0
}

// ActualCost 按真实 token 用量核算事后成本。
func ActualCost(model string, totalTokens int) float64 {
	return RateFor(model) * float64(totalTokens) / 1000.0
}

// Check 预检请求成本。超出上限返回 BUDGET_EXCEEDED，无任何副作用。
func (g *Governor) Check(model, prompt string, maxTokens int) error {
	promptTokens := g.EstimateTokens(prompt)
	estimated := EstimateCost(model, promptTokens, maxTokens)

	if estimated > g.config.MaxCostPerRequest {
		g.logger.Warn("budget pre-flight rejected request",
			zap.String("model", model),
			zap.Int("prompt_tokens", promptTokens),
			zap.Int("max_tokens", maxTokens),
			zap.Float64("estimated_cost", estimated),
			zap.Float64("ceiling", g.config.MaxCostPerRequest),
		)
		return types.NewErrorf(types.ErrBudgetExceeded,
			"estimated cost %.4f exceeds ceiling %.4f", estimated, g.config.MaxCostPerRequest)
	}

	g.logger.Debug("budget pre-flight passed",
		zap.String("model", model),
		zap.Float64("estimated_cost", estimated),
	)
	return nil
}

// Ceiling 返回单请求成本上限。
func (g *Governor) Ceiling() float64 { return g.config.MaxCostPerRequest }
