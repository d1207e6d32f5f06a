// Package agent 实现智能体请求生命周期：上下文检索、预算预检、
// 带重试的远端调用、输出规约、质量评估与产出物落库。
//
// 一次 Run 是一个同步逻辑请求：单次出站调用由调用方等待，
// 不做后台扇出。唯一的并发点是运行结束后对上下文产出物
// dependents 边的批量补写，各写入相互独立、尽力而为。
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/consultflow/agent/contextret"
	"github.com/BaSui01/consultflow/agent/quality"
	"github.com/BaSui01/consultflow/agent/structured"
	"github.com/BaSui01/consultflow/artifact"
	"github.com/BaSui01/consultflow/internal/metrics"
	"github.com/BaSui01/consultflow/llm"
	"github.com/BaSui01/consultflow/llm/budget"
	"github.com/BaSui01/consultflow/llm/retry"
	"github.com/BaSui01/consultflow/types"
)

// Input 一次智能体调用的输入。Data 携带业务负载，序列化后进入提示词。
type Input struct {
	ClientID   string         `json:"client_id"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Stage      types.Stage    `json:"workflow_stage,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// Config 运行时配置。
type Config struct {
	Model            string         `yaml:"model" json:"model"`
	MaxTokens        int            `yaml:"max_tokens" json:"max_tokens"`
	Temperature      float32        `yaml:"temperature" json:"temperature"`
	TopP             float32        `yaml:"top_p" json:"top_p"`
	FrequencyPenalty float32        `yaml:"frequency_penalty" json:"frequency_penalty"`
	PresencePenalty  float32        `yaml:"presence_penalty" json:"presence_penalty"`
	MaxAttempts      int            `yaml:"max_attempts" json:"max_attempts"`
	RetryBaseDelay   types.Duration `yaml:"retry_base_delay" json:"retry_base_delay"`
	QualityThreshold float64        `yaml:"quality_threshold" json:"quality_threshold"`
}

// DefaultConfig 返回默认运行时配置。
func DefaultConfig() Config {
	return Config{
		Model:            "gpt-4o-mini",
		MaxTokens:        2000,
		Temperature:      0.7,
		TopP:             0.9,
		MaxAttempts:      3,
		RetryBaseDelay:   types.Duration(time.Second),
		QualityThreshold: 0.7,
	}
}

// Runtime 智能体运行时。
type Runtime struct {
	config     Config
	provider   llm.Provider
	store      artifact.Store
	retriever  *contextret.Retriever
	governor   *budget.Governor
	normalizer *structured.Normalizer
	retryer    retry.Retryer
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// NewRuntime 组装运行时。metrics 为 nil 时回退到独立注册表，
// logger 为 nil 时使用 Nop。
func NewRuntime(config Config, provider llm.Provider, store artifact.Store, governor *budget.Governor, collector *metrics.Collector, logger *zap.Logger) *Runtime {
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		collector = metrics.Nop()
	}
	if config.MaxAttempts < 1 {
		config.MaxAttempts = DefaultConfig().MaxAttempts
	}
	if config.RetryBaseDelay <= 0 {
		config.RetryBaseDelay = DefaultConfig().RetryBaseDelay
	}
	if config.QualityThreshold <= 0 {
		config.QualityThreshold = DefaultConfig().QualityThreshold
	}
	if config.Model == "" {
		config.Model = DefaultConfig().Model
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = DefaultConfig().MaxTokens
	}

	policy := &retry.Policy{
		MaxAttempts: config.MaxAttempts,
		Backoff:     retry.LinearBackoff(config.RetryBaseDelay.Std()),
		RetryIf:     types.IsRetryable,
	}

	return &Runtime{
		config:     config,
		provider:   provider,
		store:      store,
		retriever:  contextret.NewRetriever(store, logger),
		governor:   governor,
		normalizer: structured.NewNormalizer(logger),
		retryer:    retry.NewRetryer(policy, logger),
		metrics:    collector,
		logger:     logger.With(zap.String("component", "agent_runtime")),
	}
}

// Run 执行一次智能体调用并返回落库后的产出物。
//
// client_id 缺失是硬失败，不触达远端。预算预检失败同样在
// 任何远端调用前返回，且无副作用。其余不可恢复失败会先落一个
// 失败产出物（status=failed, confidence=0）再向调用方返回错误。
func (r *Runtime) Run(ctx context.Context, agentType string, input Input) (*artifact.Artifact, error) {
	if input.ClientID == "" {
		r.metrics.AgentRuns.WithLabelValues(agentType, "invalid_input").Inc()
		return nil, types.NewError(types.ErrInvalidInput, "client_id is required")
	}

	stage := input.Stage
	if !stage.Valid() {
		stage = types.StageDiscovery
	}

	start := time.Now()
	logger := r.logger.With(
		zap.String("agent_type", agentType),
		zap.String("client_id", input.ClientID),
		zap.String("stage", string(stage)),
	)

	contexts := r.retriever.Fetch(ctx, input.ClientID, agentType, stage)
	prompt := buildPrompt(agentType, input, contexts)

	if err := r.governor.Check(r.config.Model, prompt.user, r.config.MaxTokens); err != nil {
		r.metrics.BudgetRejects.Inc()
		r.metrics.AgentRuns.WithLabelValues(agentType, "budget_exceeded").Inc()
		logger.Warn("request rejected by budget pre-flight", zap.Error(err))
		return nil, err
	}

	resp, err := r.complete(ctx, prompt)
	if err != nil {
		logger.Error("model call failed after retries", zap.Error(err))
		r.metrics.AgentRuns.WithLabelValues(agentType, "transport_failure").Inc()
		r.persistFailure(ctx, agentType, input, stage, err)
		return nil, err
	}

	raw := resp.Content()
	result := r.normalizer.Normalize(raw)
	if !result.Parsed() {
		r.metrics.FallbackParses.Inc()
		logger.Warn("model response fell back to raw structure")
	}

	score := quality.Score(result.Content)
	score = quality.WithContextBonus(score, len(contexts), result.Content.Analysis)

	a := artifact.New(input.ClientID, agentType, stage)
	a.WorkflowID = input.WorkflowID
	a.Status = types.ArtifactCompleted
	a.Raw = raw
	a.Structured = toStructured(result.Content)
	a.InputContext = input.Data
	a.Metadata = artifact.Metadata{
		Model:          r.config.Model,
		ProcessingTime: time.Since(start),
		TokensUsed:     resp.Usage.TotalTokens,
		Cost:           budget.ActualCost(r.config.Model, resp.Usage.TotalTokens),
		QualityScore:   score,
	}
	a.Validation = artifact.Validation{
		IsValidated: score > r.config.QualityThreshold,
		Score:       score,
	}
	for _, c := range contexts {
		a.Dependencies = append(a.Dependencies, c.ID)
	}

	if err := r.store.Create(ctx, a); err != nil {
		logger.Error("artifact persistence failed", zap.Error(err))
		r.metrics.AgentRuns.WithLabelValues(agentType, "persist_failure").Inc()
		return nil, types.NewErrorf(types.ErrInternal, "persist artifact: %v", err)
	}

	r.linkDependents(ctx, contexts, a.ID, logger)

	r.metrics.AgentRuns.WithLabelValues(agentType, "success").Inc()
	r.metrics.AgentDuration.WithLabelValues(agentType).Observe(time.Since(start).Seconds())
	r.metrics.AgentTokens.WithLabelValues(agentType).Add(float64(resp.Usage.TotalTokens))
	r.metrics.AgentCost.WithLabelValues(agentType).Add(a.Metadata.Cost)
	r.metrics.QualityScore.WithLabelValues(agentType).Observe(score)

	logger.Info("agent run completed",
		zap.String("artifact_id", a.ID),
		zap.Float64("quality_score", score),
		zap.Bool("parsed", result.Parsed()),
		zap.Int("context_count", len(contexts)),
		zap.Duration("elapsed", a.Metadata.ProcessingTime))
	return a, nil
}

// complete 带重试地调用远端模型。空响应视同传输失败。
func (r *Runtime) complete(ctx context.Context, p prompt) (*llm.ChatResponse, error) {
	req := &llm.ChatRequest{
		Model:            r.config.Model,
		MaxTokens:        r.config.MaxTokens,
		Temperature:      r.config.Temperature,
		TopP:             r.config.TopP,
		FrequencyPenalty: r.config.FrequencyPenalty,
		PresencePenalty:  r.config.PresencePenalty,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: p.system},
			{Role: llm.RoleUser, Content: p.user},
		},
	}

	return retry.DoWithResultTyped(r.retryer, ctx, func() (*llm.ChatResponse, error) {
		resp, err := r.provider.Completion(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp.Content() == "" {
			return nil, types.NewError(types.ErrTransportFailure, "model returned empty content")
		}
		return resp, nil
	})
}

// linkDependents 将新产出物 id 补写进每个上下文产出物的 dependents。
// 各写入并发且互不影响，失败仅记日志：新产出物已经持久化。
func (r *Runtime) linkDependents(ctx context.Context, contexts []*artifact.Artifact, newID string, logger *zap.Logger) {
	if len(contexts) == 0 {
		return
	}

	var g errgroup.Group
	for _, c := range contexts {
		depID := c.ID
		g.Go(func() error {
			if err := r.store.AppendDependent(ctx, depID, newID); err != nil {
				logger.Warn("dependent link failed",
					zap.String("upstream_id", depID),
					zap.String("artifact_id", newID),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
}

// persistFailure 落一个失败产出物用于事后排查。落库失败只记日志。
func (r *Runtime) persistFailure(ctx context.Context, agentType string, input Input, stage types.Stage, cause error) {
	a := artifact.New(input.ClientID, agentType, stage)
	a.WorkflowID = input.WorkflowID
	a.Status = types.ArtifactFailed
	a.InputContext = input.Data
	a.Structured = artifact.StructuredContent{
		Analysis:   fmt.Sprintf("Agent execution failed: %v", cause),
		Confidence: 0,
		Reasoning:  "Execution failure, see analysis for cause",
	}
	a.Metadata.Model = r.config.Model

	if err := r.store.Create(ctx, a); err != nil {
		r.logger.Error("failure artifact persistence failed",
			zap.String("agent_type", agentType),
			zap.NamedError("cause", cause),
			zap.Error(err))
	}
}

func toStructured(c structured.Content) artifact.StructuredContent {
	return artifact.StructuredContent{
		Analysis:        c.Analysis,
		Recommendations: c.Recommendations,
		NextSteps:       c.NextSteps,
		Insights:        c.Insights,
		Confidence:      c.Confidence,
		Reasoning:       c.Reasoning,
	}
}

// marshalInput 序列化业务负载进提示词。失败时退化为 %v 格式。
func marshalInput(data map[string]any) string {
	if len(data) == 0 {
		return "{}"
	}
	b, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(b)
}
