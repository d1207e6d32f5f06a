package workflow

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/consultflow/agent"
	"github.com/BaSui01/consultflow/artifact"
	"github.com/BaSui01/consultflow/internal/metrics"
	"github.com/BaSui01/consultflow/types"
)

// Config 编排器配置。
type Config struct {
	// QualityThreshold 质量门槛。低于门槛告警但不阻断
	QualityThreshold float64 `yaml:"quality_threshold" json:"quality_threshold"`
	// AutoPublish 达到门槛时自动发布交付物
	AutoPublish bool `yaml:"auto_publish" json:"auto_publish"`
	// VisualExport 允许视觉导出；还需单次请求明确要求
	VisualExport bool `yaml:"visual_export" json:"visual_export"`
}

// DefaultConfig 返回默认编排器配置。
func DefaultConfig() Config {
	return Config{
		QualityThreshold: 0.7,
		AutoPublish:      true,
		VisualExport:     false,
	}
}

// Orchestrator 工作流编排器。
type Orchestrator struct {
	config    Config
	runner    Runner
	clients   ClientStore
	artifacts artifact.Store
	renderer  Renderer
	publisher Publisher
	metrics   *metrics.Collector
	logger    *zap.Logger
}

// NewOrchestrator 组装编排器。renderer 与 publisher 可为 nil，
// 对应能力静默关闭。
func NewOrchestrator(config Config, runner Runner, clients ClientStore, artifacts artifact.Store, renderer Renderer, publisher Publisher, collector *metrics.Collector, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if collector == nil {
		collector = metrics.Nop()
	}
	if config.QualityThreshold <= 0 {
		config.QualityThreshold = DefaultConfig().QualityThreshold
	}

	return &Orchestrator{
		config:    config,
		runner:    runner,
		clients:   clients,
		artifacts: artifacts,
		renderer:  renderer,
		publisher: publisher,
		metrics:   collector,
		logger:    logger.With(zap.String("component", "orchestrator")),
	}
}

// GenerateStage 生成单个交付物阶段。
//
// 任何失败都会把该交付物标记为 failed 并把错误原样上抛；
// 质量低于门槛只告警，不构成失败。
func (o *Orchestrator) GenerateStage(ctx context.Context, clientID string, deliverable DeliverableType, opts StageOptions) (*StageResult, error) {
	if !deliverable.Valid() {
		return nil, types.NewErrorf(types.ErrInvalidInput, "unknown deliverable type %q", deliverable)
	}

	exists, err := o.clients.Exists(ctx, clientID)
	if err != nil {
		return nil, types.NewErrorf(types.ErrInternal, "client lookup: %v", err)
	}
	if !exists {
		return nil, types.NewErrorf(types.ErrClientNotFound, "client %s not found", clientID)
	}

	logger := o.logger.With(
		zap.String("client_id", clientID),
		zap.String("deliverable", string(deliverable)),
	)
	plan := deliverablePlans[deliverable]

	if err := o.clients.UpdateWorkflowStatus(ctx, clientID, deliverable, types.DeliverableInProgress, nil); err != nil {
		return nil, types.NewErrorf(types.ErrInternal, "mark in_progress: %v", err)
	}

	result, err := o.runStage(ctx, clientID, deliverable, plan.agentType, plan.stage, opts, logger)
	if err != nil {
		o.metrics.WorkflowStages.WithLabelValues(string(deliverable), string(plan.stage), "failed").Inc()
		if markErr := o.clients.UpdateWorkflowStatus(ctx, clientID, deliverable, types.DeliverableFailed, nil); markErr != nil {
			logger.Error("failed-status update failed", zap.Error(markErr))
		}
		return nil, err
	}

	if err := o.clients.UpdateWorkflowStatus(ctx, clientID, deliverable, types.DeliverableCompleted, result); err != nil {
		logger.Error("completed-status update failed", zap.Error(err))
	}
	o.metrics.WorkflowStages.WithLabelValues(string(deliverable), string(plan.stage), "completed").Inc()
	return result, nil
}

func (o *Orchestrator) runStage(ctx context.Context, clientID string, deliverable DeliverableType, agentType string, stage types.Stage, opts StageOptions, logger *zap.Logger) (*StageResult, error) {
	a, err := o.runner.Run(ctx, agentType, agent.Input{
		ClientID: clientID,
		Stage:    stage,
		Data:     opts.Input,
	})
	if err != nil {
		return nil, err
	}

	score := a.Metadata.QualityScore
	if score < o.config.QualityThreshold {
		logger.Warn("quality below threshold, proceeding anyway",
			zap.Float64("score", score),
			zap.Float64("threshold", o.config.QualityThreshold))
	}

	result := &StageResult{
		Deliverable:  deliverable,
		ArtifactID:   a.ID,
		QualityScore: score,
		Validated:    a.Validation.IsValidated,
		CompletedAt:  time.Now().UTC(),
	}

	if o.config.AutoPublish && score >= o.config.QualityThreshold {
		result.Published = true
		if o.publisher != nil {
			if err := o.publisher.PublishDeliverable(ctx, clientID, result); err != nil {
				logger.Warn("deliverable publish failed", zap.Error(err))
			}
		}
	}

	if o.config.VisualExport && opts.ExportVisual && o.renderer != nil {
		export, err := o.renderer.Render(ctx, RenderRequest{
			ClientID:    clientID,
			ArtifactIDs: []string{a.ID},
			Deliverable: deliverable,
			Format:      opts.Format,
			Theme:       opts.Theme,
		})
		if err != nil {
			// 导出是锦上添花，不让它拖垮已完成的阶段
			logger.Warn("visual export failed", zap.Error(err))
		} else {
			result.Export = export
		}
	}

	return result, nil
}

// GenerateCompleteFramework 串行生成价值主张与商业模式两个阶段，
// 前段的分析与洞察作为后段的额外输入上下文。
//
// 后段失败把复合工作流判为失败，但前段已落库的产出物保持原样，
// 不做回滚。
func (o *Orchestrator) GenerateCompleteFramework(ctx context.Context, clientID string, opts StageOptions) (*FrameworkResult, error) {
	vp, err := o.GenerateStage(ctx, clientID, DeliverableValueProposition, opts)
	if err != nil {
		return nil, err
	}

	bmOpts := opts
	bmOpts.Input = make(map[string]any, len(opts.Input)+1)
	for k, v := range opts.Input {
		bmOpts.Input[k] = v
	}
	if vpArtifact, getErr := o.artifacts.Get(ctx, vp.ArtifactID); getErr == nil {
		bmOpts.Input["value_proposition"] = map[string]any{
			"analysis": vpArtifact.Structured.Analysis,
			"insights": vpArtifact.Structured.Insights,
		}
	}

	bm, err := o.GenerateStage(ctx, clientID, DeliverableBusinessModel, bmOpts)
	if err != nil {
		return nil, err
	}

	result := &FrameworkResult{
		Stages:           []StageResult{*vp, *bm},
		AggregateQuality: (vp.QualityScore + bm.QualityScore) / 2,
		CompletedAt:      time.Now().UTC(),
	}

	if o.config.VisualExport && opts.ExportVisual && o.renderer != nil {
		export, renderErr := o.renderer.Render(ctx, RenderRequest{
			ClientID:    clientID,
			ArtifactIDs: []string{vp.ArtifactID, bm.ArtifactID},
			Format:      opts.Format,
			Theme:       opts.Theme,
		})
		if renderErr != nil {
			o.logger.Warn("combined export failed",
				zap.String("client_id", clientID),
				zap.Error(renderErr))
		} else {
			result.Export = export
		}
	}

	o.logger.Info("complete framework generated",
		zap.String("client_id", clientID),
		zap.Float64("aggregate_quality", result.AggregateQuality))
	return result, nil
}

// WorkflowStatus 只读聚合客户的交付物状态与产出物统计。
func (o *Orchestrator) WorkflowStatus(ctx context.Context, clientID string) (*StatusReport, error) {
	exists, err := o.clients.Exists(ctx, clientID)
	if err != nil {
		return nil, types.NewErrorf(types.ErrInternal, "client lookup: %v", err)
	}
	if !exists {
		return nil, types.NewErrorf(types.ErrClientNotFound, "client %s not found", clientID)
	}

	state, err := o.clients.WorkflowState(ctx, clientID)
	if err != nil {
		return nil, types.NewErrorf(types.ErrInternal, "workflow state: %v", err)
	}

	deliverables := make([]DeliverableState, 0, len(state))
	for _, ds := range state {
		deliverables = append(deliverables, ds)
	}
	sort.Slice(deliverables, func(i, j int) bool {
		return deliverables[i].Deliverable < deliverables[j].Deliverable
	})

	stats, err := o.artifacts.StageStats(ctx, clientID)
	if err != nil {
		// 统计是增值信息，查询失败不拖垮状态报告
		o.logger.Warn("stage stats unavailable",
			zap.String("client_id", clientID),
			zap.Error(err))
		stats = nil
	}

	artifacts, err := o.artifacts.ListByClient(ctx, clientID, 0)
	if err != nil {
		artifacts = nil
	}

	return &StatusReport{
		ClientID:     clientID,
		Deliverables: deliverables,
		Stages:       stats,
		Gate:         EvaluateGate(artifacts, o.config.QualityThreshold),
	}, nil
}
