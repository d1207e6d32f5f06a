// Package workflow 将多次智能体调用编排为多阶段交付物。
//
// 每种交付物是一个状态机：not_started → in_progress → completed|failed。
// 质量门槛是咨询式的：低于阈值告警但不阻断。多阶段串行执行，
// 后一阶段的提示词依赖前一阶段的产出物，阶段间无补偿事务，
// 后段失败不回滚前段已落库的产出物。
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/BaSui01/consultflow/agent"
	"github.com/BaSui01/consultflow/artifact"
	"github.com/BaSui01/consultflow/types"
)

// DeliverableType 交付物类型。
type DeliverableType string

const (
	DeliverableValueProposition DeliverableType = "value-proposition"
	DeliverableBusinessModel    DeliverableType = "business-model"
)

// deliverablePlans 交付物到智能体与阶段的映射。
var deliverablePlans = map[DeliverableType]struct {
	agentType string
	stage     types.Stage
}{
	DeliverableValueProposition: {agentType: agent.AgentValueProposition, stage: types.StageDiscovery},
	DeliverableBusinessModel:    {agentType: agent.AgentBusinessModel, stage: types.StageValidation},
}

// Valid 判断交付物类型是否已登记。
func (d DeliverableType) Valid() bool {
	_, ok := deliverablePlans[d]
	return ok
}

// StageOptions 单阶段生成选项。
type StageOptions struct {
	// Input 业务输入，序列化后进入提示词
	Input map[string]any
	// ExportVisual 请求视觉导出；还需编排器配置启用导出才会生效
	ExportVisual bool
	Format       string
	Theme        string
}

// StageResult 单阶段生成结果。
type StageResult struct {
	Deliverable  DeliverableType `json:"deliverable"`
	ArtifactID   string          `json:"artifact_id"`
	QualityScore float64         `json:"quality_score"`
	Validated    bool            `json:"validated"`
	Published    bool            `json:"published"`
	Export       *RenderResult   `json:"export,omitempty"`
	CompletedAt  time.Time       `json:"completed_at"`
}

// FrameworkResult 完整框架（多阶段）生成结果。
type FrameworkResult struct {
	Stages           []StageResult `json:"stages"`
	AggregateQuality float64       `json:"aggregate_quality"`
	Export           *RenderResult `json:"export,omitempty"`
	CompletedAt      time.Time     `json:"completed_at"`
}

// DeliverableState 状态报告中的单个交付物条目。
type DeliverableState struct {
	Deliverable DeliverableType         `json:"deliverable"`
	Status      types.DeliverableStatus `json:"status"`
	Result      *StageResult            `json:"result,omitempty"`
}

// StatusReport 客户工作流的只读聚合视图。
type StatusReport struct {
	ClientID     string                `json:"client_id"`
	Deliverables []DeliverableState    `json:"deliverables"`
	Stages       []artifact.StageStats `json:"stages"`
	Gate         GateResult            `json:"gate"`
}

// RenderRequest 视觉导出请求。
type RenderRequest struct {
	ClientID    string          `json:"client_id"`
	ArtifactIDs []string        `json:"artifact_ids"`
	Deliverable DeliverableType `json:"deliverable"`
	Format      string          `json:"format"`
	Theme       string          `json:"theme"`
}

// RenderResult 视觉导出结果。
type RenderResult struct {
	URL      string `json:"url"`
	FileSize int64  `json:"file_size"`
}

// Renderer 外部渲染协作方。只有编排器的导出步骤会调用它。
type Renderer interface {
	Render(ctx context.Context, req RenderRequest) (*RenderResult, error)
}

// ClientStore 客户记录协作方：存在性校验与工作流状态推进。
type ClientStore interface {
	Exists(ctx context.Context, clientID string) (bool, error)
	UpdateWorkflowStatus(ctx context.Context, clientID string, deliverable DeliverableType, status types.DeliverableStatus, result *StageResult) error
	WorkflowState(ctx context.Context, clientID string) (map[DeliverableType]DeliverableState, error)
}

// Runner 智能体运行时的调用面，便于测试替身。*agent.Runtime 满足它。
type Runner interface {
	Run(ctx context.Context, agentType string, input agent.Input) (*artifact.Artifact, error)
}

// Publisher 交付物发布协作方（快照缓存）。发布失败只告警。
type Publisher interface {
	PublishDeliverable(ctx context.Context, clientID string, result *StageResult) error
}

// StagePayload 失败阶段返回给边界层的结构化错误载荷。
type StagePayload struct {
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// AsStagePayload 将阶段错误转换为边界层载荷。
func AsStagePayload(err error) StagePayload {
	msg := "unknown failure"
	var te *types.Error
	if errors.As(err, &te) {
		msg = te.Message
	} else if err != nil {
		msg = err.Error()
	}
	return StagePayload{
		Status:    string(types.DeliverableFailed),
		Message:   msg,
		Timestamp: time.Now().UTC(),
	}
}
