// Package artifact 定义产出物模型与版本化持久层抽象。
//
// 产出物是一次智能体调用的持久化记录：原始模型输出、结构化结果、
// 执行元数据，以及双向依赖图的两条邻接表。图不做环检测，
// 两个方向的维护是最终一致的（依赖边随产出物创建写入，
// 反向的 dependents 边由运行时事后补写）。
package artifact

import (
	"time"

	"github.com/google/uuid"

	"github.com/BaSui01/consultflow/types"
)

// StructuredContent 结构化输出内容。
type StructuredContent struct {
	Analysis        string   `json:"analysis" bson:"analysis"`
	Recommendations []string `json:"recommendations" bson:"recommendations"`
	NextSteps       []string `json:"next_steps" bson:"next_steps"`
	Insights        []string `json:"insights" bson:"insights"`
	Confidence      float64  `json:"confidence" bson:"confidence"`
	Reasoning       string   `json:"reasoning" bson:"reasoning"`
}

// Metadata 执行元数据。
type Metadata struct {
	Model          string        `json:"model" bson:"model"`
	ProcessingTime time.Duration `json:"processing_time" bson:"processing_time"`
	TokensUsed     int           `json:"tokens_used" bson:"tokens_used"`
	Cost           float64       `json:"cost" bson:"cost"`
	QualityScore   float64       `json:"quality_score" bson:"quality_score"`
}

// Validation 校验结果。
type Validation struct {
	IsValidated bool    `json:"is_validated" bson:"is_validated"`
	Score       float64 `json:"score" bson:"score"`
	Notes       string  `json:"notes,omitempty" bson:"notes,omitempty"`
}

// Artifact 一次智能体调用的持久化产出物。
type Artifact struct {
	ID         string               `json:"id" bson:"_id"`
	ClientID   string               `json:"client_id" bson:"client_id"`
	AgentType  string               `json:"agent_type" bson:"agent_type"`
	WorkflowID string               `json:"workflow_id,omitempty" bson:"workflow_id,omitempty"`
	Stage      types.Stage          `json:"stage" bson:"stage"`
	Status     types.ArtifactStatus `json:"status" bson:"status"`

	// Raw 保留未解析的模型输出，用于审计
	Raw        string            `json:"raw" bson:"raw"`
	Structured StructuredContent `json:"structured" bson:"structured"`
	Metadata   Metadata          `json:"metadata" bson:"metadata"`

	InputContext  map[string]any `json:"input_context,omitempty" bson:"input_context,omitempty"`
	OutputContext map[string]any `json:"output_context,omitempty" bson:"output_context,omitempty"`

	// Dependencies: 本产出物构建时消费的上游产出物 id
	// Dependents: 后续消费了本产出物的下游产出物 id（事后补写）
	Dependencies []string `json:"dependencies,omitempty" bson:"dependencies,omitempty"`
	Dependents   []string `json:"dependents,omitempty" bson:"dependents,omitempty"`

	Validation Validation `json:"validation" bson:"validation"`

	Version       int     `json:"version" bson:"version"`
	ParentVersion *string `json:"parent_version,omitempty" bson:"parent_version,omitempty"`

	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// New 创建一个待执行的产出物骨架。
func New(clientID, agentType string, stage types.Stage) *Artifact {
	now := time.Now().UTC()
	return &Artifact{
		ID:        uuid.NewString(),
		ClientID:  clientID,
		AgentType: agentType,
		Stage:     stage,
		Status:    types.ArtifactPending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Completed 判断产出物是否成功完成。
// 不变式：completed 的产出物必然带有非空 analysis。
func (a *Artifact) Completed() bool {
	return a.Status == types.ArtifactCompleted && a.Structured.Analysis != ""
}

// Clone 返回深拷贝，内存实现依赖它隔离调用方的修改。
func (a *Artifact) Clone() *Artifact {
	cp := *a
	cp.Dependencies = append([]string(nil), a.Dependencies...)
	cp.Dependents = append([]string(nil), a.Dependents...)
	cp.Structured.Recommendations = append([]string(nil), a.Structured.Recommendations...)
	cp.Structured.NextSteps = append([]string(nil), a.Structured.NextSteps...)
	cp.Structured.Insights = append([]string(nil), a.Structured.Insights...)
	if a.InputContext != nil {
		cp.InputContext = make(map[string]any, len(a.InputContext))
		for k, v := range a.InputContext {
			cp.InputContext[k] = v
		}
	}
	if a.OutputContext != nil {
		cp.OutputContext = make(map[string]any, len(a.OutputContext))
		for k, v := range a.OutputContext {
			cp.OutputContext[k] = v
		}
	}
	if a.ParentVersion != nil {
		pv := *a.ParentVersion
		cp.ParentVersion = &pv
	}
	return &cp
}
