package types

// Stage 工作流阶段，用于归组产出物并驱动上下文相关性排序。
type Stage string

const (
	StageDiscovery  Stage = "discovery"
	StageValidation Stage = "validation"
	StageScale      Stage = "scale"
)

// Valid 判断阶段值是否合法。
func (s Stage) Valid() bool {
	switch s {
	case StageDiscovery, StageValidation, StageScale:
		return true
	}
	return false
}

// Foundational 判断阶段是否属于基础阶段（最早的两个阶段）。
// 基础阶段的产出物对任何后续请求都具备通用参考价值。
func (s Stage) Foundational() bool {
	return s == StageDiscovery || s == StageValidation
}

// ArtifactStatus 产出物状态。
type ArtifactStatus string

const (
	ArtifactPending    ArtifactStatus = "pending"
	ArtifactInProgress ArtifactStatus = "in_progress"
	ArtifactCompleted  ArtifactStatus = "completed"
	ArtifactFailed     ArtifactStatus = "failed"
)

// DeliverableStatus 交付物状态机：not_started → in_progress → completed|failed。
// 不允许从 not_started 直接跳到 completed。
type DeliverableStatus string

const (
	DeliverableNotStarted DeliverableStatus = "not_started"
	DeliverableInProgress DeliverableStatus = "in_progress"
	DeliverableCompleted  DeliverableStatus = "completed"
	DeliverableFailed     DeliverableStatus = "failed"
)

// CanTransition 校验交付物状态转换是否合法。
func (s DeliverableStatus) CanTransition(to DeliverableStatus) bool {
	switch s {
	case DeliverableNotStarted:
		return to == DeliverableInProgress
	case DeliverableInProgress:
		return to == DeliverableCompleted || to == DeliverableFailed
	case DeliverableCompleted, DeliverableFailed:
		return to == DeliverableInProgress
	}
	return false
}
