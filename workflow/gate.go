package workflow

import (
	"fmt"

	"github.com/BaSui01/consultflow/artifact"
	"github.com/BaSui01/consultflow/types"
)

// GateStatus 阶段门评估结论。
type GateStatus string

const (
	GatePassed  GateStatus = "passed"
	GateFailed  GateStatus = "failed"
	GatePending GateStatus = "pending"
)

// GateResult 阶段门评估结果：就绪度与逐条理由。
// 与单阶段的质量告警不同，阶段门是跨产出物的汇总视图，
// 供人决定是否推进到下一阶段。
type GateResult struct {
	Status    GateStatus `json:"status"`
	Readiness float64    `json:"readiness"`
	Reasons   []string   `json:"reasons,omitempty"`
}

// gateMinArtifacts 评估阶段门所需的最少完成产出物数。
const gateMinArtifacts = 2

// EvaluateGate 基于客户的全部产出物评估阶段就绪度。
//
// 就绪度 = 已完成产出物的平均质量分。产出物不足判 pending，
// 有失败产出物或均分低于门槛判 failed，否则 passed。
func EvaluateGate(artifacts []*artifact.Artifact, threshold float64) GateResult {
	var completed, failed int
	var qualitySum float64

	for _, a := range artifacts {
		switch a.Status {
		case types.ArtifactCompleted:
			completed++
			qualitySum += a.Metadata.QualityScore
		case types.ArtifactFailed:
			failed++
		}
	}

	if completed < gateMinArtifacts {
		return GateResult{
			Status:    GatePending,
			Readiness: 0,
			Reasons:   []string{fmt.Sprintf("only %d of %d required artifacts completed", completed, gateMinArtifacts)},
		}
	}

	readiness := qualitySum / float64(completed)
	var reasons []string
	if failed > 0 {
		reasons = append(reasons, fmt.Sprintf("%d failed artifacts on record", failed))
	}
	if readiness < threshold {
		reasons = append(reasons, fmt.Sprintf("average quality %.2f below threshold %.2f", readiness, threshold))
	}

	status := GatePassed
	if len(reasons) > 0 {
		status = GateFailed
	}
	return GateResult{Status: status, Readiness: readiness, Reasons: reasons}
}
