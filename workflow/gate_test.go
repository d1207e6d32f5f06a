package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/BaSui01/consultflow/artifact"
	"github.com/BaSui01/consultflow/types"
)

func mkGateArtifact(status types.ArtifactStatus, quality float64) *artifact.Artifact {
	a := artifact.New("c1", "market_research", types.StageDiscovery)
	a.Status = status
	a.Metadata.QualityScore = quality
	return a
}

func TestEvaluateGatePending(t *testing.T) {
	got := EvaluateGate([]*artifact.Artifact{
		mkGateArtifact(types.ArtifactCompleted, 0.9),
	}, 0.7)

	assert.Equal(t, GatePending, got.Status)
	assert.Zero(t, got.Readiness)
	assert.NotEmpty(t, got.Reasons)
}

func TestEvaluateGatePassed(t *testing.T) {
	got := EvaluateGate([]*artifact.Artifact{
		mkGateArtifact(types.ArtifactCompleted, 0.9),
		mkGateArtifact(types.ArtifactCompleted, 0.8),
	}, 0.7)

	assert.Equal(t, GatePassed, got.Status)
	assert.InDelta(t, 0.85, got.Readiness, 1e-9)
	assert.Empty(t, got.Reasons)
}

func TestEvaluateGateFailedLowQuality(t *testing.T) {
	got := EvaluateGate([]*artifact.Artifact{
		mkGateArtifact(types.ArtifactCompleted, 0.5),
		mkGateArtifact(types.ArtifactCompleted, 0.6),
	}, 0.7)

	assert.Equal(t, GateFailed, got.Status)
	assert.InDelta(t, 0.55, got.Readiness, 1e-9)
}

func TestEvaluateGateFailedArtifactOnRecord(t *testing.T) {
	got := EvaluateGate([]*artifact.Artifact{
		mkGateArtifact(types.ArtifactCompleted, 0.9),
		mkGateArtifact(types.ArtifactCompleted, 0.8),
		mkGateArtifact(types.ArtifactFailed, 0),
	}, 0.7)

	assert.Equal(t, GateFailed, got.Status)
	assert.Len(t, got.Reasons, 1)
}

func TestEvaluateGateEmpty(t *testing.T) {
	got := EvaluateGate(nil, 0.7)
	assert.Equal(t, GatePending, got.Status)
}
