package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/consultflow/types"
	"github.com/BaSui01/consultflow/workflow"
)

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	m := NewManager(Config{Addr: mr.Addr(), TTL: types.Duration(time.Hour)}, nil, nil)
	t.Cleanup(func() { m.Close() })
	return m, mr
}

func TestPublishAndGetDeliverable(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	result := &workflow.StageResult{
		Deliverable:  workflow.DeliverableValueProposition,
		ArtifactID:   "a1",
		QualityScore: 0.85,
		Published:    true,
		CompletedAt:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, m.PublishDeliverable(ctx, "c1", result))

	got, err := m.GetDeliverable(ctx, "c1", workflow.DeliverableValueProposition)
	require.NoError(t, err)
	assert.Equal(t, result.ArtifactID, got.ArtifactID)
	assert.Equal(t, result.QualityScore, got.QualityScore)
	assert.True(t, got.Published)
}

func TestGetDeliverableMiss(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.GetDeliverable(context.Background(), "c1", workflow.DeliverableBusinessModel)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestPublishRespectsTTL(t *testing.T) {
	ctx := context.Background()
	m, mr := newTestManager(t)

	result := &workflow.StageResult{Deliverable: workflow.DeliverableValueProposition, ArtifactID: "a1"}
	require.NoError(t, m.PublishDeliverable(ctx, "c1", result))

	mr.FastForward(2 * time.Hour)

	_, err := m.GetDeliverable(ctx, "c1", workflow.DeliverableValueProposition)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestInvalidate(t *testing.T) {
	ctx := context.Background()
	m, _ := newTestManager(t)

	result := &workflow.StageResult{Deliverable: workflow.DeliverableValueProposition, ArtifactID: "a1"}
	require.NoError(t, m.PublishDeliverable(ctx, "c1", result))
	require.NoError(t, m.Invalidate(ctx, "c1", workflow.DeliverableValueProposition))

	_, err := m.GetDeliverable(ctx, "c1", workflow.DeliverableValueProposition)
	assert.ErrorIs(t, err, ErrMiss)
}
