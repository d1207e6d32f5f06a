package workflow

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/consultflow/agent"
	"github.com/BaSui01/consultflow/artifact"
	"github.com/BaSui01/consultflow/types"
)

// fakeRunner 可编程的运行时替身：按 agent 类型返回预设质量分或失败，
// 并像真实运行时一样把产出物落库。
type fakeRunner struct {
	store   artifact.Store
	scores  map[string]float64
	fail    map[string]error
	calls   []string
	lastInp agent.Input
}

func (f *fakeRunner) Run(ctx context.Context, agentType string, input agent.Input) (*artifact.Artifact, error) {
	f.calls = append(f.calls, agentType)
	f.lastInp = input
	if err, ok := f.fail[agentType]; ok {
		return nil, err
	}

	a := artifact.New(input.ClientID, agentType, input.Stage)
	a.Status = types.ArtifactCompleted
	a.Structured.Analysis = "analysis from " + agentType
	a.Structured.Insights = []string{"insight one"}
	a.Metadata.QualityScore = f.scores[agentType]
	a.Validation = artifact.Validation{IsValidated: f.scores[agentType] > 0.7, Score: f.scores[agentType]}
	if err := f.store.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

type fakePublisher struct {
	published []string
}

func (f *fakePublisher) PublishDeliverable(ctx context.Context, clientID string, result *StageResult) error {
	f.published = append(f.published, string(result.Deliverable))
	return nil
}

func newTestOrchestrator(t *testing.T, runner *fakeRunner) (*Orchestrator, *MemoryClientStore, *fakePublisher) {
	t.Helper()
	clients := NewMemoryClientStore()
	clients.AddClient("c1")
	publisher := &fakePublisher{}
	o := NewOrchestrator(DefaultConfig(), runner, clients, runner.store, nil, publisher, nil, nil)
	return o, clients, publisher
}

func TestGenerateStageSuccess(t *testing.T) {
	store := artifact.NewMemoryStore()
	runner := &fakeRunner{store: store, scores: map[string]float64{agent.AgentValueProposition: 0.9}}
	o, clients, publisher := newTestOrchestrator(t, runner)

	res, err := o.GenerateStage(context.Background(), "c1", DeliverableValueProposition, StageOptions{})
	require.NoError(t, err)

	assert.Equal(t, 0.9, res.QualityScore)
	assert.True(t, res.Published)
	assert.Equal(t, []string{string(DeliverableValueProposition)}, publisher.published)

	state, err := clients.WorkflowState(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, types.DeliverableCompleted, state[DeliverableValueProposition].Status)
}

func TestGenerateStageClientNotFound(t *testing.T) {
	store := artifact.NewMemoryStore()
	runner := &fakeRunner{store: store, scores: map[string]float64{}}
	o, _, _ := newTestOrchestrator(t, runner)

	_, err := o.GenerateStage(context.Background(), "ghost", DeliverableValueProposition, StageOptions{})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrClientNotFound))
	// 前置校验失败，运行时从未被调用
	assert.Empty(t, runner.calls)
}

func TestGenerateStageUnknownDeliverable(t *testing.T) {
	store := artifact.NewMemoryStore()
	runner := &fakeRunner{store: store}
	o, _, _ := newTestOrchestrator(t, runner)

	_, err := o.GenerateStage(context.Background(), "c1", "pitch-deck", StageOptions{})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrInvalidInput))
}

func TestGenerateStageBelowThresholdProceeds(t *testing.T) {
	store := artifact.NewMemoryStore()
	runner := &fakeRunner{store: store, scores: map[string]float64{agent.AgentValueProposition: 0.4}}
	o, clients, publisher := newTestOrchestrator(t, runner)

	// 质量门槛是咨询式的：低分仍然完成，但不自动发布
	res, err := o.GenerateStage(context.Background(), "c1", DeliverableValueProposition, StageOptions{})
	require.NoError(t, err)
	assert.False(t, res.Published)
	assert.Empty(t, publisher.published)

	state, err := clients.WorkflowState(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, types.DeliverableCompleted, state[DeliverableValueProposition].Status)
}

func TestGenerateStageRunnerFailure(t *testing.T) {
	store := artifact.NewMemoryStore()
	runner := &fakeRunner{
		store: store,
		fail:  map[string]error{agent.AgentValueProposition: types.NewError(types.ErrTransportFailure, "model down")},
	}
	o, clients, _ := newTestOrchestrator(t, runner)

	_, err := o.GenerateStage(context.Background(), "c1", DeliverableValueProposition, StageOptions{})
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrTransportFailure))

	state, stateErr := clients.WorkflowState(context.Background(), "c1")
	require.NoError(t, stateErr)
	assert.Equal(t, types.DeliverableFailed, state[DeliverableValueProposition].Status)
}

func TestGenerateCompleteFramework(t *testing.T) {
	store := artifact.NewMemoryStore()
	runner := &fakeRunner{store: store, scores: map[string]float64{
		agent.AgentValueProposition: 0.9,
		agent.AgentBusinessModel:    0.7,
	}}
	o, _, _ := newTestOrchestrator(t, runner)

	res, err := o.GenerateCompleteFramework(context.Background(), "c1", StageOptions{
		Input: map[string]any{"startup_idea": "b2b analytics"},
	})
	require.NoError(t, err)

	require.Len(t, res.Stages, 2)
	assert.InDelta(t, 0.8, res.AggregateQuality, 1e-9)
	assert.Equal(t, []string{agent.AgentValueProposition, agent.AgentBusinessModel}, runner.calls)

	// 后段输入携带前段的分析与洞察
	vpCtx, ok := runner.lastInp.Data["value_proposition"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, vpCtx["analysis"], agent.AgentValueProposition)
	// 原始输入不被覆盖
	assert.Equal(t, "b2b analytics", runner.lastInp.Data["startup_idea"])
}

func TestCompleteFrameworkStageBFailureKeepsStageA(t *testing.T) {
	store := artifact.NewMemoryStore()
	runner := &fakeRunner{
		store:  store,
		scores: map[string]float64{agent.AgentValueProposition: 0.9},
		fail:   map[string]error{agent.AgentBusinessModel: types.NewError(types.ErrTransportFailure, "model down")},
	}
	o, clients, _ := newTestOrchestrator(t, runner)

	_, err := o.GenerateCompleteFramework(context.Background(), "c1", StageOptions{})
	require.Error(t, err)

	// 复合工作流失败，但前段产出物保持落库可查，无回滚
	state, stateErr := clients.WorkflowState(context.Background(), "c1")
	require.NoError(t, stateErr)
	assert.Equal(t, types.DeliverableCompleted, state[DeliverableValueProposition].Status)
	assert.Equal(t, types.DeliverableFailed, state[DeliverableBusinessModel].Status)

	persisted, listErr := store.ListByClient(context.Background(), "c1", 0)
	require.NoError(t, listErr)
	require.Len(t, persisted, 1)
	assert.Equal(t, agent.AgentValueProposition, persisted[0].AgentType)
	assert.Equal(t, 0.9, persisted[0].Metadata.QualityScore)
}

func TestWorkflowStatus(t *testing.T) {
	store := artifact.NewMemoryStore()
	runner := &fakeRunner{store: store, scores: map[string]float64{
		agent.AgentValueProposition: 0.9,
		agent.AgentBusinessModel:    0.8,
	}}
	o, _, _ := newTestOrchestrator(t, runner)

	_, err := o.GenerateCompleteFramework(context.Background(), "c1", StageOptions{})
	require.NoError(t, err)

	report, err := o.WorkflowStatus(context.Background(), "c1")
	require.NoError(t, err)

	require.Len(t, report.Deliverables, 2)
	for _, d := range report.Deliverables {
		assert.Equal(t, types.DeliverableCompleted, d.Status)
	}
	assert.NotEmpty(t, report.Stages)
	assert.Equal(t, GatePassed, report.Gate.Status)
}

func TestWorkflowStatusUnknownClient(t *testing.T) {
	store := artifact.NewMemoryStore()
	runner := &fakeRunner{store: store}
	o, _, _ := newTestOrchestrator(t, runner)

	_, err := o.WorkflowStatus(context.Background(), "ghost")
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrClientNotFound))
}

func TestAsStagePayload(t *testing.T) {
	p := AsStagePayload(types.NewError(types.ErrClientNotFound, "client c9 not found"))
	assert.Equal(t, string(types.DeliverableFailed), p.Status)
	assert.Equal(t, "client c9 not found", p.Message)
	assert.False(t, p.Timestamp.IsZero())
}
