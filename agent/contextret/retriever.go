// Package contextret 为智能体调用检索历史产出物作为上下文。
//
// 相关性分三档：同阶段最相关，基础阶段（前两个阶段）次之，
// 其余垫底。同档内最新优先。检索失败不阻断调用，
// 上下文是增强而非正确性前提。
package contextret

import (
	"context"
	"sort"

	"go.uber.org/zap"

	"github.com/BaSui01/consultflow/artifact"
	"github.com/BaSui01/consultflow/types"
)

// MaxContextArtifacts 单次调用注入的上下文产出物上限。
const MaxContextArtifacts = 5

// 相关性档位
const (
	tierSameStage    = 3
	tierFoundational = 2
	tierOther        = 1
)

// Retriever 历史产出物检索器。
type Retriever struct {
	store  artifact.Store
	logger *zap.Logger
}

// NewRetriever 创建检索器。logger 为 nil 时使用 Nop。
func NewRetriever(store artifact.Store, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retriever{
		store:  store,
		logger: logger.With(zap.String("component", "context_retriever")),
	}
}

// Fetch 返回按相关性排序的历史产出物，至多 MaxContextArtifacts 条。
// 查询失败返回空列表并记录告警，不向上传播错误。
func (r *Retriever) Fetch(ctx context.Context, clientID, agentType string, stage types.Stage) []*artifact.Artifact {
	prior, err := r.store.ListByClient(ctx, clientID, 0)
	if err != nil {
		r.logger.Warn("context retrieval failed, proceeding without context",
			zap.String("client_id", clientID),
			zap.String("agent_type", agentType),
			zap.Error(err))
		return nil
	}

	ranked := make([]*artifact.Artifact, 0, len(prior))
	for _, a := range prior {
		// 只有成功完成的产出物才有上下文价值
		if a.Completed() {
			ranked = append(ranked, a)
		}
	}

	// ListByClient 已按最新优先返回，稳定排序保住同档内的时间序
	sort.SliceStable(ranked, func(i, j int) bool {
		return relevanceTier(ranked[i].Stage, stage) > relevanceTier(ranked[j].Stage, stage)
	})

	if len(ranked) > MaxContextArtifacts {
		ranked = ranked[:MaxContextArtifacts]
	}

	r.logger.Debug("context retrieved",
		zap.String("client_id", clientID),
		zap.String("stage", string(stage)),
		zap.Int("count", len(ranked)))
	return ranked
}

func relevanceTier(artifactStage, requestingStage types.Stage) int {
	switch {
	case artifactStage == requestingStage:
		return tierSameStage
	case artifactStage.Foundational():
		return tierFoundational
	default:
		return tierOther
	}
}
