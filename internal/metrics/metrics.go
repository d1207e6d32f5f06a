// Package metrics 汇集管线的 Prometheus 指标。
//
// 指标通过显式 Registerer 注册而非默认全局注册表，
// 测试里可以为每个用例建独立注册表，避免重复注册冲突。
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector 管线指标集合。各组件注入使用，nil 安全由 Nop 提供。
type Collector struct {
	AgentRuns     *prometheus.CounterVec
	AgentDuration *prometheus.HistogramVec
	AgentTokens   *prometheus.CounterVec
	AgentCost     *prometheus.CounterVec
	QualityScore  *prometheus.HistogramVec

	WorkflowStages *prometheus.CounterVec
	BudgetRejects  prometheus.Counter
	FallbackParses prometheus.Counter

	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter
}

// New 在给定注册表上创建并注册全部指标。
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		AgentRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultflow",
			Subsystem: "agent",
			Name:      "runs_total",
			Help:      "Agent executions by agent type and outcome.",
		}, []string{"agent_type", "outcome"}),

		AgentDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "consultflow",
			Subsystem: "agent",
			Name:      "run_duration_seconds",
			Help:      "Wall-clock duration of agent executions.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"agent_type"}),

		AgentTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultflow",
			Subsystem: "agent",
			Name:      "tokens_total",
			Help:      "Tokens consumed by agent executions.",
		}, []string{"agent_type"}),

		AgentCost: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultflow",
			Subsystem: "agent",
			Name:      "cost_usd_total",
			Help:      "Estimated spend in USD by agent type.",
		}, []string{"agent_type"}),

		QualityScore: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "consultflow",
			Subsystem: "agent",
			Name:      "quality_score",
			Help:      "Composite quality score distribution.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}, []string{"agent_type"}),

		WorkflowStages: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "consultflow",
			Subsystem: "workflow",
			Name:      "stages_total",
			Help:      "Workflow stage executions by deliverable, stage and outcome.",
		}, []string{"deliverable", "stage", "outcome"}),

		BudgetRejects: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "consultflow",
			Subsystem: "budget",
			Name:      "rejections_total",
			Help:      "Requests rejected by the pre-flight cost check.",
		}),

		FallbackParses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "consultflow",
			Subsystem: "agent",
			Name:      "fallback_parses_total",
			Help:      "Model responses that failed strict JSON parsing.",
		}),

		CacheHits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "consultflow",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Deliverable cache hits.",
		}),

		CacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "consultflow",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Deliverable cache misses.",
		}),
	}
}

// Nop 返回挂在独立注册表上的收集器，用于测试和无监控部署。
func Nop() *Collector {
	return New(prometheus.NewRegistry())
}
