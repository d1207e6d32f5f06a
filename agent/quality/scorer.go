// Package quality 对结构化输出做启发式质量评估。
//
// 评分是纯函数：同一输入永远得到同一分数，无 IO、无状态。
// 五个维度加权合成，结果恒在 [0,1]。阈值判断留给调用方，
// 评分器只负责出数。
package quality

import (
	"regexp"
	"strings"

	"github.com/BaSui01/consultflow/agent/structured"
)

// 维度权重。合计 1.0。
const (
	weightCompleteness  = 0.30
	weightRelevance     = 0.25
	weightSpecificity   = 0.20
	weightActionability = 0.15
	weightClarity       = 0.10
)

// ContextBonus 使用了历史上下文且分析足够充实时的加分。
const ContextBonus = 0.05

// strategyKeywords 战略咨询领域关键词。命中 5 个即满分。
var strategyKeywords = []string{
	"market", "customer", "revenue", "competitive", "growth",
	"segment", "value proposition", "differentiation", "positioning",
	"unit economics", "retention",
}

// actionVerbs 可执行性动词集合。
var actionVerbs = []string{
	"implement", "launch", "conduct", "build", "create", "develop",
	"interview", "validate", "measure", "test", "analyze", "define",
	"prioritize", "schedule", "contact", "review",
}

var (
	numberPattern    = regexp.MustCompile(`\d+`)
	timeframePattern = regexp.MustCompile(`(?i)\b(day|days|week|weeks|month|months|quarter|quarters|year|years|q[1-4]|deadline|by end of)\b`)

	sentenceSplit = regexp.MustCompile(`[.!?]+`)
)

// Breakdown 各维度得分，便于审计与调参。
type Breakdown struct {
	Completeness  float64 `json:"completeness"`
	Relevance     float64 `json:"relevance"`
	Specificity   float64 `json:"specificity"`
	Actionability float64 `json:"actionability"`
	Clarity       float64 `json:"clarity"`
	Composite     float64 `json:"composite"`
}

// Score 计算合成质量分。
func Score(c structured.Content) float64 {
	return Assess(c).Composite
}

// Assess 计算合成质量分并返回维度明细。
func Assess(c structured.Content) Breakdown {
	b := Breakdown{
		Completeness:  completeness(c),
		Relevance:     relevance(c.Analysis),
		Specificity:   specificity(c.Recommendations),
		Actionability: actionability(c.NextSteps),
		Clarity:       clarity(c.Analysis),
	}
	b.Composite = clamp01(b.Completeness*weightCompleteness +
		b.Relevance*weightRelevance +
		b.Specificity*weightSpecificity +
		b.Actionability*weightActionability +
		b.Clarity*weightClarity)
	return b
}

// WithContextBonus 在使用了历史上下文且分析达到最低篇幅时加分。
func WithContextBonus(composite float64, contextCount int, analysis string) float64 {
	if contextCount > 0 && len(analysis) >= 100 {
		composite += ContextBonus
	}
	return clamp01(composite)
}

// completeness 五个结构字段的非空占比。
func completeness(c structured.Content) float64 {
	total := 5
	filled := 0
	if strings.TrimSpace(c.Analysis) != "" {
		filled++
	}
	if len(c.Recommendations) > 0 {
		filled++
	}
	if len(c.NextSteps) > 0 {
		filled++
	}
	if len(c.Insights) > 0 {
		filled++
	}
	if strings.TrimSpace(c.Reasoning) != "" {
		filled++
	}
	return float64(filled) / float64(total)
}

// relevance 领域关键词命中率，命中 5 个封顶。
func relevance(analysis string) float64 {
	if analysis == "" {
		return 0
	}
	lower := strings.ToLower(analysis)
	hits := 0
	for _, kw := range strategyKeywords {
		if strings.Contains(lower, kw) {
			hits++
		}
	}
	score := float64(hits) / 5.0
	return clamp01(score)
}

// specificity 每条建议中具体标记（数字、时间、动词开头）的密度，
// 单条封顶 1.0，三个标记记满。
func specificity(recommendations []string) float64 {
	if len(recommendations) == 0 {
		return 0
	}
	var sum float64
	for _, rec := range recommendations {
		markers := 0
		if numberPattern.MatchString(rec) {
			markers++
		}
		if timeframePattern.MatchString(rec) {
			markers++
		}
		if startsWithActionVerb(rec) {
			markers++
		}
		sum += clamp01(float64(markers) / 3.0)
	}
	return sum / float64(len(recommendations))
}

// actionability 含动作动词的后续步骤占比。
func actionability(nextSteps []string) float64 {
	if len(nextSteps) == 0 {
		return 0
	}
	actionable := 0
	for _, step := range nextSteps {
		lower := strings.ToLower(step)
		for _, verb := range actionVerbs {
			if strings.Contains(lower, verb) {
				actionable++
				break
			}
		}
	}
	return float64(actionable) / float64(len(nextSteps))
}

// clarity 可读句占比。10–30 词满分，5–50 词半分，其余零分。
func clarity(analysis string) float64 {
	sentences := sentenceSplit.Split(analysis, -1)
	var total int
	var credit float64
	for _, s := range sentences {
		words := len(strings.Fields(s))
		if words == 0 {
			continue
		}
		total++
		switch {
		case words >= 10 && words <= 30:
			credit += 1.0
		case words >= 5 && words <= 50:
			credit += 0.5
		}
	}
	if total == 0 {
		return 0
	}
	return credit / float64(total)
}

func startsWithActionVerb(s string) bool {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return false
	}
	for _, verb := range actionVerbs {
		if fields[0] == verb {
			return true
		}
	}
	return false
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
