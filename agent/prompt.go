package agent

import (
	"fmt"
	"strings"

	"github.com/BaSui01/consultflow/artifact"
)

// 智能体类型。每个类型对应一段固定的系统指令。
const (
	AgentMarketResearch      = "market_research"
	AgentCompetitiveAnalysis = "competitive_analysis"
	AgentValueProposition    = "value_proposition"
	AgentBusinessModel       = "business_model"
	AgentStrategyAdvisor     = "strategy_advisor"
)

var systemPrompts = map[string]string{
	AgentMarketResearch: "You are a market research analyst for early-stage startups. " +
		"Assess market size, segments, growth dynamics and unmet customer needs with concrete evidence.",
	AgentCompetitiveAnalysis: "You are a competitive intelligence analyst. " +
		"Map direct and indirect competitors, their positioning, pricing and defensibility, and identify exploitable gaps.",
	AgentValueProposition: "You are a value proposition strategist. " +
		"Design a sharp value proposition: target customer, pains relieved, gains created and differentiation against alternatives.",
	AgentBusinessModel: "You are a business model designer. " +
		"Define revenue streams, cost structure, key resources and unit economics for a viable business model.",
	AgentStrategyAdvisor: "You are a senior strategy consultant. " +
		"Synthesize prior research into prioritized strategic recommendations with clear trade-offs.",
}

const defaultSystemPrompt = "You are a strategy consultant for early-stage startups. " +
	"Provide rigorous, evidence-backed analysis."

const schemaContract = `Respond with a single JSON object and nothing else, using exactly these fields:
{
  "analysis": "string, your full analysis",
  "recommendations": ["string", ...],
  "next_steps": ["string", ...],
  "insights": ["string", ...],
  "confidence": 0.0,
  "reasoning": "string, how you reached these conclusions"
}`

// contextAnalysisLimit 上下文块中单条分析的截断长度。
const contextAnalysisLimit = 200

// contextInsightLimit 上下文块中单条产出物保留的洞察条数。
const contextInsightLimit = 2

type prompt struct {
	system string
	user   string
}

// buildPrompt 组装复合提示词：系统指令 + 历史上下文块 +
// 业务输入 + 输出 schema 约定。
func buildPrompt(agentType string, input Input, contexts []*artifact.Artifact) prompt {
	system, ok := systemPrompts[agentType]
	if !ok {
		system = defaultSystemPrompt
	}

	var b strings.Builder
	if len(contexts) > 0 {
		b.WriteString("## Previous analysis context\n\n")
		for _, c := range contexts {
			fmt.Fprintf(&b, "### %s (%s)\n%s\n", c.AgentType, c.Stage, truncate(c.Structured.Analysis, contextAnalysisLimit))
			if insights := topInsights(c.Structured.Insights, contextInsightLimit); len(insights) > 0 {
				b.WriteString("Key insights:\n")
				for _, ins := range insights {
					fmt.Fprintf(&b, "- %s\n", ins)
				}
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("## Client input\n\n")
	b.WriteString(marshalInput(input.Data))
	b.WriteString("\n\n## Output format\n\n")
	b.WriteString(schemaContract)

	return prompt{system: system, user: b.String()}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit] + "..."
}

func topInsights(insights []string, limit int) []string {
	if len(insights) <= limit {
		return insights
	}
	return insights[:limit]
}
