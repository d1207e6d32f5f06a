package quality

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/BaSui01/consultflow/agent/structured"
)

func fullContent() structured.Content {
	return structured.Content{
		Analysis: "The market segment shows strong growth and clear customer demand for this value proposition. " +
			"Revenue potential depends on competitive positioning and retention in the core segment. " +
			"Differentiation against incumbents requires focused unit economics work over the next quarter.",
		Recommendations: []string{
			"Launch 3 pilot programs within 2 weeks",
			"Conduct 15 customer interviews by end of month",
		},
		NextSteps: []string{
			"Interview 10 prospects",
			"Validate pricing with a landing page test",
		},
		Insights:   []string{"Incumbents ignore the low end of the market"},
		Confidence: 0.9,
		Reasoning:  "Derived from client intake and prior research",
	}
}

func TestAssessFullContent(t *testing.T) {
	b := Assess(fullContent())

	assert.Equal(t, 1.0, b.Completeness)
	assert.Equal(t, 1.0, b.Relevance)
	assert.Greater(t, b.Specificity, 0.8)
	assert.Equal(t, 1.0, b.Actionability)
	assert.Greater(t, b.Composite, 0.85)
	assert.LessOrEqual(t, b.Composite, 1.0)
}

func TestAssessEmptyContent(t *testing.T) {
	b := Assess(structured.Content{})
	assert.Equal(t, 0.0, b.Composite)
}

func TestCompletenessPartial(t *testing.T) {
	c := structured.Content{
		Analysis:        "some analysis",
		Recommendations: []string{"do a thing"},
	}
	b := Assess(c)
	assert.InDelta(t, 0.4, b.Completeness, 1e-9)
}

func TestRelevanceCapsAtFiveKeywords(t *testing.T) {
	// 恰好 5 个关键词即满分，更多不再加分
	five := "market customer revenue growth segment"
	all := five + " competitive positioning retention differentiation value proposition unit economics"
	assert.Equal(t, 1.0, relevance(five))
	assert.Equal(t, 1.0, relevance(all))
	assert.InDelta(t, 0.4, relevance("market customer plans"), 1e-9)
}

func TestSpecificityMarkers(t *testing.T) {
	// 数字 + 时间 + 动词开头 = 三个标记，满分
	assert.Equal(t, 1.0, specificity([]string{"Launch 3 pilots within 2 weeks"}))
	// 无任何标记
	assert.Equal(t, 0.0, specificity([]string{"something vague"}))
	// 仅一个标记
	assert.InDelta(t, 1.0/3.0, specificity([]string{"there are 12 options"}), 1e-9)
}

func TestActionabilityFraction(t *testing.T) {
	steps := []string{
		"Interview 10 prospects",
		"wait and see",
	}
	assert.InDelta(t, 0.5, actionability(steps), 1e-9)
}

func TestClarityBands(t *testing.T) {
	// 15 词：满分
	readable := strings.Repeat("word ", 15)
	assert.Equal(t, 1.0, clarity(readable))

	// 7 词：半分
	short := strings.Repeat("word ", 7)
	assert.Equal(t, 0.5, clarity(short))

	// 60 词：零分
	long := strings.Repeat("word ", 60)
	assert.Equal(t, 0.0, clarity(long))
}

func TestWithContextBonus(t *testing.T) {
	longAnalysis := strings.Repeat("a", 120)

	assert.InDelta(t, 0.75, WithContextBonus(0.70, 3, longAnalysis), 1e-9)
	// 未使用上下文不加分
	assert.InDelta(t, 0.70, WithContextBonus(0.70, 0, longAnalysis), 1e-9)
	// 分析过短不加分
	assert.InDelta(t, 0.70, WithContextBonus(0.70, 3, "short"), 1e-9)
	// 加分后仍不越界
	assert.Equal(t, 1.0, WithContextBonus(0.98, 3, longAnalysis))
}

// 评分是纯函数且恒在 [0,1]。
func TestScoreProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		c := structured.Content{
			Analysis:        rapid.String().Draw(t, "analysis"),
			Recommendations: rapid.SliceOfN(rapid.String(), 0, 6).Draw(t, "recs"),
			NextSteps:       rapid.SliceOfN(rapid.String(), 0, 6).Draw(t, "steps"),
			Insights:        rapid.SliceOfN(rapid.String(), 0, 6).Draw(t, "insights"),
			Reasoning:       rapid.String().Draw(t, "reasoning"),
		}

		first := Score(c)
		second := Score(c)
		assert.Equal(t, first, second)
		assert.GreaterOrEqual(t, first, 0.0)
		assert.LessOrEqual(t, first, 1.0)
	})
}
