package structured

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestNormalizeStrictJSON(t *testing.T) {
	n := NewNormalizer(nil)

	raw := `{
		"analysis": "The market is fragmented.",
		"recommendations": ["Focus on SMB", "Partner with integrators"],
		"next_steps": ["Interview 10 prospects"],
		"insights": ["Incumbents ignore the low end"],
		"confidence": 0.92,
		"reasoning": "Based on provided data"
	}`

	res := n.Normalize(raw)
	require.True(t, res.Parsed())
	assert.Equal(t, "The market is fragmented.", res.Content.Analysis)
	assert.Equal(t, []string{"Focus on SMB", "Partner with integrators"}, res.Content.Recommendations)
	assert.Equal(t, 0.92, res.Content.Confidence)
}

func TestNormalizeFencedJSON(t *testing.T) {
	n := NewNormalizer(nil)

	raw := "```json\n{\"analysis\": \"ok\", \"confidence\": 0.7}\n```"
	res := n.Normalize(raw)
	require.True(t, res.Parsed())
	assert.Equal(t, "ok", res.Content.Analysis)
	assert.Equal(t, 0.7, res.Content.Confidence)
}

func TestNormalizeDefaults(t *testing.T) {
	n := NewNormalizer(nil)

	res := n.Normalize(`{"analysis": "partial"}`)
	require.True(t, res.Parsed())
	assert.Equal(t, "partial", res.Content.Analysis)
	assert.Empty(t, res.Content.Recommendations)
	assert.Empty(t, res.Content.NextSteps)
	assert.Empty(t, res.Content.Insights)
	// 缺省置信度
	assert.Equal(t, 0.8, res.Content.Confidence)
	assert.Empty(t, res.Content.Reasoning)
}

func TestNormalizeScalarCoercion(t *testing.T) {
	n := NewNormalizer(nil)

	res := n.Normalize(`{"analysis": "a", "recommendations": "single item", "next_steps": ["", "  do it  "]}`)
	require.True(t, res.Parsed())
	assert.Equal(t, []string{"single item"}, res.Content.Recommendations)
	assert.Equal(t, []string{"do it"}, res.Content.NextSteps)
}

func TestNormalizeFallback(t *testing.T) {
	n := NewNormalizer(nil)

	raw := "Here is my analysis:\n- point one\n- point two\nNot JSON at all."
	res := n.Normalize(raw)
	require.False(t, res.Parsed())
	assert.Equal(t, KindFallback, res.Kind)

	// 原文逐字保留
	assert.Equal(t, raw, res.Content.Analysis)
	assert.Equal(t, FallbackConfidence, res.Content.Confidence)
	assert.Equal(t, "Fallback due to JSON parsing error", res.Content.Reasoning)
	assert.NotEmpty(t, res.Content.Recommendations)
	assert.Equal(t, []string{"point one", "point two"}, res.Content.Insights)
}

func TestNormalizeFallbackBulletCap(t *testing.T) {
	n := NewNormalizer(nil)

	raw := ""
	for i := 0; i < 8; i++ {
		raw += fmt.Sprintf("* bullet %d\n", i)
	}
	res := n.Normalize(raw)
	require.False(t, res.Parsed())
	assert.Len(t, res.Content.Insights, 5)
}

func TestNormalizeEmptyInput(t *testing.T) {
	n := NewNormalizer(nil)

	res := n.Normalize("")
	require.False(t, res.Parsed())
	assert.Equal(t, "", res.Content.Analysis)
	assert.Equal(t, FallbackConfidence, res.Content.Confidence)
}

// 任意输入都必须产出结果，且保底档的原文保全与置信度恒成立。
func TestNormalizeTotalProperty(t *testing.T) {
	n := NewNormalizer(nil)

	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.String().Draw(t, "raw")
		res := n.Normalize(raw)
		if res.Kind == KindFallback {
			assert.Equal(t, raw, res.Content.Analysis)
			assert.Equal(t, FallbackConfidence, res.Content.Confidence)
		}
	})
}
