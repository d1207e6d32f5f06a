// Package structured 将模型的自由文本输出规约为统一的结构化内容。
//
// 解析分两档：严格 JSON 解析成功则按字段补全缺省值；失败则降级为
// 保底结构，原文完整保留在 analysis 中，置信度固定为 0.3。
// 两档结果都带有来源标记，调用方据此决定质量评估与告警策略。
package structured

import (
	"encoding/json"
	"strings"

	"go.uber.org/zap"
)

// Kind 标记规约结果的来源。
type Kind string

const (
	// KindParsed 严格 JSON 解析成功
	KindParsed Kind = "parsed"
	// KindFallback JSON 解析失败后的保底结构
	KindFallback Kind = "fallback"
)

// FallbackConfidence 保底结构的固定置信度。
const FallbackConfidence = 0.3

// Content 规约后的结构化内容。
type Content struct {
	Analysis        string   `json:"analysis"`
	Recommendations []string `json:"recommendations"`
	NextSteps       []string `json:"next_steps"`
	Insights        []string `json:"insights"`
	Confidence      float64  `json:"confidence"`
	Reasoning       string   `json:"reasoning"`
}

// Result 带来源标记的规约结果。
type Result struct {
	Kind    Kind
	Content Content
}

// Parsed 报告结果是否来自严格解析。
func (r Result) Parsed() bool { return r.Kind == KindParsed }

// Normalizer 输出规约器。零值可用。
type Normalizer struct {
	logger *zap.Logger
}

// NewNormalizer 创建规约器。logger 为 nil 时使用 Nop。
func NewNormalizer(logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{logger: logger.With(zap.String("component", "normalizer"))}
}

// rawContent 宽容的中间形态：列表字段允许出现标量。
type rawContent struct {
	Analysis        string          `json:"analysis"`
	Recommendations json.RawMessage `json:"recommendations"`
	NextSteps       json.RawMessage `json:"next_steps"`
	Insights        json.RawMessage `json:"insights"`
	Confidence      *float64        `json:"confidence"`
	Reasoning       string          `json:"reasoning"`
}

// Normalize 规约一段模型输出。任何输入都有结果，不返回错误。
func (n *Normalizer) Normalize(raw string) Result {
	stripped := stripFences(raw)

	var rc rawContent
	if err := json.Unmarshal([]byte(stripped), &rc); err != nil {
		n.logger.Warn("structured parse failed, using fallback",
			zap.Error(err),
			zap.Int("raw_len", len(raw)))
		return Result{Kind: KindFallback, Content: fallback(raw)}
	}

	content := Content{
		Analysis:        rc.Analysis,
		Recommendations: coerceList(rc.Recommendations),
		NextSteps:       coerceList(rc.NextSteps),
		Insights:        coerceList(rc.Insights),
		Confidence:      0.8,
		Reasoning:       rc.Reasoning,
	}
	if rc.Confidence != nil {
		content.Confidence = *rc.Confidence
	}
	return Result{Kind: KindParsed, Content: content}
}

// fallback 构造保底结构：原文逐字保留，标记需人工复核。
// 项目符号行被抢救为洞察，避免全损。
func fallback(raw string) Content {
	return Content{
		Analysis:        raw,
		Recommendations: []string{"Review raw output manually"},
		NextSteps:       []string{"Retry with improved prompt"},
		Insights:        extractBullets(raw),
		Confidence:      FallbackConfidence,
		Reasoning:       "Fallback due to JSON parsing error",
	}
}

// stripFences 去除 ```json ... ``` 代码围栏。
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		// 丢弃围栏行上的语言标记
		first := strings.TrimSpace(s[:idx])
		if first == "" || isLangTag(first) {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func isLangTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') {
			return false
		}
	}
	return len(s) <= 12
}

// coerceList 容忍三种形态：缺失、字符串标量、字符串数组。
func coerceList(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return []string{}
	}

	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		out := make([]string, 0, len(list))
		for _, v := range list {
			if v = strings.TrimSpace(v); v != "" {
				out = append(out, v)
			}
		}
		return out
	}

	var scalar string
	if err := json.Unmarshal(raw, &scalar); err == nil {
		if scalar = strings.TrimSpace(scalar); scalar != "" {
			return []string{scalar}
		}
	}
	return []string{}
}

// extractBullets 从自由文本中抽取项目符号行，最多保留 5 条。
func extractBullets(raw string) []string {
	out := []string{}
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		var item string
		switch {
		case strings.HasPrefix(line, "- "):
			item = line[2:]
		case strings.HasPrefix(line, "* "):
			item = line[2:]
		case strings.HasPrefix(line, "• "):
			item = strings.TrimPrefix(line, "• ")
		}
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
			if len(out) == 5 {
				break
			}
		}
	}
	return out
}
