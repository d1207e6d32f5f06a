// Package llm 定义统一的远端模型适配接口与请求/响应线格式。
//
// 远端服务被视为外部协作方：限流、偶发失败、按 OpenAI 兼容格式交互。
// 具体 HTTP 适配见 llm/providers/openaicompat；重试策略见 llm/retry；
// 成本预检见 llm/budget。
package llm
