// Package types 定义跨包共享的基础类型：统一错误码、工作流阶段与状态枚举。
//
// 该包不依赖任何其他内部包，位于依赖图的最底层。
package types
