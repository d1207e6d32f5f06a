package types

import (
	"errors"
	"fmt"
)

// ErrorCode 统一错误码，用于对齐可重试性与上层降级策略。
type ErrorCode string

// 请求生命周期错误码
const (
	ErrInvalidInput     ErrorCode = "INVALID_INPUT"     // 缺少必填字段（如 client_id），不重试
	ErrBudgetExceeded   ErrorCode = "BUDGET_EXCEEDED"   // 预检成本超出上限，不重试
	ErrTransportFailure ErrorCode = "TRANSPORT_FAILURE" // 远端调用失败或响应为空，可重试
	ErrClientNotFound   ErrorCode = "CLIENT_NOT_FOUND"  // 工作流前置条件失败，阶段立即终止
	ErrNotFound         ErrorCode = "NOT_FOUND"         // 资源不存在
	ErrInternal         ErrorCode = "INTERNAL"          // 未分类内部错误
)

// Error 是框架统一的错误类型。
// Retryable 标记指导重试器：只有传输层故障允许重试。
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Retryable bool      `json:"retryable"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError 创建一个带错误码的错误。
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:      code,
		Message:   message,
		Retryable: code == ErrTransportFailure,
	}
}

// NewErrorf 创建一个格式化消息的错误。
func NewErrorf(code ErrorCode, format string, args ...any) *Error {
	return NewError(code, fmt.Sprintf(format, args...))
}

// IsCode 判断错误链中是否包含指定错误码。
func IsCode(err error, code ErrorCode) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Code == code
	}
	return false
}

// IsRetryable 判断错误是否可重试。非 *Error 的未知错误默认可重试，
// 交由重试策略的次数上限兜底。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var te *Error
	if errors.As(err, &te) {
		return te.Retryable
	}
	return true
}
