package protocol

import "fmt"

// 错误码常量
const (
	// 成功
	ErrCodeSuccess = 0

	// 请求错误 (400xx)
	ErrCodeInvalidRequest = 40000 // 无效请求
	ErrCodeInvalidRule    = 40001 // 规则字段非法

	// 资源错误 (404xx)
	ErrCodeNotFound        = 40400 // 资源不存在
	ErrCodeRuleNotFound    = 40401 // 规则不存在
	ErrCodeSessionNotFound = 40402 // 会话不存在

	// 冲突错误 (409xx)
	ErrCodeDuplicateRule = 40901 // 规则 ID 重复

	// 服务错误 (500xx)
	ErrCodePersistence = 50001 // 持久化失败
	ErrCodeInternal    = 50000 // 内部错误
)

// Error 网关协议错误
type Error struct {
	Code    int                    `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Error 实现 error 接口
func (e *Error) Error() string {
	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// NewError 创建新错误
func NewError(code int, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WrapError 包装已有错误
func WrapError(code int, err error) *Error {
	return &Error{
		Code:    code,
		Message: err.Error(),
		Details: make(map[string]interface{}),
	}
}

// WithDetails 添加详细信息
func (e *Error) WithDetails(key string, value interface{}) *Error {
	e.Details[key] = value
	return e
}
