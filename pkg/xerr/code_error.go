package xerr

import "fmt"

// CodeError 自定义错误结构
type CodeError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error 实现 error 接口
func (e *CodeError) Error() string {
	return fmt.Sprintf("Code: %d, Message: %s", e.Code, e.Message)
}

// New 创建新的 CodeError
func New(code int, msg string) *CodeError {
	return &CodeError{Code: code, Message: msg}
}

// 常用通用错误码
const (
	OK                  = 200
	BadRequest          = 400
	Unauthorized        = 401
	Forbidden           = 403
	NotFound            = 404
	TooManyRequests     = 429
	InternalServerError = 500
)

// 常用预定义错误
var (
	ErrSuccess     = New(OK, "Success")
	ErrServerError = New(InternalServerError, "系统错误，请联系工作人员")
	ErrParam       = New(BadRequest, "参数错误")

	// 检索管线错误分类：空输入/参数错误属于调用方错误；
	// 向量化失败属于服务端错误，摄取路径必须把它暴露出去
	ErrEmptyInput        = New(BadRequest, "input cannot be empty")
	ErrInvalidParameters = New(BadRequest, "invalid chunk parameters")
	ErrEmbeddingFailure  = New(InternalServerError, "failed to generate embedding")

	ErrAPIKeyRequired  = New(Unauthorized, "API key required")
	ErrInvalidAPIKey   = New(Unauthorized, "Invalid API key")
	ErrClientSuspended = New(Forbidden, "Client account is suspended. Please contact support for activation.")
	ErrClientMismatch  = New(Forbidden, "Client ID mismatch")
	ErrLimitExceeded   = New(TooManyRequests, "Usage limit exceeded")
	ErrClientNotFound  = New(NotFound, "client not found")
)
