package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for the domain layer.
var (
	ErrNotFound      = fmt.Errorf("not found")
	ErrDuplicate     = fmt.Errorf("duplicate")
	ErrInvalidInput  = fmt.Errorf("invalid input")
	ErrProviderError = fmt.Errorf("provider error")

	ErrClientNotFound  = fmt.Errorf("llm client not found")
	ErrToolNotFound    = fmt.Errorf("tool not found")
	ErrAgentNotFound   = fmt.Errorf("agent not found")
	ErrMaxIterations   = fmt.Errorf("maximum tool iterations reached")
	ErrSessionNotFound = fmt.Errorf("session not found")
	ErrHandoffDepth    = fmt.Errorf("handoff depth limit reached")

	// Resilience errors mapped from vendor HTTP responses.
	ErrContextOverflow = fmt.Errorf("context window exceeded")
	ErrRateLimit       = fmt.Errorf("rate limit exceeded")
	ErrAuthInvalid     = fmt.Errorf("authentication failed")

	// NL-to-SQL errors.
	ErrSQLNotReadOnly = fmt.Errorf("statement is not read-only")
	ErrSQLExtract     = fmt.Errorf("no sql statement in model reply")
)

// DomainError wraps a sentinel error with context.
type DomainError struct {
	Op     string // operation name (e.g., "Registry.Get")
	Err    error  // underlying sentinel or wrapped error
	Detail string // human-readable detail
}

func (e *DomainError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Err)
}

func (e *DomainError) Unwrap() error { return e.Err }

// NewDomainError creates a new DomainError.
func NewDomainError(op string, err error, detail string) *DomainError {
	return &DomainError{Op: op, Err: err, Detail: detail}
}

// WrapOp adds operation context to an error using fmt.Errorf wrapping.
// Returns nil if err is nil, enabling idiomatic use: return domain.WrapOp("op", err)
func WrapOp(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", op, err)
}

// IsRetryableError reports whether err is a transient error that may succeed
// on retry. The core loop never retries; failover and breaker decorators use
// this to decide whether a fallback is worth attempting.
func IsRetryableError(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrProviderError)
}

// ErrorCode is a machine-parseable error category for monitoring.
type ErrorCode string

const (
	CodeUnknown         ErrorCode = "UNKNOWN"
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeDuplicate       ErrorCode = "DUPLICATE"
	CodeInvalidInput    ErrorCode = "INVALID_INPUT"
	CodeProviderError   ErrorCode = "PROVIDER_ERROR"
	CodeClientNotFound  ErrorCode = "CLIENT_NOT_FOUND"
	CodeToolNotFound    ErrorCode = "TOOL_NOT_FOUND"
	CodeAgentNotFound   ErrorCode = "AGENT_NOT_FOUND"
	CodeMaxIterations   ErrorCode = "MAX_ITERATIONS"
	CodeSessionNotFound ErrorCode = "SESSION_NOT_FOUND"
	CodeHandoffDepth    ErrorCode = "HANDOFF_DEPTH"
	CodeContextOverflow ErrorCode = "CONTEXT_OVERFLOW"
	CodeRateLimit       ErrorCode = "RATE_LIMIT"
	CodeAuthInvalid     ErrorCode = "AUTH_INVALID"
	CodeSQLNotReadOnly  ErrorCode = "SQL_NOT_READ_ONLY"
	CodeSQLExtract      ErrorCode = "SQL_EXTRACT"
)

// errorCodeMap maps sentinel errors to their machine-parseable codes.
var errorCodeMap = map[error]ErrorCode{
	ErrNotFound:        CodeNotFound,
	ErrDuplicate:       CodeDuplicate,
	ErrInvalidInput:    CodeInvalidInput,
	ErrProviderError:   CodeProviderError,
	ErrClientNotFound:  CodeClientNotFound,
	ErrToolNotFound:    CodeToolNotFound,
	ErrAgentNotFound:   CodeAgentNotFound,
	ErrMaxIterations:   CodeMaxIterations,
	ErrSessionNotFound: CodeSessionNotFound,
	ErrHandoffDepth:    CodeHandoffDepth,
	ErrContextOverflow: CodeContextOverflow,
	ErrRateLimit:       CodeRateLimit,
	ErrAuthInvalid:     CodeAuthInvalid,
	ErrSQLNotReadOnly:  CodeSQLNotReadOnly,
	ErrSQLExtract:      CodeSQLExtract,
}

// ErrorCodeOf returns the machine-parseable error code for the given error.
// It unwraps DomainError and uses errors.Is to match sentinel errors.
// Returns CodeUnknown if no matching sentinel is found.
func ErrorCodeOf(err error) ErrorCode {
	if err == nil {
		return CodeUnknown
	}

	if code, ok := errorCodeMap[err]; ok {
		return code
	}

	var de *DomainError
	if errors.As(err, &de) {
		if code, ok := errorCodeMap[de.Err]; ok {
			return code
		}
	}

	for sentinel, code := range errorCodeMap {
		if errors.Is(err, sentinel) {
			return code
		}
	}

	return CodeUnknown
}
