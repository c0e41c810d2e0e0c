package cerrors

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/palantir/stacktrace"
)

type ErrorType string

const (
	ErrorTypeNonUserFriendly  ErrorType = "NON_USER_FRIENDLY_ERROR"
	ErrorTypeGeneric          ErrorType = "GENERIC_ERROR"
	ErrorTypeTimeout          ErrorType = "TIMEOUT"
	ErrorTypeConfiguration    ErrorType = "CONFIGURATION_ERROR"
	ErrorTypeTargetSelection  ErrorType = "TARGET_SELECTION_ERROR"
	ErrorTypeDaemonSelection  ErrorType = "DAEMON_SELECTION_ERROR"
	ErrorTypeStatusChecks     ErrorType = "STATUS_CHECKS_ERROR"
	ErrorTypeChaosInject      ErrorType = "CHAOS_INJECT_ERROR"
	ErrorTypeCommandExecution ErrorType = "COMMAND_EXECUTION_ERROR"
)

type Error struct {
	Source    string    `json:"source,omitempty"`
	ErrorCode ErrorType `json:"errorCode"`
	Target    string    `json:"target,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

func (e Error) Error() string {
	b, err := json.Marshal(e)
	if err != nil {
		return fmt.Sprintf("[%s]: %s", e.ErrorCode, e.Reason)
	}
	return string(b)
}

func (e Error) UserFriendly() bool {
	return true
}

func (e Error) ErrorType() ErrorType {
	return e.ErrorCode
}

// TimeoutError builds the typed deadline-exhaustion error raised by the
// sampler once its wall-clock budget is spent. It always carries the
// configured timeout so the caller can tell which budget ran out.
func TimeoutError(timeout time.Duration, target string) Error {
	return Error{
		ErrorCode: ErrorTypeTimeout,
		Target:    target,
		Reason:    fmt.Sprintf("timed out after %v", timeout),
	}
}

type userFriendly interface {
	UserFriendly() bool
	ErrorType() ErrorType
}

// IsUserFriendly returns true if err is marked as safe to present to the user
func IsUserFriendly(err error) bool {
	ufe, ok := err.(userFriendly)
	return ok && ufe.UserFriendly()
}

// GetErrorType returns the type of error if the error is user-friendly
func GetErrorType(err error) ErrorType {
	if ufe, ok := err.(userFriendly); ok {
		return ufe.ErrorType()
	}
	return ErrorTypeNonUserFriendly
}

// IsTimeout reports whether err, or the root cause it wraps, is the typed
// timeout error. Transient per-attempt failures never satisfy this check.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	return GetErrorType(stacktrace.RootCause(err)) == ErrorTypeTimeout
}

func GetRootCauseAndErrorCode(err error) (string, ErrorType) {
	rootCause := stacktrace.RootCause(err)
	errorType := GetErrorType(rootCause)
	if !IsUserFriendly(rootCause) {
		return err.Error(), errorType
	}
	return rootCause.Error(), errorType
}
