// Package sampler provides the generic polling primitive used by the
// disruption flows: repeatedly invoke a function until it returns the wanted
// value or a wall-clock budget runs out, sleeping between attempts and
// swallowing per-attempt failures.
//
// The deadline is cooperative. It is only checked between attempts, so a
// slow in-flight call is always allowed to finish and its value is still
// yielded; the budget fires on the next attempt instead.
package sampler

import (
	"reflect"
	"runtime"
	"time"

	"github.com/palantir/stacktrace"

	"github.com/red-hat-storage/odf-chaos/pkg/cerrors"
	"github.com/red-hat-storage/odf-chaos/pkg/log"
)

// Func is the sampling function. A nil error marks the attempt as successful
// and its value is handed to the consumer; a non-nil error marks the attempt
// as transient, it is logged and the loop keeps going until the deadline.
type Func[T any] func() (T, error)

// Attempt records a single invocation of the sampling function.
type Attempt[T any] struct {
	Value T
	Err   error
	At    time.Time
}

// Sampler runs one polling session. It is not safe for concurrent use;
// create one sampler per polling loop.
type Sampler[T any] struct {
	timeout time.Duration
	sleep   time.Duration
	fn      Func[T]

	start time.Time
	last  Attempt[T]
}

// New validates the session configuration up front. A sleep longer than the
// timeout could never complete a single attempt-plus-sleep cycle within
// budget, so it is rejected here rather than at iteration time.
func New[T any](timeout, sleep time.Duration, fn Func[T]) (*Sampler[T], error) {
	if fn == nil {
		return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Reason: "no sampling function provided"}
	}
	if timeout <= 0 || sleep <= 0 {
		return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Reason: "timeout and sleep must both be positive"}
	}
	if sleep > timeout {
		return nil, cerrors.Error{
			ErrorCode: cerrors.ErrorTypeConfiguration,
			Reason:    "sleep interval exceeds the timeout, the session could never complete one cycle",
		}
	}
	return &Sampler[T]{timeout: timeout, sleep: sleep, fn: fn}, nil
}

// Next blocks until the sampling function returns successfully and hands back
// that value, or until the deadline passes, in which case it returns the
// typed timeout error. Failed attempts are logged and never surface here.
func (s *Sampler[T]) Next() (T, error) {
	var none T
	if s.start.IsZero() {
		s.start = time.Now()
	} else {
		// gap between the previously yielded value and the next attempt
		time.Sleep(s.sleep)
	}
	for {
		if time.Since(s.start) >= s.timeout {
			return none, cerrors.TimeoutError(s.timeout, s.FuncName())
		}
		attempt := Attempt[T]{At: time.Now()}
		attempt.Value, attempt.Err = s.fn()
		s.last = attempt
		if attempt.Err == nil {
			return attempt.Value, nil
		}
		log.Infof("[Sample]: %v raised during sampling, retrying until the deadline: %v", s.FuncName(), attempt.Err)
		time.Sleep(s.sleep)
	}
}

// WaitForFuncStatus drains the sampler until a yielded value equals expected.
// Its failure mode is a boolean: on timeout it logs which function never
// reached the wanted state and returns false instead of raising.
func (s *Sampler[T]) WaitForFuncStatus(expected T) bool {
	for {
		value, err := s.Next()
		if err != nil {
			log.Errorf("[Sample]: %v did not return the expected value within %v, err: %v", s.FuncName(), s.timeout, err)
			return false
		}
		if reflect.DeepEqual(value, expected) {
			return true
		}
	}
}

// WaitForFuncValue is the raising sibling of WaitForFuncStatus: it returns
// nil once a yielded value equals expected and propagates the typed timeout
// error otherwise. Callers that must fail loudly use this shape.
func (s *Sampler[T]) WaitForFuncValue(expected T) error {
	for {
		value, err := s.Next()
		if err != nil {
			return stacktrace.Propagate(err, "could not get the expected value from %v", s.FuncName())
		}
		if reflect.DeepEqual(value, expected) {
			return nil
		}
	}
}

// Reset restarts the deadline clock, so the same sampler can drive a second
// polling loop. The start time is otherwise fixed once Next has been called.
func (s *Sampler[T]) Reset() {
	s.start = time.Time{}
}

// LastAttempt returns the record of the most recent invocation, successful
// or not.
func (s *Sampler[T]) LastAttempt() Attempt[T] {
	return s.last
}

// FuncName resolves the sampling function's name for log and error messages.
func (s *Sampler[T]) FuncName() string {
	return runtime.FuncForPC(reflect.ValueOf(s.fn).Pointer()).Name()
}
