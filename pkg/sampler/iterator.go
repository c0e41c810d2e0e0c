package sampler

import (
	"time"

	"github.com/red-hat-storage/odf-chaos/pkg/cerrors"
)

// VariadicFunc is the shape accepted by Iterator: the arguments are bound
// once at construction and forwarded on every attempt.
type VariadicFunc[T any] func(args ...interface{}) (T, error)

// Iterator is an ergonomic alternative entry point to Sampler for callers
// holding a function and its arguments separately. The iteration contract
// is identical to Sampler's.
type Iterator[T any] struct {
	sampler *Sampler[T]
}

// NewIterator binds fn and args into a sampling session. A nil fn is a
// construction-time error, same as for Sampler.
func NewIterator[T any](timeout, sleep time.Duration, fn VariadicFunc[T], args ...interface{}) (*Iterator[T], error) {
	if fn == nil {
		return nil, cerrors.Error{ErrorCode: cerrors.ErrorTypeConfiguration, Reason: "no sampling function provided"}
	}
	bound := args
	s, err := New(timeout, sleep, func() (T, error) {
		return fn(bound...)
	})
	if err != nil {
		return nil, err
	}
	return &Iterator[T]{sampler: s}, nil
}

func (it *Iterator[T]) Next() (T, error) {
	return it.sampler.Next()
}

func (it *Iterator[T]) WaitForFuncStatus(expected T) bool {
	return it.sampler.WaitForFuncStatus(expected)
}

func (it *Iterator[T]) WaitForFuncValue(expected T) error {
	return it.sampler.WaitForFuncValue(expected)
}

func (it *Iterator[T]) Reset() {
	it.sampler.Reset()
}
