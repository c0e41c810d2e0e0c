package sampler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/red-hat-storage/odf-chaos/pkg/cerrors"
)

func TestNew_SleepGreaterThanTimeout(t *testing.T) {
	calls := 0
	fn := func() (int, error) {
		calls++
		return 1, nil
	}

	s, err := New(10*time.Millisecond, 20*time.Millisecond, fn)
	require.Error(t, err)
	assert.Nil(t, s)
	assert.Equal(t, cerrors.ErrorTypeConfiguration, cerrors.GetErrorType(err))
	assert.Equal(t, 0, calls, "the sampling function must not run at construction time")
}

func TestNew_NilFunction(t *testing.T) {
	s, err := New[int](time.Second, time.Second, nil)
	require.Error(t, err)
	assert.Nil(t, s)

	it, err := NewIterator[int](time.Second, time.Second, nil)
	require.Error(t, err)
	assert.Nil(t, it)
}

func TestNext_SleepEqualsTimeout(t *testing.T) {
	calls := 0
	fn := func() (string, error) {
		calls++
		return "ok", nil
	}

	s, err := New(50*time.Millisecond, 50*time.Millisecond, fn)
	require.NoError(t, err)

	value, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, "ok", value)

	_, err = s.Next()
	require.Error(t, err)
	assert.True(t, cerrors.IsTimeout(err))
	assert.Equal(t, 1, calls, "one full cycle fits exactly, no second attempt expected")
}

func TestNext_YieldCount(t *testing.T) {
	fn := func() (int, error) {
		return 1, nil
	}

	s, err := New(2*time.Second, 500*time.Millisecond, fn)
	require.NoError(t, err)

	var values []int
	for {
		value, err := s.Next()
		if err != nil {
			assert.True(t, cerrors.IsTimeout(err))
			break
		}
		values = append(values, value)
	}
	assert.Equal(t, []int{1, 1, 1, 1}, values)
}

func TestNext_AlwaysFailingFunction(t *testing.T) {
	sampleErr := errors.New("api server hiccup")
	calls := 0
	fn := func() (int, error) {
		calls++
		return 0, sampleErr
	}

	s, err := New(100*time.Millisecond, 20*time.Millisecond, fn)
	require.NoError(t, err)

	_, err = s.Next()
	require.Error(t, err)
	assert.True(t, cerrors.IsTimeout(err), "the session must end in the typed timeout error, not the attempt's own error")
	assert.NotErrorIs(t, err, sampleErr)
	assert.Greater(t, calls, 1, "attempts must continue until the deadline")
}

func TestNext_SlowCallIsNotInterrupted(t *testing.T) {
	fn := func() (int, error) {
		time.Sleep(120 * time.Millisecond)
		return 7, nil
	}

	s, err := New(50*time.Millisecond, 25*time.Millisecond, fn)
	require.NoError(t, err)

	// the in-flight call overruns the whole budget but must still be
	// trusted once it returns
	value, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, 7, value)

	_, err = s.Next()
	require.Error(t, err)
	assert.True(t, cerrors.IsTimeout(err))
}

func TestWaitForFuncStatus(t *testing.T) {
	count := 0
	fn := func() (int, error) {
		count++
		return count, nil
	}

	s, err := New(2*time.Second, 10*time.Millisecond, fn)
	require.NoError(t, err)
	assert.True(t, s.WaitForFuncStatus(3))
	assert.Equal(t, 3, count)

	s, err = New(100*time.Millisecond, 10*time.Millisecond, fn)
	require.NoError(t, err)
	assert.False(t, s.WaitForFuncStatus(10000), "a missed deadline converts to false, never to an error")
}

func TestWaitForFuncValue(t *testing.T) {
	fn := func() (bool, error) {
		return false, nil
	}

	s, err := New(60*time.Millisecond, 20*time.Millisecond, fn)
	require.NoError(t, err)

	err = s.WaitForFuncValue(true)
	require.Error(t, err)
	assert.True(t, cerrors.IsTimeout(err))
}

func TestIterator_MatchesManualBinding(t *testing.T) {
	variadic := func(args ...interface{}) (int, error) {
		total := 0
		for _, arg := range args {
			total += arg.(int)
		}
		return total, nil
	}

	it, err := NewIterator(time.Second, 200*time.Millisecond, variadic, 2, 3, 5)
	require.NoError(t, err)

	bound := func() (int, error) {
		return variadic(2, 3, 5)
	}
	s, err := New(time.Second, 200*time.Millisecond, bound)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		fromIterator, err := it.Next()
		require.NoError(t, err)
		fromSampler, err := s.Next()
		require.NoError(t, err)
		assert.Equal(t, fromSampler, fromIterator)
	}
}

func TestReset_RestartsDeadlineClock(t *testing.T) {
	fn := func() (int, error) {
		return 42, nil
	}

	s, err := New(50*time.Millisecond, 50*time.Millisecond, fn)
	require.NoError(t, err)

	_, err = s.Next()
	require.NoError(t, err)
	_, err = s.Next()
	require.Error(t, err)

	s.Reset()
	value, err := s.Next()
	require.NoError(t, err)
	assert.Equal(t, 42, value)
}

func TestLastAttempt(t *testing.T) {
	fn := func() (int, error) {
		return 9, nil
	}

	s, err := New(time.Second, 100*time.Millisecond, fn)
	require.NoError(t, err)

	_, err = s.Next()
	require.NoError(t, err)

	last := s.LastAttempt()
	assert.Equal(t, 9, last.Value)
	assert.NoError(t, last.Err)
	assert.False(t, last.At.IsZero())
}
