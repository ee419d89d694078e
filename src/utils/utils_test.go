package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrDefault(t *testing.T) {
	assert.Equal(t, 5432, OrDefault(0, 5432))
	assert.Equal(t, 6543, OrDefault(6543, 5432))
	assert.Equal(t, "gallery", OrDefault("", "gallery"))
}

func TestIntClamp(t *testing.T) {
	assert.Equal(t, 0, IntClamp(0, -3, 10))
	assert.Equal(t, 10, IntClamp(0, 11, 10))
	assert.Equal(t, 4, IntClamp(0, 4, 10))
	assert.Equal(t, 7, IntMax(7, 2))
}

func TestRecoverPanicAsError(t *testing.T) {
	sentinel := errors.New("boom")

	t.Run("error value", func(t *testing.T) {
		f := func() (err error) {
			defer RecoverPanicAsError(&err)
			panic(sentinel)
		}
		assert.ErrorIs(t, f(), sentinel)
	})
	t.Run("non-error value", func(t *testing.T) {
		f := func() (err error) {
			defer RecoverPanicAsError(&err)
			panic("oh no")
		}
		err := f()
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), "oh no")
		}
	})
	t.Run("no panic", func(t *testing.T) {
		f := func() (err error) {
			defer RecoverPanicAsError(&err)
			return nil
		}
		assert.Nil(t, f())
	})
}

func TestSleepContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, SleepContext(ctx, time.Hour), ErrSleepInterrupted)
	assert.Nil(t, SleepContext(context.Background(), time.Millisecond))
}
