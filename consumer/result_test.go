package consumer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		r := Success()
		assert.False(t, r.IsFailure())
		assert.NoError(t, r.Err())
		assert.Equal(t, "success", r.String())
	})

	t.Run("failure carries its error", func(t *testing.T) {
		cause := errors.New("downstream unavailable")
		r := Failure(cause)
		assert.True(t, r.IsFailure())
		assert.ErrorIs(t, r.Err(), cause)
		assert.Contains(t, r.String(), "downstream unavailable")
	})

	t.Run("failure without a cause", func(t *testing.T) {
		r := Failure(nil)
		assert.True(t, r.IsFailure())
		assert.NotPanics(t, func() { _ = r.String() })
	})
}
