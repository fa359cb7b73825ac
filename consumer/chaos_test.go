package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNopChaos(t *testing.T) {
	chaos := NopChaos{}
	assert.False(t, chaos.ShouldNack())
	assert.False(t, chaos.ShouldFail())
	chaos.Delay(context.Background()) // returns immediately
}

func TestProbabilisticChaos(t *testing.T) {
	t.Run("probability one always triggers", func(t *testing.T) {
		chaos := NewProbabilisticChaos(
			WithNackProbability(1.0),
			WithFailureProbability(1.0),
		)
		for i := 0; i < 100; i++ {
			assert.True(t, chaos.ShouldNack())
			assert.True(t, chaos.ShouldFail())
		}
	})

	t.Run("probability zero never triggers", func(t *testing.T) {
		chaos := NewProbabilisticChaos(
			WithNackProbability(0),
			WithFailureProbability(0),
		)
		for i := 0; i < 100; i++ {
			assert.False(t, chaos.ShouldNack())
			assert.False(t, chaos.ShouldFail())
		}
	})

	t.Run("unset knobs never trigger", func(t *testing.T) {
		chaos := NewProbabilisticChaos()
		for i := 0; i < 100; i++ {
			assert.False(t, chaos.ShouldNack())
			assert.False(t, chaos.ShouldFail())
		}
	})

	t.Run("threshold compares against the random draw", func(t *testing.T) {
		chaos := NewProbabilisticChaos(
			WithNackProbability(0.5),
			withRandFloat(func() float64 { return 0.4 }),
		)
		assert.True(t, chaos.ShouldNack())

		chaos = NewProbabilisticChaos(
			WithNackProbability(0.5),
			withRandFloat(func() float64 { return 0.6 }),
		)
		assert.False(t, chaos.ShouldNack())
	})

	t.Run("environment configures the knobs", func(t *testing.T) {
		t.Setenv(EnvChaosNackPercentage, "1.0")
		t.Setenv(EnvChaosFailurePercentage, "1.0")
		t.Setenv(EnvChaosDelaySeconds, "0.25")

		chaos := NewProbabilisticChaos()
		assert.True(t, chaos.ShouldNack())
		assert.True(t, chaos.ShouldFail())
		assert.Equal(t, 250*time.Millisecond, chaos.delay)
	})

	t.Run("malformed environment values stay disabled", func(t *testing.T) {
		t.Setenv(EnvChaosNackPercentage, "always")
		chaos := NewProbabilisticChaos()
		assert.False(t, chaos.ShouldNack())
	})

	t.Run("delay honors context cancellation", func(t *testing.T) {
		chaos := NewProbabilisticChaos(WithHandlerDelay(time.Minute))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		start := time.Now()
		chaos.Delay(ctx)
		assert.Less(t, time.Since(start), time.Second)
	})
}
