package relayer

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBackoff(t *testing.T) {
	c := &Coordinator{
		cfg: CoordinatorConfig{
			BackoffBase: time.Second,
			BackoffMax:  8 * time.Second,
		},
		rng: rand.New(rand.NewSource(1)),
	}

	require.Zero(t, c.backoff(0))

	// the delay doubles per attempt and carries up to ±20% jitter
	within := func(attempts uint32, want time.Duration) {
		got := c.backoff(attempts)
		require.GreaterOrEqual(t, got, want*4/5, "attempts=%d", attempts)
		require.LessOrEqual(t, got, want*6/5, "attempts=%d", attempts)
	}
	within(1, time.Second)
	within(2, 2*time.Second)
	within(3, 4*time.Second)
	within(4, 8*time.Second)

	// the cap holds for any attempt count
	for attempts := uint32(5); attempts < 40; attempts++ {
		require.LessOrEqual(t, c.backoff(attempts), 8*time.Second*6/5)
	}
}
