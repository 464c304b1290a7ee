package simulator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClockAdvancesMonotonically(t *testing.T) {
	c := NewClock()
	require.Equal(t, 0.0, c.Now())

	c.AdvanceTo(5)
	require.Equal(t, 5.0, c.Now())

	c.AdvanceTo(3)
	require.Equal(t, 5.0, c.Now(), "time never goes backwards")

	c.AdvanceTo(5)
	require.Equal(t, 5.0, c.Now(), "equal timestamps are allowed")
}
