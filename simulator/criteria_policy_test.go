package simulator

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCriteriaEvictsHighestScoreFirst(t *testing.T) {
	clock, storage, ssd, hdd := twoTierSetup(100)
	NewCriteriaPolicy(ssd, storage, map[string]float64{"a": 100, "b": 100})

	// same size, same per-user footprint: only lifetime progress differs,
	// and a (created earlier) has the larger C1 at t=1.
	_, err := ssd.CreateFile(0, "a", 60, "u1")
	require.NoError(t, err)
	clock.AdvanceTo(1)
	_, err = ssd.CreateFile(1, "b", 60, "u2")
	require.NoError(t, err)

	require.False(t, ssd.HasFile("a"), "a has the higher composite score")
	require.True(t, hdd.HasFile("a"))
	require.True(t, ssd.HasFile("b"))
}

func TestCriteriaSizePenalty(t *testing.T) {
	clock, storage, ssd, hdd := twoTierSetup(1000)
	p := NewCriteriaPolicy(ssd, storage, map[string]float64{"big": 1e9, "small": 1e9})
	// isolate the size criterion
	p.SetWeights(CriteriaWeights{Size: 1})

	_, err := ssd.CreateFile(0, "small", 100, "u1")
	require.NoError(t, err)
	clock.AdvanceTo(1)
	_, err = ssd.CreateFile(1, "big", 850, "u2")
	require.NoError(t, err)

	require.False(t, ssd.HasFile("big"), "bigger files score higher on the size penalty")
	require.True(t, hdd.HasFile("big"))
	require.True(t, ssd.HasFile("small"))
}

func TestCriteriaUserFootprintEquity(t *testing.T) {
	clock, storage, ssd, hdd := twoTierSetup(1000)
	p := NewCriteriaPolicy(ssd, storage, map[string]float64{"h1": 1e9, "h2": 1e9, "l1": 1e9})
	// isolate the whole-run user footprint criterion
	p.SetWeights(CriteriaWeights{UserFootprint: 1})

	_, err := ssd.CreateFile(0, "h1", 300, "heavy")
	require.NoError(t, err)
	_, err = ssd.CreateFile(1, "h2", 300, "heavy")
	require.NoError(t, err)
	clock.AdvanceTo(2)
	_, err = ssd.CreateFile(2, "l1", 300, "light")
	require.NoError(t, err)

	// heavy's 600-byte footprint outranks light's 300: both of heavy's
	// files score higher than l1, and draining to the 750-byte low-water
	// mark takes exactly one eviction.
	require.Equal(t, 1, hdd.FileCount())
	require.False(t, ssd.HasFile("h1") && ssd.HasFile("h2"), "a heavy-user file goes first")
	require.True(t, ssd.HasFile("l1"))
}

func TestCriteriaUserAccountingOnDelete(t *testing.T) {
	_, storage, ssd, _ := twoTierSetup(1000)
	p := NewCriteriaPolicy(ssd, storage, nil)

	_, err := ssd.CreateFile(0, "a", 100, "u1")
	require.NoError(t, err)
	_, err = ssd.CreateFile(0, "b", 50, "u1")
	require.NoError(t, err)
	require.Equal(t, int64(150), p.usersCapacity["u1"])

	_, err = ssd.DeleteFile("a")
	require.NoError(t, err)
	require.Equal(t, int64(50), p.usersCapacity["u1"])
}

func TestCriteriaWindowPruning(t *testing.T) {
	clock, storage, ssd, _ := twoTierSetup(1000)
	p := NewCriteriaPolicy(ssd, storage, nil)
	p.SetWindow(10)

	_, err := ssd.CreateFile(0, "a", 100, "u1")
	require.NoError(t, err)
	clock.AdvanceTo(100)
	_, err = ssd.ReadFile(100, "a", true, CauseNone)
	require.NoError(t, err)

	totals := p.pruneWindow(clock.Now())
	require.Equal(t, int64(100), totals["u1"], "only the recent access is inside the window")
	require.Len(t, p.window, 1)
}
