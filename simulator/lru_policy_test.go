package simulator

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// singleTierSetup builds a lone tier with no drain target.
func singleTierSetup(maxSize int64) (*Clock, *StorageManager, *Tier) {
	clock := NewClock()
	tier := NewTier("SSD", maxSize, 1.0, 10.0, 0.9, zerolog.Nop())
	storage := NewStorageManager([]*Tier{tier}, clock, zerolog.Nop())
	return clock, storage, tier
}

func TestLRUNoNextTierLeavesTierOverOccupied(t *testing.T) {
	clock, storage, tier := singleTierSetup(100)
	NewLRUPolicy(tier, storage)

	_, err := tier.CreateFile(0, "a", 60, "")
	require.NoError(t, err)
	clock.AdvanceTo(1)
	_, err = tier.CreateFile(1, "b", 60, "")
	require.NoError(t, err)

	require.Equal(t, int64(120), tier.UsedSize(), "simulation continues over-occupied")
	require.True(t, tier.HasFile("a"))
	require.True(t, tier.HasFile("b"))
	require.Equal(t, int64(1), tier.Stats().TierExhaustedWarnings)
	require.NoError(t, storage.Failure())
}

func TestLRUEvictsOldestOnNearlyFull(t *testing.T) {
	clock, storage, ssd, hdd := twoTierSetup(100)
	NewLRUPolicy(ssd, storage)

	_, err := ssd.CreateFile(0, "a", 60, "")
	require.NoError(t, err)
	clock.AdvanceTo(1)
	_, err = ssd.CreateFile(1, "b", 60, "")
	require.NoError(t, err)

	require.False(t, ssd.HasFile("a"), "a is the least recently used")
	require.True(t, ssd.HasFile("b"))
	require.True(t, hdd.HasFile("a"))
	require.Equal(t, int64(1), ssd.Stats().EvictionsFromThisTier)
	require.Equal(t, int64(1), hdd.Stats().EvictionsToThisTier)
	require.NoError(t, storage.CheckInvariants())
}

func TestLRUAccessPromotesVictimChoice(t *testing.T) {
	clock, storage, ssd, hdd := twoTierSetup(100)
	NewLRUPolicy(ssd, storage)

	_, err := ssd.CreateFile(0, "a", 30, "")
	require.NoError(t, err)
	_, err = ssd.CreateFile(1, "b", 30, "")
	require.NoError(t, err)

	// touch a, making b the oldest
	clock.AdvanceTo(2)
	_, err = ssd.ReadFile(2, "a", true, CauseNone)
	require.NoError(t, err)

	clock.AdvanceTo(3)
	_, err = ssd.CreateFile(3, "c", 40, "")
	require.NoError(t, err)

	require.True(t, ssd.HasFile("a"))
	require.False(t, ssd.HasFile("b"), "b has the oldest access")
	require.True(t, hdd.HasFile("b"))
}

func TestLRUDrainStopsAtLowWater(t *testing.T) {
	clock, storage, ssd, _ := twoTierSetup(100)
	NewLRUPolicy(ssd, storage)

	// 10-byte files; the 9th create reaches the 90-byte high-water mark.
	for i := 0; i < 9; i++ {
		clock.AdvanceTo(float64(i))
		_, err := ssd.CreateFile(float64(i), pathForIndex(i), 10, "")
		require.NoError(t, err)
	}

	// drain must stop at the 75-byte low-water mark: 90 → 80 → 70
	require.Equal(t, int64(70), ssd.UsedSize())
	require.LessOrEqual(t, float64(ssd.UsedSize()), 100*(0.9-0.15))
	require.Equal(t, int64(2), ssd.Stats().EvictionsFromThisTier)
}

func TestLRUForgetsDeletedFiles(t *testing.T) {
	clock, storage, ssd, hdd := twoTierSetup(100)
	NewLRUPolicy(ssd, storage)

	_, err := ssd.CreateFile(0, "a", 40, "")
	require.NoError(t, err)
	_, err = ssd.CreateFile(1, "b", 40, "")
	require.NoError(t, err)
	_, err = ssd.DeleteFile("a")
	require.NoError(t, err)

	clock.AdvanceTo(2)
	_, err = ssd.CreateFile(2, "c", 60, "")
	require.NoError(t, err)

	// a is gone; the drain must pick b without tripping on the stale entry
	require.False(t, ssd.HasFile("b"))
	require.True(t, hdd.HasFile("b"))
	require.False(t, hdd.HasFile("a"))
}
