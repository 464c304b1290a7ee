package simulator

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

// twoTierSetup builds an SSD/HDD pair under one storage manager. SSD is
// small enough for eviction scenarios, HDD effectively unbounded.
func twoTierSetup(ssdMax int64) (*Clock, *StorageManager, *Tier, *Tier) {
	clock := NewClock()
	ssd := NewTier("SSD", ssdMax, 1.0, 10.0, 0.9, zerolog.Nop())
	hdd := NewTier("HDD", 1e9, 2.0, 5.0, 0.9, zerolog.Nop())
	storage := NewStorageManager([]*Tier{ssd, hdd}, clock, zerolog.Nop())
	return clock, storage, ssd, hdd
}

func TestStorageManagerGetFile(t *testing.T) {
	_, storage, ssd, hdd := twoTierSetup(1000)
	_, err := ssd.CreateFile(0, "/a", 10, "")
	require.NoError(t, err)
	_, err = hdd.CreateFile(0, "/b", 10, "")
	require.NoError(t, err)

	require.Same(t, ssd.File("/a"), storage.GetFile("/a"))
	require.Same(t, hdd.File("/b"), storage.GetFile("/b"))
	require.Nil(t, storage.GetFile("/missing"))
}

func TestStorageManagerTierNavigation(t *testing.T) {
	_, storage, ssd, hdd := twoTierSetup(1000)
	require.Same(t, ssd, storage.DefaultTier())
	require.Equal(t, 0, storage.TierIndex(ssd))
	require.Equal(t, 1, storage.TierIndex(hdd))
	require.Same(t, hdd, storage.NextTier(ssd))
	require.Nil(t, storage.NextTier(hdd), "last tier has no successor")
}

func TestMigrateDemotionAccounting(t *testing.T) {
	_, storage, ssd, hdd := twoTierSetup(1000)
	_, err := ssd.CreateFile(0, "/a", 100, "u1")
	require.NoError(t, err)
	file := ssd.File("/a")

	delay, err := storage.Migrate(file, hdd, 5.0)
	require.NoError(t, err)

	// create(dest latency 2) + max(read src 1+10, write dest 2+20) + delete(0)
	require.Equal(t, 2.0+22.0, delay, "transfers overlap at the slower endpoint")

	require.False(t, ssd.HasFile("/a"))
	moved := hdd.File("/a")
	require.NotNil(t, moved)
	require.Same(t, hdd, moved.Tier())
	require.Equal(t, int64(100), moved.Size)
	require.Equal(t, "u1", moved.User)
	require.Equal(t, 0.0, moved.CreationTime, "creation time survives migration")

	require.Equal(t, int64(1), ssd.Stats().EvictionsFromThisTier)
	require.Equal(t, int64(1), hdd.Stats().EvictionsToThisTier)
	require.Equal(t, int64(0), ssd.Stats().PrefetchesFromThisTier)
	require.Equal(t, int64(1), ssd.Stats().NumberOfReads, "migration read counts as a read")
	require.Equal(t, int64(1), hdd.Stats().NumberOfWrites, "migration write counts as a write")
	require.NoError(t, storage.CheckInvariants())
}

func TestMigratePromotionAccounting(t *testing.T) {
	_, storage, ssd, hdd := twoTierSetup(1000)
	_, err := hdd.CreateFile(0, "/a", 100, "")
	require.NoError(t, err)

	_, err = storage.Migrate(hdd.File("/a"), ssd, 5.0)
	require.NoError(t, err)

	require.True(t, ssd.HasFile("/a"))
	require.Equal(t, int64(1), hdd.Stats().PrefetchesFromThisTier)
	require.Equal(t, int64(1), ssd.Stats().PrefetchesToThisTier)
	require.Equal(t, int64(0), hdd.Stats().EvictionsFromThisTier)
}

func TestMigrateToCurrentTierIsNoop(t *testing.T) {
	_, storage, ssd, _ := twoTierSetup(1000)
	_, err := ssd.CreateFile(0, "/a", 100, "")
	require.NoError(t, err)

	delay, err := storage.Migrate(ssd.File("/a"), ssd, 5.0)
	require.NoError(t, err)
	require.Equal(t, 0.0, delay)
	require.Equal(t, int64(0), ssd.Stats().EvictionsFromThisTier)
}

// migrationObserver records the callback order across both tiers of a
// migration.
type migrationObserver struct {
	out *[]string
	tag string
}

func (o *migrationObserver) OnFileCreated(f *File) { *o.out = append(*o.out, o.tag+":created") }
func (o *migrationObserver) OnFileDeleted(f *File) { *o.out = append(*o.out, o.tag+":deleted") }
func (o *migrationObserver) OnFileAccess(f *File, isWrite bool) {
	if isWrite {
		*o.out = append(*o.out, o.tag+":write")
	} else {
		*o.out = append(*o.out, o.tag+":read")
	}
}
func (o *migrationObserver) OnTierNearlyFull() { *o.out = append(*o.out, o.tag+":nearly_full") }

func TestMigrateObservableOrder(t *testing.T) {
	_, storage, ssd, hdd := twoTierSetup(1000)
	_, err := ssd.CreateFile(0, "/a", 100, "")
	require.NoError(t, err)

	var events []string
	ssd.AddListener(&migrationObserver{out: &events, tag: "src"})
	hdd.AddListener(&migrationObserver{out: &events, tag: "dst"})

	_, err = storage.Migrate(ssd.File("/a"), hdd, 5.0)
	require.NoError(t, err)

	// create(dest) → read(src)/write(dest) → delete(src); the destination
	// create is observable before the source delete.
	require.Equal(t, []string{"dst:created", "src:read", "dst:write", "src:deleted"}, events)
}

// deleteObserver asserts the migrated file is already resident on the
// destination when the source's OnFileDeleted fires.
type deleteObserver struct {
	dest    *Tier
	t       *testing.T
	checked bool
}

func (o *deleteObserver) OnFileCreated(f *File)              {}
func (o *deleteObserver) OnFileAccess(f *File, isWrite bool) {}
func (o *deleteObserver) OnTierNearlyFull()                  {}
func (o *deleteObserver) OnFileDeleted(f *File) {
	o.checked = true
	require.True(o.t, o.dest.HasFile(f.Path),
		"file must be placed on the destination before the source delete fires")
}

func TestMigrateDeleteSeesDestinationPlacement(t *testing.T) {
	_, storage, ssd, hdd := twoTierSetup(1000)
	_, err := ssd.CreateFile(0, "/a", 100, "")
	require.NoError(t, err)

	obs := &deleteObserver{dest: hdd, t: t}
	ssd.AddListener(obs)

	_, err = storage.Migrate(ssd.File("/a"), hdd, 5.0)
	require.NoError(t, err)
	require.True(t, obs.checked)
}

func TestCheckInvariantsDetectsDoubleResidency(t *testing.T) {
	_, storage, ssd, hdd := twoTierSetup(1000)
	_, err := ssd.CreateFile(0, "/a", 10, "")
	require.NoError(t, err)
	_, err = hdd.CreateFile(0, "/a", 10, "")
	require.NoError(t, err)

	err = storage.CheckInvariants()
	require.Error(t, err)
	require.IsType(t, &InvariantViolationError{}, err)
}
