package simulator

import (
	"github.com/rs/zerolog"
)

// StorageManager indexes the tier stack. Tier 0 is the most performant and
// is where new files are created; a file's tier index grows as it ages and
// gets demoted. The manager owns the atomic migration protocol between two
// tiers.
type StorageManager struct {
	tiers            []*Tier
	defaultTierIndex int
	clock            *Clock
	log              zerolog.Logger

	// failure records the first fatal error raised inside a policy
	// callback, where no error return path exists. The driver checks it
	// after every record.
	failure error
}

// NewStorageManager creates a manager over tiers ordered by performance.
func NewStorageManager(tiers []*Tier, clock *Clock, log zerolog.Logger) *StorageManager {
	return &StorageManager{
		tiers: tiers,
		clock: clock,
		log:   log,
	}
}

// Tiers returns the tier stack in performance order.
func (s *StorageManager) Tiers() []*Tier {
	return s.tiers
}

// DefaultTier returns the tier new files are created on.
func (s *StorageManager) DefaultTier() *Tier {
	return s.tiers[s.defaultTierIndex]
}

// Clock returns the simulation clock.
func (s *StorageManager) Clock() *Clock {
	return s.clock
}

// TierIndex returns the position of t in the stack, or -1.
func (s *StorageManager) TierIndex(t *Tier) int {
	for i, tier := range s.tiers {
		if tier == t {
			return i
		}
	}
	return -1
}

// NextTier returns the next slower tier after t, or nil when t is the last
// tier of the stack.
func (s *StorageManager) NextTier(t *Tier) *Tier {
	i := s.TierIndex(t)
	if i < 0 || i+1 >= len(s.tiers) {
		return nil
	}
	return s.tiers[i+1]
}

// GetFile scans the tiers in order and returns the file for path, or nil.
func (s *StorageManager) GetFile(path string) *File {
	for _, tier := range s.tiers {
		if f := tier.File(path); f != nil {
			return f
		}
	}
	return nil
}

// Migrate relocates file onto target and returns the notional delay. The
// observable order is create(destination), overlapped read(source) /
// write(destination), delete(source): a policy reacting to the source's
// OnFileDeleted can assume the file is already placed on the destination.
// Transfers overlap at the slower endpoint, so the copy is charged
// max(read, write) wall-clock.
func (s *StorageManager) Migrate(file *File, target *Tier, ts float64) (float64, error) {
	if target.HasFile(file.Path) {
		return 0, nil
	}
	source := file.tier

	cause := CausePrefetching
	if s.TierIndex(source) < s.TierIndex(target) {
		cause = CauseEviction
	}
	s.log.Debug().
		Str("path", file.Path).
		Str("from", source.Name()).
		Str("to", target.Name()).
		Str("cause", cause.String()).
		Msg("migrating file")

	createDelay, err := target.createFile(ts, file.Path, file.Size, file.User, file, true)
	if err != nil {
		return 0, err
	}
	readDelay, err := source.ReadFile(ts, file.Path, false, cause)
	if err != nil {
		return 0, err
	}
	writeDelay, err := target.WriteFile(ts, file.Path, false, cause)
	if err != nil {
		return 0, err
	}
	deleteDelay, err := source.DeleteFile(file.Path)
	if err != nil {
		return 0, err
	}

	if source.HasFile(file.Path) || !target.HasFile(file.Path) {
		return 0, &InvariantViolationError{Reason: "migration left path " + file.Path + " misplaced"}
	}
	return createDelay + max(readDelay, writeDelay) + deleteDelay, nil
}

// fail records the first fatal error raised where no error return exists.
func (s *StorageManager) fail(err error) {
	if s.failure == nil {
		s.failure = err
	}
	s.log.Error().Err(err).Msg("fatal error in policy callback")
}

// Failure returns the first fatal error recorded by a policy callback.
func (s *StorageManager) Failure() error {
	return s.failure
}

// CheckInvariants verifies occupancy bookkeeping on every tier and that no
// path is resident on two tiers.
func (s *StorageManager) CheckInvariants() error {
	seen := make(map[string]string)
	for _, tier := range s.tiers {
		if err := tier.CheckInvariant(); err != nil {
			return err
		}
		var dup error
		tier.Files(func(f *File) {
			if other, ok := seen[f.Path]; ok && dup == nil {
				dup = &InvariantViolationError{Reason: "path " + f.Path + " resident on tiers " + other + " and " + tier.Name()}
			}
			seen[f.Path] = tier.Name()
		})
		if dup != nil {
			return dup
		}
	}
	return nil
}
