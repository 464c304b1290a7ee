package simulator

import (
	"github.com/rs/zerolog"
)

// MigrationCause classifies the direction of a migration transfer so the
// source and destination tiers can account it separately from user IO.
type MigrationCause int

const (
	// CauseNone marks plain user IO.
	CauseNone MigrationCause = iota
	// CauseEviction marks a transfer toward a slower (higher-index) tier.
	CauseEviction
	// CausePrefetching marks a transfer toward a faster (lower-index) tier.
	CausePrefetching
)

func (c MigrationCause) String() string {
	switch c {
	case CauseNone:
		return "none"
	case CauseEviction:
		return "eviction"
	case CausePrefetching:
		return "prefetching"
	default:
		return "unknown"
	}
}

// TierListener receives the four storage events a policy reacts to.
// Listeners are invoked synchronously, in registration order; a listener's
// side effects complete fully before the next listener runs.
type TierListener interface {
	OnFileCreated(f *File)
	OnFileDeleted(f *File)
	OnFileAccess(f *File, isWrite bool)
	OnTierNearlyFull()
}

// TierStats is a snapshot of one tier's counters. The operation, migration,
// time and warning counters are monotonically non-decreasing over a run;
// UsedSize and FileCount report current occupancy and can fall.
type TierStats struct {
	Name                   string  `json:"name"`
	MaxSize                int64   `json:"maxSize"`
	UsedSize               int64   `json:"usedSize"`
	FileCount              int     `json:"fileCount"`
	NumberOfReads          int64   `json:"numberOfReads"`
	NumberOfWrites         int64   `json:"numberOfWrites"`
	EvictionsFromThisTier  int64   `json:"evictionsFromThisTier"`
	EvictionsToThisTier    int64   `json:"evictionsToThisTier"`
	PrefetchesFromThisTier int64   `json:"prefetchesFromThisTier"`
	PrefetchesToThisTier   int64   `json:"prefetchesToThisTier"`
	TimeSpentReadingSec    float64 `json:"timeSpentReadingSec"`
	TimeSpentWritingSec    float64 `json:"timeSpentWritingSec"`
	TierExhaustedWarnings  int64   `json:"tierExhaustedWarnings"`
}

// Tier is a capacity-bounded container of files with a fixed device model
// (latency in seconds, throughput in bytes per second). It owns the file
// index for its level of the stack and all per-tier counters.
type Tier struct {
	name             string
	maxSize          int64
	usedSize         int64
	latency          float64
	throughput       float64
	targetOccupation float64

	content   map[string]*File
	listeners []TierListener

	// currentlyMigrating latches while the nearly-full fan-out for one
	// triggering event is in flight, so listener actions that transiently
	// cross the threshold again cannot re-enter OnTierNearlyFull.
	currentlyMigrating bool

	numberOfReads          int64
	numberOfWrites         int64
	evictionsFromThisTier  int64
	evictionsToThisTier    int64
	prefetchesFromThisTier int64
	prefetchesToThisTier   int64
	timeSpentReading       float64
	timeSpentWriting       float64
	exhaustedWarnings      int64

	log zerolog.Logger
}

// NewTier creates a tier from its device model. targetOccupation is the
// high-water ratio; values outside (0,1), including 0, default to 0.9.
func NewTier(name string, maxSize int64, latency, throughput, targetOccupation float64, log zerolog.Logger) *Tier {
	if targetOccupation <= 0 || targetOccupation >= 1 {
		targetOccupation = 0.9
	}
	return &Tier{
		name:             name,
		maxSize:          maxSize,
		latency:          latency,
		throughput:       throughput,
		targetOccupation: targetOccupation,
		content:          make(map[string]*File),
		log:              log.With().Str("tier", name).Logger(),
	}
}

// Name returns the tier name.
func (t *Tier) Name() string { return t.name }

// MaxSize returns the tier capacity in bytes.
func (t *Tier) MaxSize() int64 { return t.maxSize }

// UsedSize returns the bytes currently occupied.
func (t *Tier) UsedSize() int64 { return t.usedSize }

// TargetOccupation returns the high-water ratio.
func (t *Tier) TargetOccupation() float64 { return t.targetOccupation }

// FileCount returns the number of resident files.
func (t *Tier) FileCount() int { return len(t.content) }

// HasFile reports whether path is resident on this tier.
func (t *Tier) HasFile(path string) bool {
	_, ok := t.content[path]
	return ok
}

// File returns the resident file for path, or nil.
func (t *Tier) File(path string) *File {
	return t.content[path]
}

// Files calls fn for every resident file. The callback must not mutate the
// tier's content.
func (t *Tier) Files(fn func(f *File)) {
	for _, f := range t.content {
		fn(f)
	}
}

// AddListener attaches a policy listener. Listeners fire in registration
// order.
func (t *Tier) AddListener(l TierListener) {
	t.listeners = append(t.listeners, l)
}

// CreateFile places a new file on this tier and returns the notional delay.
// The path must not already be resident.
func (t *Tier) CreateFile(ts float64, path string, size int64, user string) (float64, error) {
	return t.createFile(ts, path, size, user, nil, false)
}

// createFile is the shared create path. When from is non-nil the new file
// copies its size, timestamps and user (migration copy); migration=true
// additionally suppresses the nearly-full check during the transient
// over-occupancy window of a migration.
func (t *Tier) createFile(ts float64, path string, size int64, user string, from *File, migration bool) (float64, error) {
	if _, ok := t.content[path]; ok {
		return 0, &InvariantViolationError{Tier: t.name, Reason: "create of already-resident path " + path}
	}
	if user == "" {
		user = DefaultUser
	}

	f := &File{
		Path:             path,
		Size:             size,
		CreationTime:     ts,
		LastModification: ts,
		LastAccess:       ts,
		User:             user,
		tier:             t,
	}
	if from != nil {
		f.Size = from.Size
		f.CreationTime = from.CreationTime
		f.LastModification = from.LastModification
		f.LastAccess = from.LastAccess
		f.User = from.User
	}

	t.content[path] = f
	t.usedSize += f.Size
	t.timeSpentWriting += t.latency

	t.log.Debug().Str("path", path).Int64("size", f.Size).Bool("migration", migration).Msg("file created")
	for _, l := range t.listeners {
		l.OnFileCreated(f)
	}

	if !migration {
		t.checkNearlyFull()
	}
	return t.latency, nil
}

// checkNearlyFull fires OnTierNearlyFull once when occupancy is at or above
// the high-water mark. The latch wraps the entire listener fan-out for one
// triggering event.
func (t *Tier) checkNearlyFull() {
	if t.currentlyMigrating {
		return
	}
	if float64(t.usedSize) < float64(t.maxSize)*t.targetOccupation {
		return
	}
	t.currentlyMigrating = true
	t.log.Debug().Int64("used", t.usedSize).Int64("max", t.maxSize).Msg("tier nearly full")
	for _, l := range t.listeners {
		l.OnTierNearlyFull()
	}
	t.currentlyMigrating = false
}

// ReadFile reads a resident file and returns the notional delay. updateMeta
// is false for the read half of a migration, which must not refresh access
// times. cause classifies migration reads for direction accounting.
func (t *Tier) ReadFile(ts float64, path string, updateMeta bool, cause MigrationCause) (float64, error) {
	f, ok := t.content[path]
	if !ok {
		return 0, &UnknownPathError{Path: path, Op: OpGet}
	}

	switch cause {
	case CauseNone:
	case CauseEviction:
		t.evictionsFromThisTier++
	case CausePrefetching:
		t.prefetchesFromThisTier++
	default:
		return 0, &UnknownCauseError{Cause: cause}
	}

	if updateMeta {
		f.LastAccess = ts
	}
	t.numberOfReads++
	delay := t.latency + float64(f.Size)/t.throughput
	t.timeSpentReading += delay

	t.log.Debug().Str("path", path).Str("cause", cause.String()).Msg("file read")
	for _, l := range t.listeners {
		l.OnFileAccess(f, false)
	}
	return delay, nil
}

// WriteFile writes a resident file and returns the notional delay. cause
// classifies migration writes for direction accounting on the destination.
func (t *Tier) WriteFile(ts float64, path string, updateMeta bool, cause MigrationCause) (float64, error) {
	f, ok := t.content[path]
	if !ok {
		return 0, &UnknownPathError{Path: path, Op: OpPut}
	}

	switch cause {
	case CauseNone:
	case CauseEviction:
		t.evictionsToThisTier++
	case CausePrefetching:
		t.prefetchesToThisTier++
	default:
		return 0, &UnknownCauseError{Cause: cause}
	}

	if updateMeta {
		f.LastAccess = ts
		f.LastModification = ts
	}
	t.numberOfWrites++
	delay := t.latency + float64(f.Size)/t.throughput
	t.timeSpentWriting += delay

	t.log.Debug().Str("path", path).Str("cause", cause.String()).Msg("file written")
	for _, l := range t.listeners {
		l.OnFileAccess(f, true)
	}
	return delay, nil
}

// DeleteFile removes a file if resident and returns the notional delay.
// Deleting an absent path is a no-op.
func (t *Tier) DeleteFile(path string) (float64, error) {
	f, ok := t.content[path]
	if !ok {
		return 0, nil
	}
	delete(t.content, path)
	t.usedSize -= f.Size

	t.log.Debug().Str("path", path).Int64("size", f.Size).Msg("file deleted")
	for _, l := range t.listeners {
		l.OnFileDeleted(f)
	}
	return 0, nil
}

// recordExhausted counts a nearly-full event on the last tier of the stack,
// which has nowhere to drain to.
func (t *Tier) recordExhausted() {
	t.exhaustedWarnings++
	t.log.Warn().Msg("tier nearly full, but there is no other tier to discharge load")
}

// CheckInvariant verifies that the occupancy counter agrees with the content
// index.
func (t *Tier) CheckInvariant() error {
	var sum int64
	for _, f := range t.content {
		sum += f.Size
		if f.tier != t {
			return &InvariantViolationError{Tier: t.name, Reason: "file " + f.Path + " back-reference disagrees with content index"}
		}
	}
	if sum != t.usedSize {
		return &InvariantViolationError{Tier: t.name, Reason: "used size disagrees with content sizes"}
	}
	return nil
}

// Stats returns a copy of the tier's counters.
func (t *Tier) Stats() TierStats {
	return TierStats{
		Name:                   t.name,
		MaxSize:                t.maxSize,
		UsedSize:               t.usedSize,
		FileCount:              len(t.content),
		NumberOfReads:          t.numberOfReads,
		NumberOfWrites:         t.numberOfWrites,
		EvictionsFromThisTier:  t.evictionsFromThisTier,
		EvictionsToThisTier:    t.evictionsToThisTier,
		PrefetchesFromThisTier: t.prefetchesFromThisTier,
		PrefetchesToThisTier:   t.prefetchesToThisTier,
		TimeSpentReadingSec:    t.timeSpentReading,
		TimeSpentWritingSec:    t.timeSpentWriting,
		TierExhaustedWarnings:  t.exhaustedWarnings,
	}
}
