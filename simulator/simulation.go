package simulator

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// SimulationOptions control per-record dispatch.
type SimulationOptions struct {
	// StrictTrace makes an access to a never-created path fatal.
	StrictTrace bool
	// SimulatePerfectPrefetch promotes a file to the default tier before
	// serving a read that finds it elsewhere.
	SimulatePerfectPrefetch bool
}

// Simulation replays one or more traces against a storage manager. Records
// are processed atomically in timestamp order (ties in arrival order); the
// only suspension point is between records.
type Simulation struct {
	storage *StorageManager
	clock   *Clock
	queue   *EventQueue
	opts    SimulationOptions
	log     zerolog.Logger

	totalRecords     int
	processedRecords int
	droppedRecords   int
}

// NewSimulation queues every record of every trace. Each trace stream must
// carry non-decreasing timestamps; a regression is a fatal TraceOrderError.
func NewSimulation(traces []Trace, storage *StorageManager, clock *Clock, opts SimulationOptions, log zerolog.Logger) (*Simulation, error) {
	sim := &Simulation{
		storage: storage,
		clock:   clock,
		queue:   NewEventQueue(),
		opts:    opts,
		log:     log,
	}
	for _, trace := range traces {
		last := 0.0
		first := true
		for _, rec := range trace.Records() {
			if !first && rec.Timestamp < last {
				return nil, &TraceOrderError{Source: trace.Name(), Timestamp: rec.Timestamp, Previous: last}
			}
			last = rec.Timestamp
			first = false
			sim.queue.Push(rec, trace)
		}
	}
	sim.totalRecords = sim.queue.Len()
	return sim, nil
}

// Storage returns the storage manager, for trace adapters implementing
// RecordReplayer.
func (s *Simulation) Storage() *StorageManager {
	return s.storage
}

// Clock returns the simulation clock.
func (s *Simulation) Clock() *Clock {
	return s.clock
}

// Options returns the dispatch options, for trace adapters implementing
// RecordReplayer.
func (s *Simulation) Options() SimulationOptions {
	return s.opts
}

// Skip drops rec without processing it. Used by adapters whose format
// tolerates references to files that were never created.
func (s *Simulation) Skip(rec Record, reason string) {
	s.droppedRecords++
	s.log.Debug().Str("path", rec.Path).Str("op", rec.Op.String()).Str("reason", reason).Msg("record skipped")
}

// Progress returns processed and total record counts.
func (s *Simulation) Progress() (processed, total int) {
	return s.processedRecords, s.totalRecords
}

// DroppedRecords returns how many records were skipped: unknown-path
// deletes, malformed records (TraceFormatError), and records an adapter
// passed to Skip.
func (s *Simulation) DroppedRecords() int {
	return s.droppedRecords
}

// Step processes exactly one record. It returns false when the trace stream
// is exhausted. A malformed record (TraceFormatError) is dropped and counted;
// any returned error is fatal to the run.
func (s *Simulation) Step() (bool, error) {
	rec, trace, ok := s.queue.Pop()
	if !ok {
		return false, nil
	}
	s.clock.AdvanceTo(rec.Timestamp)
	s.processedRecords++

	var err error
	if replayer, custom := trace.(RecordReplayer); custom {
		err = replayer.ReadRecord(s, rec)
	} else {
		err = s.ProcessRecord(rec)
	}
	if err != nil {
		formatErr, malformed := err.(*TraceFormatError)
		if !malformed {
			return false, err
		}
		s.droppedRecords++
		s.log.Warn().Err(formatErr).Msg("dropping malformed trace record")
	}
	if err := s.storage.Failure(); err != nil {
		return false, err
	}
	return true, nil
}

// Run processes the whole stream and returns the formatted per-tier results.
func (s *Simulation) Run() (string, error) {
	for {
		more, err := s.Step()
		if err != nil {
			return "", err
		}
		if !more {
			break
		}
	}
	s.log.Info().
		Int("records", s.processedRecords).
		Int("dropped", s.droppedRecords).
		Float64("virtualTime", s.clock.Now()).
		Msg("simulation end")
	return s.FormatResults(), nil
}

// ProcessRecord is the standard translation of one trace record into tier
// and storage calls. The returned delay accounting lives on the tiers.
func (s *Simulation) ProcessRecord(rec Record) error {
	file := s.storage.GetFile(rec.Path)

	if file == nil {
		switch rec.Op {
		case OpPut, OpCreateOrAccess:
			_, err := s.storage.DefaultTier().CreateFile(rec.Timestamp, rec.Path, rec.Size, rec.User)
			return err
		case OpGet, OpHead:
			if s.opts.StrictTrace {
				return &UnknownPathError{Path: rec.Path, Op: rec.Op}
			}
			// The trace references a file that predates it: materialise it
			// on the default tier, then serve the access.
			tier := s.storage.DefaultTier()
			if _, err := tier.CreateFile(rec.Timestamp, rec.Path, rec.Size, rec.User); err != nil {
				return err
			}
			_, err := tier.ReadFile(rec.Timestamp, rec.Path, true, CauseNone)
			return err
		case OpDelete:
			s.droppedRecords++
			s.log.Debug().Str("path", rec.Path).Msg("delete of unknown path skipped")
			return nil
		default:
			return &TraceFormatError{Source: "record", Reason: fmt.Sprintf("unhandled op %s", rec.Op)}
		}
	}

	switch rec.Op {
	case OpGet, OpHead, OpCreateOrAccess:
		if s.opts.SimulatePerfectPrefetch && file.Tier() != s.storage.DefaultTier() {
			if _, err := s.storage.Migrate(file, s.storage.DefaultTier(), s.clock.Now()); err != nil {
				return err
			}
			file = s.storage.GetFile(rec.Path)
			if file == nil {
				return &InvariantViolationError{Reason: "prefetch lost path " + rec.Path}
			}
		}
		_, err := file.Tier().ReadFile(rec.Timestamp, rec.Path, true, CauseNone)
		return err
	case OpPut:
		_, err := file.Tier().WriteFile(rec.Timestamp, rec.Path, true, CauseNone)
		return err
	case OpDelete:
		_, err := file.Tier().DeleteFile(rec.Path)
		return err
	default:
		return &TraceFormatError{Source: "record", Reason: fmt.Sprintf("unhandled op %s", rec.Op)}
	}
}

// Stats returns a snapshot of every tier's counters, in stack order.
func (s *Simulation) Stats() []TierStats {
	stats := make([]TierStats, 0, len(s.storage.Tiers()))
	for _, tier := range s.storage.Tiers() {
		stats = append(stats, tier.Stats())
	}
	return stats
}

// FormatResults renders the per-tier counters as one text block.
func (s *Simulation) FormatResults() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Simulation end at t=%.6f (%d records, %d dropped)\n",
		s.clock.Now(), s.processedRecords, s.droppedRecords)
	for _, st := range s.Stats() {
		fmt.Fprintf(&b, "Tier %q of size %.3f GB (%d bytes aka %.3f MB used)\n",
			st.Name, float64(st.MaxSize)/1e9, st.UsedSize, float64(st.UsedSize)/1e6)
		fmt.Fprintf(&b, "  reads: %d (%.6f seconds), writes: %d (%.6f seconds)\n",
			st.NumberOfReads, st.TimeSpentReadingSec, st.NumberOfWrites, st.TimeSpentWritingSec)
		fmt.Fprintf(&b, "  evictions from/to: %d/%d, prefetches from/to: %d/%d, exhausted warnings: %d\n",
			st.EvictionsFromThisTier, st.EvictionsToThisTier,
			st.PrefetchesFromThisTier, st.PrefetchesToThisTier,
			st.TierExhaustedWarnings)
	}
	return b.String()
}
