// Package traces holds the trace adapters feeding the simulator: parsers
// for the SNIA Tencent-CBS and IBM object store text formats, and a seeded
// synthetic generator. Adapters produce simulator.Record streams and the
// per-path lifetime predictions consumed by lifetime-aware policies.
package traces

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Louis-MariePhD/tiersim/simulator"
)

// sniaSizeClasses maps the one-letter photo size class of the SNIA trace to
// an approximate file size in bytes.
var sniaSizeClasses = map[string]int64{
	"l": 33136,
	"a": 3263749,
	"o": 4925317,
	"m": 6043467,
	"c": 6050183,
	"b": 8387821,
}

const sniaTimeLayout = "20060102150405"

// SNIATrace parses the SNIA Tencent photo-cache text format: one request
// per line, `YYYYMMDDHHMMSS file_id _ size_class return_size`. The first
// reference to a file id is its creation; every later one is a read.
type SNIATrace struct {
	name      string
	records   []simulator.Record
	lifetimes map[string]float64
}

// LoadSNIATrace reads the trace at path, keeping at most limit records
// (limit < 0 means no limit). Malformed lines are dropped with a warning and
// parsing continues.
func LoadSNIATrace(path string, limit int, log zerolog.Logger) (*SNIATrace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening snia trace: %w", err)
	}
	defer f.Close()

	t := &SNIATrace{
		name:      path,
		lifetimes: make(map[string]float64),
	}

	// first/last timestamp per file id, for lifetime extraction
	firstSeen := make(map[string]float64)
	lastSeen := make(map[string]float64)

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if limit >= 0 && len(t.records) >= limit {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		columns := strings.Fields(line)
		if len(columns) < 5 {
			logFormatError(log, &simulator.TraceFormatError{Source: path, Line: lineNo, Reason: "expected 5 columns"})
			continue
		}
		ts, err := time.Parse(sniaTimeLayout, columns[0])
		if err != nil {
			logFormatError(log, &simulator.TraceFormatError{Source: path, Line: lineNo, Reason: "bad timestamp " + columns[0]})
			continue
		}
		size, ok := sniaSizeClasses[columns[3]]
		if !ok {
			logFormatError(log, &simulator.TraceFormatError{Source: path, Line: lineNo, Reason: "unknown size class " + columns[3]})
			continue
		}
		timestamp := float64(ts.Unix())
		fileID := columns[1]

		t.records = append(t.records, simulator.Record{
			Timestamp: timestamp,
			Op:        simulator.OpCreateOrAccess,
			Path:      fileID,
			Size:      size,
		})
		if _, ok := firstSeen[fileID]; !ok {
			firstSeen[fileID] = timestamp
		}
		lastSeen[fileID] = timestamp
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading snia trace: %w", err)
	}

	for id, first := range firstSeen {
		t.lifetimes[id] = lastSeen[id] - first
	}
	log.Info().
		Str("trace", path).
		Int("records", len(t.records)).
		Int("files", len(firstSeen)).
		Msg("snia trace loaded")
	return t, nil
}

func (t *SNIATrace) Name() string                  { return t.name }
func (t *SNIATrace) Records() []simulator.Record   { return t.records }
func (t *SNIATrace) Lifetimes() map[string]float64 { return t.lifetimes }

func logFormatError(log zerolog.Logger, err *simulator.TraceFormatError) {
	log.Warn().Int("line", err.Line).Str("source", err.Source).Str("reason", err.Reason).Msg("dropping malformed trace record")
}
