package traces

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Louis-MariePhD/tiersim/simulator"
)

// IBMObjectStoreTrace parses the IBM object store request format: one
// request per line, `timestamp REST.<OP>.OBJECT uid [size [offset_start
// offset_end]]` with OP one of PUT, GET, HEAD, DELETE. A uid whose first
// reference is not a PUT gets a synthesized PUT at that timestamp so the
// object exists before it is accessed.
type IBMObjectStoreTrace struct {
	name        string
	records     []simulator.Record
	lifetimes   map[string]float64
	synthesized int
}

// LoadIBMTrace reads the trace at path, keeping at most limit records
// (limit < 0 means no limit).
func LoadIBMTrace(path string, limit int, log zerolog.Logger) (*IBMObjectStoreTrace, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ibm trace: %w", err)
	}
	defer f.Close()

	t := &IBMObjectStoreTrace{
		name:      path,
		lifetimes: make(map[string]float64),
	}
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
		if len(columns) < 3 {
			logFormatError(log, &simulator.TraceFormatError{Source: path, Line: lineNo, Reason: "expected at least 3 columns"})
			continue
		}
		timestamp, err := strconv.ParseFloat(columns[0], 64)
		if err != nil {
			logFormatError(log, &simulator.TraceFormatError{Source: path, Line: lineNo, Reason: "bad timestamp " + columns[0]})
			continue
		}
		opParts := strings.Split(columns[1], ".")
		if len(opParts) < 2 {
			logFormatError(log, &simulator.TraceFormatError{Source: path, Line: lineNo, Reason: "bad op " + columns[1]})
			continue
		}
		op, err := parseIBMOp(opParts[1])
		if err != nil {
			logFormatError(log, &simulator.TraceFormatError{Source: path, Line: lineNo, Reason: err.Error()})
			continue
		}
		uid := columns[2]
		var size int64
		if len(columns) > 3 {
			size, _ = strconv.ParseInt(columns[3], 10, 64)
		}

		if _, known := firstSeen[uid]; !known {
			firstSeen[uid] = timestamp
			if op != simulator.OpPut {
				t.records = append(t.records, simulator.Record{
					Timestamp: timestamp,
					Op:        simulator.OpPut,
					Path:      uid,
					Size:      size,
				})
				t.synthesized++
				if limit >= 0 && len(t.records) >= limit {
					lastSeen[uid] = timestamp
					continue
				}
			}
		}
		lastSeen[uid] = timestamp
		t.records = append(t.records, simulator.Record{
			Timestamp: timestamp,
			Op:        op,
			Path:      uid,
			Size:      size,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ibm trace: %w", err)
	}

	for uid, first := range firstSeen {
		t.lifetimes[uid] = lastSeen[uid] - first
	}
	log.Info().
		Str("trace", path).
		Int("records", len(t.records)).
		Int("files", len(firstSeen)).
		Int("synthesizedCreates", t.synthesized).
		Msg("ibm trace loaded")
	return t, nil
}

func parseIBMOp(s string) (simulator.OpCode, error) {
	switch s {
	case "PUT":
		return simulator.OpPut, nil
	case "GET":
		return simulator.OpGet, nil
	case "HEAD":
		return simulator.OpHead, nil
	case "DELETE":
		return simulator.OpDelete, nil
	default:
		return 0, fmt.Errorf("unknown operation code %s", s)
	}
}

func (t *IBMObjectStoreTrace) Name() string                  { return t.name }
func (t *IBMObjectStoreTrace) Records() []simulator.Record   { return t.records }
func (t *IBMObjectStoreTrace) Lifetimes() map[string]float64 { return t.lifetimes }

// SynthesizedCreates returns how many PUTs were injected for objects the
// trace referenced before creating.
func (t *IBMObjectStoreTrace) SynthesizedCreates() int { return t.synthesized }

// ReadRecord ignores accesses to objects that were never created instead of
// materialising them: the object store format is explicit about creation, so
// an unknown uid is stale trace data rather than a pre-existing file.
func (t *IBMObjectStoreTrace) ReadRecord(sim *simulator.Simulation, rec simulator.Record) error {
	if sim.Storage().GetFile(rec.Path) == nil && rec.Op != simulator.OpPut {
		sim.Skip(rec, "object never created")
		return nil
	}
	return sim.ProcessRecord(rec)
}
