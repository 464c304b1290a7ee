package traces

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Louis-MariePhD/tiersim/simulator"
)

func TestLoadIBMTrace(t *testing.T) {
	path := writeTempTrace(t,
		"100 REST.PUT.OBJECT obj1 500\n"+
			"200 REST.GET.OBJECT obj1 500\n"+
			"300 REST.HEAD.OBJECT obj1 0\n"+
			"400 REST.DELETE.OBJECT obj1 0\n")

	trace, err := LoadIBMTrace(path, -1, zerolog.Nop())
	require.NoError(t, err)

	recs := trace.Records()
	require.Len(t, recs, 4)
	require.Equal(t, simulator.OpPut, recs[0].Op)
	require.Equal(t, simulator.OpGet, recs[1].Op)
	require.Equal(t, simulator.OpHead, recs[2].Op)
	require.Equal(t, simulator.OpDelete, recs[3].Op)
	require.Equal(t, int64(500), recs[0].Size)
	require.Equal(t, 0, trace.SynthesizedCreates())
	require.Equal(t, 300.0, trace.Lifetimes()["obj1"])
}

func TestLoadIBMTraceSynthesizesCreates(t *testing.T) {
	path := writeTempTrace(t,
		"100 REST.GET.OBJECT orphan 700\n"+
			"200 REST.GET.OBJECT orphan 700\n")

	trace, err := LoadIBMTrace(path, -1, zerolog.Nop())
	require.NoError(t, err)

	recs := trace.Records()
	require.Len(t, recs, 3, "a PUT is injected before the first GET")
	require.Equal(t, simulator.OpPut, recs[0].Op)
	require.Equal(t, "orphan", recs[0].Path)
	require.Equal(t, 100.0, recs[0].Timestamp)
	require.Equal(t, simulator.OpGet, recs[1].Op)
	require.Equal(t, 1, trace.SynthesizedCreates())
}

func TestLoadIBMTraceDropsMalformedLines(t *testing.T) {
	path := writeTempTrace(t,
		"bad-ts REST.GET.OBJECT o1 1\n"+
			"100 NODOTOP o2 1\n"+
			"100 REST.FROB.OBJECT o3 1\n"+
			"100 REST.PUT.OBJECT o4 1\n")

	trace, err := LoadIBMTrace(path, -1, zerolog.Nop())
	require.NoError(t, err)
	require.Len(t, trace.Records(), 1)
	require.Equal(t, "o4", trace.Records()[0].Path)
}

func TestIBMReplayerSkipsUncreatedObjects(t *testing.T) {
	clock := simulator.NewClock()
	cfg := simulator.TwoTierConfig(1000)
	tiers := cfg.BuildTiers(zerolog.Nop())
	storage := simulator.NewStorageManager(tiers, clock, zerolog.Nop())

	trace := &IBMObjectStoreTrace{name: "inline", lifetimes: map[string]float64{}}
	trace.records = []simulator.Record{
		{Timestamp: 0, Op: simulator.OpGet, Path: "ghost"},
		{Timestamp: 1, Op: simulator.OpPut, Path: "real", Size: 10},
	}
	sim, err := simulator.NewSimulation([]simulator.Trace{trace}, storage, clock, simulator.SimulationOptions{}, zerolog.Nop())
	require.NoError(t, err)

	_, err = sim.Run()
	require.NoError(t, err)
	require.Nil(t, storage.GetFile("ghost"), "accesses to never-created objects are skipped, not materialised")
	require.NotNil(t, storage.GetFile("real"))
	require.Equal(t, 1, sim.DroppedRecords())
}
