package main

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/Louis-MariePhD/tiersim/simulator"
)

var (
	// Prometheus metrics, labelled by tier
	promMetrics = struct {
		usedBytes      *prometheus.GaugeVec
		fileCount      *prometheus.GaugeVec
		reads          *prometheus.GaugeVec
		writes         *prometheus.GaugeVec
		evictionsFrom  *prometheus.GaugeVec
		evictionsTo    *prometheus.GaugeVec
		prefetchesFrom *prometheus.GaugeVec
		prefetchesTo   *prometheus.GaugeVec
		timeReading    *prometheus.GaugeVec
		timeWriting    *prometheus.GaugeVec
		exhausted      *prometheus.GaugeVec
	}{
		usedBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tiersim_used_bytes",
			Help: "Bytes currently resident on the tier",
		}, []string{"tier"}),
		fileCount: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tiersim_file_count",
			Help: "Files currently resident on the tier",
		}, []string{"tier"}),
		reads: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tiersim_reads_total",
			Help: "Read operations served by the tier",
		}, []string{"tier"}),
		writes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tiersim_writes_total",
			Help: "Write operations served by the tier",
		}, []string{"tier"}),
		evictionsFrom: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tiersim_evictions_from_total",
			Help: "Migration reads leaving the tier toward a slower tier",
		}, []string{"tier"}),
		evictionsTo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tiersim_evictions_to_total",
			Help: "Migration writes arriving from a faster tier",
		}, []string{"tier"}),
		prefetchesFrom: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tiersim_prefetches_from_total",
			Help: "Migration reads leaving the tier toward a faster tier",
		}, []string{"tier"}),
		prefetchesTo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tiersim_prefetches_to_total",
			Help: "Migration writes arriving from a slower tier",
		}, []string{"tier"}),
		timeReading: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tiersim_time_reading_seconds",
			Help: "Virtual time the tier spent reading",
		}, []string{"tier"}),
		timeWriting: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tiersim_time_writing_seconds",
			Help: "Virtual time the tier spent writing",
		}, []string{"tier"}),
		exhausted: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tiersim_exhausted_warnings_total",
			Help: "Nearly-full events on the last tier of the stack",
		}, []string{"tier"}),
	}
)

func initPrometheusMetrics() {
	prometheus.MustRegister(
		promMetrics.usedBytes,
		promMetrics.fileCount,
		promMetrics.reads,
		promMetrics.writes,
		promMetrics.evictionsFrom,
		promMetrics.evictionsTo,
		promMetrics.prefetchesFrom,
		promMetrics.prefetchesTo,
		promMetrics.timeReading,
		promMetrics.timeWriting,
		promMetrics.exhausted,
	)
}

func updatePrometheusMetrics(stats []simulator.TierStats) {
	for _, st := range stats {
		labels := prometheus.Labels{"tier": st.Name}
		promMetrics.usedBytes.With(labels).Set(float64(st.UsedSize))
		promMetrics.fileCount.With(labels).Set(float64(st.FileCount))
		promMetrics.reads.With(labels).Set(float64(st.NumberOfReads))
		promMetrics.writes.With(labels).Set(float64(st.NumberOfWrites))
		promMetrics.evictionsFrom.With(labels).Set(float64(st.EvictionsFromThisTier))
		promMetrics.evictionsTo.With(labels).Set(float64(st.EvictionsToThisTier))
		promMetrics.prefetchesFrom.With(labels).Set(float64(st.PrefetchesFromThisTier))
		promMetrics.prefetchesTo.With(labels).Set(float64(st.PrefetchesToThisTier))
		promMetrics.timeReading.With(labels).Set(st.TimeSpentReadingSec)
		promMetrics.timeWriting.With(labels).Set(st.TimeSpentWritingSec)
		promMetrics.exhausted.With(labels).Set(float64(st.TierExhaustedWarnings))
	}
}
