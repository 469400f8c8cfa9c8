// Package metrics exports analysis pass statistics as Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"psmfeats/internal/model"
)

// Recorder implements features.Observer on a caller-supplied registry.
type Recorder struct {
	cells        *prometheus.CounterVec
	giudicelli   *prometheus.CounterVec
	waveScans    *prometheus.CounterVec
	passDuration *prometheus.HistogramVec
}

func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cells: f.NewCounterVec(prometheus.CounterOpts{
			Name: "psmfeats_cells_analyzed_total",
			Help: "Cells analyzed per pass and gene.",
		}, []string{"pass", "gene"}),
		giudicelli: f.NewCounterVec(prometheus.CounterOpts{
			Name: "psmfeats_giudicelli_cells_total",
			Help: "Her1 cells tested against the reference period curve.",
		}, []string{"result"}),
		waveScans: f.NewCounterVec(prometheus.CounterOpts{
			Name: "psmfeats_wave_scans_total",
			Help: "Wave count snapshots per gene.",
		}, []string{"gene", "overflow"}),
		passDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "psmfeats_pass_duration_seconds",
			Help:    "Duration of one analysis pass.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
		}, []string{"pass"}),
	}
}

func (r *Recorder) CellsAnalyzed(pass string, gene model.Gene, n int) {
	r.cells.WithLabelValues(pass, gene.String()).Add(float64(n))
}

func (r *Recorder) GiudicelliCell(passed bool) {
	result := "fail"
	if passed {
		result = "pass"
	}
	r.giudicelli.WithLabelValues(result).Inc()
}

func (r *Recorder) WaveScan(gene model.Gene, overflow bool) {
	label := "false"
	if overflow {
		label = "true"
	}
	r.waveScans.WithLabelValues(gene.String(), label).Inc()
}

func (r *Recorder) ObservePass(pass string, d time.Duration) {
	r.passDuration.WithLabelValues(pass).Observe(d.Seconds())
}
