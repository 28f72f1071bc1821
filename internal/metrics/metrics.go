// Package metrics exposes Prometheus instrumentation for dataset fetches
// and pipeline runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks upstream dataset traffic and run outcomes. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	DatasetRequests *prometheus.CounterVec
	DatasetRows     *prometheus.CounterVec
	FailedBatches   *prometheus.CounterVec
	StageDuration   *prometheus.HistogramVec
	StageFailures   *prometheus.CounterVec
	LeadsScored     prometheus.Counter
	Runs            *prometheus.CounterVec
}

// New registers all metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DatasetRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "parcel_leads_dataset_requests_total",
			Help: "Dataset API requests by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		DatasetRows: f.NewCounterVec(prometheus.CounterOpts{
			Name: "parcel_leads_dataset_rows_total",
			Help: "Rows returned by the dataset API by endpoint",
		}, []string{"endpoint"}),
		FailedBatches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "parcel_leads_failed_batches_total",
			Help: "Keyed batches excluded after a fetch failure",
		}, []string{"endpoint"}),
		StageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "parcel_leads_stage_duration_seconds",
			Help:    "Duration of each pipeline stage",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		StageFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "parcel_leads_stage_failures_total",
			Help: "Stages that ended in an error",
		}, []string{"stage"}),
		LeadsScored: f.NewCounter(prometheus.CounterOpts{
			Name: "parcel_leads_parcels_scored_total",
			Help: "Parcels scored across all runs",
		}),
		Runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "parcel_leads_runs_total",
			Help: "Completed runs by outcome",
		}, []string{"outcome"}),
	}
}

// ObserveRequest records one dataset request.
func (m *Metrics) ObserveRequest(endpoint string, rows int, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.DatasetRequests.WithLabelValues(endpoint, outcome).Inc()
	if rows > 0 {
		m.DatasetRows.WithLabelValues(endpoint).Add(float64(rows))
	}
}

// IncFailedBatch records a batch dropped from a keyed fetch.
func (m *Metrics) IncFailedBatch(endpoint string) {
	if m == nil {
		return
	}
	m.FailedBatches.WithLabelValues(endpoint).Inc()
}

// ObserveStage records a stage's duration. Call with time.Now() at the
// start of the stage.
func (m *Metrics) ObserveStage(stage string, start time.Time, failed bool) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	if failed {
		m.StageFailures.WithLabelValues(stage).Inc()
	}
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(outcome string, scored int) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
	m.LeadsScored.Add(float64(scored))
}
