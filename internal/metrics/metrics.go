package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/3leaps/nsupdates/pkg/nsupdate"
)

// Metrics bundles the gauges written to a node_exporter textfile after a run.
type Metrics struct {
	registry *prometheus.Registry

	CheckStatus     *prometheus.GaugeVec
	UpdateAvailable *prometheus.GaugeVec
	CatalogLines    prometheus.Gauge
	LastRun         prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		CheckStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nsupdates_check_status",
			Help: "Check status per target (0=OK, 1=WARNING, 2=CRITICAL, 3=UNKNOWN).",
		}, []string{"target"}),
		UpdateAvailable: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "nsupdates_update_available",
			Help: "1 if a newer build is announced for the installed release line.",
		}, []string{"target", "release_line"}),
		CatalogLines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nsupdates_catalog_release_lines",
			Help: "Number of release lines found in the announcement feed.",
		}),
		LastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "nsupdates_last_run_timestamp_seconds",
			Help: "Unix time the probe last completed.",
		}),
	}

	m.registry.MustRegister(
		m.CheckStatus,
		m.UpdateAvailable,
		m.CatalogLines,
		m.LastRun,
	)
	return m
}

func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.registry
}

func (m *Metrics) CatalogLoaded(lines int) {
	m.CatalogLines.Set(float64(lines))
}

func (m *Metrics) Evaluated(target string, installed, latest nsupdate.Version) {
	available := 0.0
	if nsupdate.Compare(installed, latest) < 0 {
		available = 1
	}
	m.UpdateAvailable.WithLabelValues(target, string(installed.Line())).Set(available)
}

// Recorded tracks per-target status. Results without a target (catalog
// failures) are not exported per target.
func (m *Metrics) Recorded(res nsupdate.Result) {
	if res.Target == "" {
		return
	}
	m.CheckStatus.WithLabelValues(res.Target).Set(float64(res.Severity))
}

// WriteTextfile stamps the run time and writes all gauges to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	m.LastRun.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, m.registry)
}
