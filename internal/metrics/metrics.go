package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	WorkspacesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "dockforge_workspaces_created_total",
			Help: "Number of prep workspaces created",
		},
	)

	UploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockforge_uploads_total",
			Help: "Number of staged files by detected kind",
		},
		[]string{"kind"},
	)

	FetchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockforge_structure_fetches_total",
			Help: "Number of external structure fetches",
		},
		[]string{"status"},
	)

	BuildsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dockforge_builds_total",
			Help: "Number of bundle builds by outcome",
		},
		[]string{"status"},
	)

	BuildDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dockforge_build_duration_seconds",
			Help:    "Time to assemble and archive a job bundle",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
	)
)

// Register registers all dockforge metrics with the default registry.
// Call once at startup.
func Register() {
	prometheus.MustRegister(
		WorkspacesCreated,
		UploadsTotal,
		FetchesTotal,
		BuildsTotal,
		BuildDuration,
	)
}

// Handler exposes the default registry for scraping.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}
