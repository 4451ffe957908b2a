// Package metrics defines the prometheus instruments tracking account
// kernel activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ExecutionCounter counts execution requests by entry point and status.
	ExecutionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_executions_total",
		Help: "Total number of execution requests.",
	}, []string{"entry", "status"})

	// ExecutionUnitCounter counts individual execution units by status.
	ExecutionUnitCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_execution_units_total",
		Help: "Total number of execution units dispatched.",
	}, []string{"status"})

	// ExecutionDuration measures wall time of execution requests.
	ExecutionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "arbor_execution_duration_seconds",
		Help:    "Duration of execution requests in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"entry"})

	// ModuleInstallCounter counts module install attempts.
	ModuleInstallCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_module_installs_total",
		Help: "Total number of module install attempts.",
	}, []string{"module_type", "status"})

	// ModuleUninstallCounter counts module uninstall attempts.
	ModuleUninstallCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_module_uninstalls_total",
		Help: "Total number of module uninstall attempts.",
	}, []string{"module_type", "status"})

	// ValidationCounter counts authorization verdicts by surface and result.
	ValidationCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_validations_total",
		Help: "Total number of authorization requests.",
	}, []string{"surface", "result"})

	// RedelegationPurgeCounter counts modules removed by the re-delegation
	// guard, including failed best-effort uninstalls.
	RedelegationPurgeCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "arbor_redelegation_purged_modules_total",
		Help: "Total number of modules purged on re-delegation.",
	}, []string{"module_type", "status"})
)
