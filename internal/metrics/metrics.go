// Package metrics exposes pathfinder's resource accounting and
// notification traffic to Prometheus (SPEC_FULL.md §3.4). It is
// additive and ambient: nothing in package pathfinder imports it
// directly, it observes the domain from the outside through
// Domain.Stats and through an Interceptor that cmd/pathfinderd installs
// on each Server. Nothing in this repository calls ObserveNotification.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	pathfinder "github.com/gonzalop/pathfinder"
)

// Metrics holds every collector pathfinder registers. One Metrics is
// shared by every domain the process serves, labeled by domain name.
type Metrics struct {
	ResourceUsage *prometheus.GaugeVec

	CommandsTotal *prometheus.CounterVec
	FailuresTotal *prometheus.CounterVec

	NotificationsTotal *prometheus.CounterVec
}

// New builds a Metrics and registers every collector with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ResourceUsage: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "pathfinder",
			Name:      "resource_usage",
			Help:      "Current usage of a countable resource, per domain.",
		}, []string{"domain", "resource"}),
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pathfinder",
			Name:      "commands_total",
			Help:      "Transactions handled, accepted or failed, by domain and command.",
		}, []string{"domain", "command"}),
		FailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pathfinder",
			Name:      "command_failures_total",
			Help:      "Transactions failed, by domain, command and fail-reason.",
		}, []string{"domain", "command", "reason"}),
		NotificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pathfinder",
			Name:      "notifications_total",
			Help:      "Subscription notifications emitted, by domain and match type.",
		}, []string{"domain", "match"}),
	}
	reg.MustRegister(m.ResourceUsage, m.CommandsTotal, m.FailuresTotal, m.NotificationsTotal)
	return m
}

// ObserveStats publishes a Domain.Stats snapshot as gauge values.
func (m *Metrics) ObserveStats(domainName string, stats [4]int) {
	resources := []pathfinder.Resource{
		pathfinder.ResourceClients,
		pathfinder.ResourceServices,
		pathfinder.ResourceSubscriptions,
		pathfinder.ResourceFilterNodes,
	}
	for i, r := range resources {
		m.ResourceUsage.WithLabelValues(domainName, r.String()).Set(float64(stats[i]))
	}
}

// ObserveCommand records one completed transaction.
func (m *Metrics) ObserveCommand(domainName string, cmd pathfinder.Command, err error) {
	m.CommandsTotal.WithLabelValues(domainName, cmd.String()).Inc()
	if err == nil {
		return
	}
	reason := "internal"
	var te *pathfinder.TransactionError
	if errors.As(err, &te) {
		reason = te.Reason.String()
	}
	m.FailuresTotal.WithLabelValues(domainName, cmd.String(), reason).Inc()
}

// ObserveNotification records one appeared/modified/disappeared event.
func (m *Metrics) ObserveNotification(domainName string, match pathfinder.MatchType) {
	m.NotificationsTotal.WithLabelValues(domainName, match.String()).Inc()
}
