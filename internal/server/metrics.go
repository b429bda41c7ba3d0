// Package server holds the process-level HTTP plumbing shared by handlers:
// the prometheus metrics registry and its /metrics endpoint.
package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry         *prometheus.Registry
	escrowsCreated   prometheus.Counter
	fundingDetected  prometheus.Counter
	settlementsTotal *prometheus.CounterVec
	withdrawalsTotal *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	created := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "workly_escrows_created_total",
		Help: "Total number of escrow accounts created",
	})
	funded := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "workly_escrows_funded_total",
		Help: "Funding checks that observed a funded escrow",
	})
	settlements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workly_settlements_total",
		Help: "Escrow settlement attempts by outcome",
	}, []string{"status"})
	withdrawals := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "workly_withdrawals_total",
		Help: "Withdrawal attempts by outcome",
	}, []string{"status"})

	r := prometheus.NewRegistry()
	r.MustRegister(created, funded, settlements, withdrawals)

	return &Metrics{
		registry:         r,
		escrowsCreated:   created,
		fundingDetected:  funded,
		settlementsTotal: settlements,
		withdrawalsTotal: withdrawals,
	}
}

// Handler serves the registry for scraping.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) IncEscrowCreated() {
	m.escrowsCreated.Inc()
}

func (m *Metrics) IncFundingDetected() {
	m.fundingDetected.Inc()
}

func (m *Metrics) IncSettlement(status string) {
	m.settlementsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) IncWithdrawal(status string) {
	m.withdrawalsTotal.WithLabelValues(status).Inc()
}
