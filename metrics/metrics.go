// Package metrics exposes prometheus counters for the posting path.
//
// Inconsistencies is the one to alert on: any non-zero value means a fund
// balance and its audit trail disagree and an operator has to reconcile by
// hand.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Postings counts committed ledger postings by reference kind.
	Postings = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "treasury_postings_total",
		Help: "Committed ledger postings by reference kind.",
	}, []string{"kind"})

	// Compensations counts best-effort compensations attempted after a
	// partial failure.
	Compensations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "treasury_compensations_total",
		Help: "Compensating reversals attempted after partial failures.",
	})

	// Inconsistencies counts partial failures that compensation could not
	// repair. Should be zero; page if it is not.
	Inconsistencies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "treasury_inconsistencies_total",
		Help: "Unrepaired ledger inconsistencies requiring operator action.",
	})
)

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
