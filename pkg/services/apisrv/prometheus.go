package apisrv

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics used in monitoring service.
var (
	apiCounter = map[string]prometheus.Counter{}
	apiTimes   = map[string]prometheus.Histogram{}
)

var instrumented = []string{
	"health",
	"create_account",
	"account_details",
	"approver_list",
	"propose_tx",
	"tx_stats",
	"tx_list",
	"add_signature",
	"consumable_notes",
}

func regCounter(call string) {
	ctr := prometheus.NewCounter(
		prometheus.CounterOpts{
			Help:      "Number of calls to the " + call + " api endpoint",
			Name:      call + "_called_total",
			Namespace: "multisig",
		},
	)
	prometheus.MustRegister(ctr)
	apiCounter[call] = ctr
	apiTimes[call] = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Help:      "API " + call + " call handling time",
			Name:      "api_" + call + "_time",
			Namespace: "multisig",
		},
	)
	prometheus.MustRegister(apiTimes[call])
}

func init() {
	for _, call := range instrumented {
		regCounter(call)
	}
}

// instrument wraps a handler with per-endpoint call counting and timing.
func (s *Server) instrument(call string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		h(w, r)
		if hist, ok := apiTimes[call]; ok {
			hist.Observe(time.Since(start).Seconds())
		}
		if ctr, ok := apiCounter[call]; ok {
			ctr.Inc()
		}
	}
}
