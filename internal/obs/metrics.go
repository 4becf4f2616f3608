package obs

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Hyllekvist/dripdrops/internal/domain"
)

type Metrics struct {
	ReserveTotal  *prometheus.CounterVec   // result=granted|conflict|not_found|error
	FinalizeTotal *prometheus.CounterVec   // result=sold|hold_expired|already_sold|not_found|error
	OpLatency     *prometheus.HistogramVec // op=reserve|finalize
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ReserveTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "item_reserve_total",
				Help: "Total reserve attempts by result",
			},
			[]string{"result"},
		),
		FinalizeTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "item_finalize_total",
				Help: "Total finalize-sale attempts by result",
			},
			[]string{"result"},
		),
		OpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_op_latency_ms",
				Help:    "Latency of ledger operations (ms)",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1ms .. ~2048ms
			},
			[]string{"op"},
		),
	}

	reg.MustRegister(
		m.ReserveTotal,
		m.FinalizeTotal,
		m.OpLatency,
	)

	return m
}

// ObserveReserve records the outcome and latency of one reserve attempt.
// Safe on a nil receiver so services can run unmetered.
func (m *Metrics) ObserveReserve(start time.Time, err error) {
	if m == nil {
		return
	}
	m.ReserveTotal.WithLabelValues(reserveResult(err)).Inc()
	m.OpLatency.WithLabelValues("reserve").Observe(msSince(start))
}

// ObserveFinalize records the outcome and latency of one finalize attempt.
func (m *Metrics) ObserveFinalize(start time.Time, err error) {
	if m == nil {
		return
	}
	m.FinalizeTotal.WithLabelValues(finalizeResult(err)).Inc()
	m.OpLatency.WithLabelValues("finalize").Observe(msSince(start))
}

func reserveResult(err error) string {
	switch {
	case err == nil:
		return "granted"
	case errors.Is(err, domain.ErrItemConflict):
		return "conflict"
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrInvalidID):
		return "not_found"
	default:
		return "error"
	}
}

func finalizeResult(err error) string {
	switch {
	case err == nil:
		return "sold"
	case errors.Is(err, domain.ErrHoldExpired):
		return "hold_expired"
	case errors.Is(err, domain.ErrAlreadySold):
		return "already_sold"
	case errors.Is(err, domain.ErrItemNotFound), errors.Is(err, domain.ErrInvalidID):
		return "not_found"
	default:
		return "error"
	}
}

func msSince(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
