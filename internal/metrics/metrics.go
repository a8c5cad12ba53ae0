// Package metrics registers the prometheus collectors of the lending service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type HTTPMetrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
}

type LendingMetrics struct {
	LoanTransitions    *prometheus.CounterVec
	SchedulesGenerated prometheus.Counter
	PaymentsApplied    *prometheus.CounterVec
	IncomeRecognized   prometheus.Counter
	IncomeAmount       prometheus.Counter
	EntriesMarkedLate  prometheus.Counter
	QuoteCache         *prometheus.CounterVec
}

var (
	HTTP = HTTPMetrics{
		RequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lending_http_requests_total",
				Help: "Total number of HTTP requests received.",
			},
			[]string{"method", "path", "code"},
		),
		RequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "lending_http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path", "code"},
		),
	}

	Lending = LendingMetrics{
		LoanTransitions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lending_loan_transitions_total",
				Help: "Loan lifecycle transitions by event.",
			},
			[]string{"event"},
		),
		SchedulesGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lending_schedules_generated_total",
			Help: "Payment schedules persisted.",
		}),
		PaymentsApplied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lending_payments_applied_total",
				Help: "Payments applied to schedule entries by resulting status.",
			},
			[]string{"status"},
		),
		IncomeRecognized: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lending_income_records_total",
			Help: "Interest income records emitted.",
		}),
		IncomeAmount: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lending_income_amount_total",
			Help: "Sum of recognized interest income.",
		}),
		EntriesMarkedLate: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lending_schedule_entries_overdue_total",
			Help: "Schedule entries flagged overdue by the sweep.",
		}),
		QuoteCache: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lending_quote_cache_lookups_total",
				Help: "Amortization quote cache lookups by result.",
			},
			[]string{"result"},
		),
	}
)
