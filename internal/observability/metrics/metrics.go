package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "delco_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	refreshCycles  *prometheus.CounterVec
	refreshLatency *prometheus.HistogramVec

	documentsFetched prometheus.Counter
	recordsSkipped   *prometheus.CounterVec

	statisticsAppended *prometheus.CounterVec
	backfillDegraded   *prometheus.CounterVec

	exportTotal   *prometheus.CounterVec
	exportLatency *prometheus.HistogramVec

	accountBalance     prometheus.Gauge
	previousBalance    prometheus.Gauge
	latestBillAmount   prometheus.Gauge
	latestPayment      prometheus.Gauge
	latestMonthlyUsage prometheus.Gauge
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		refreshCycles = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "refresh_cycles_total",
				Help: "Total refresh cycles by result",
			},
			[]string{"result"},
		)
		refreshLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "refresh_latency_seconds",
				Help:    "Refresh cycle latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		documentsFetched = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "bill_documents_fetched_total",
				Help: "Total bill documents retrieved",
			},
		)
		recordsSkipped = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "bill_records_skipped_total",
				Help: "Total billing records skipped by reason",
			},
			[]string{"reason"},
		)

		statisticsAppended = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "statistics_points_appended_total",
				Help: "Total statistics points appended by series",
			},
			[]string{"series"},
		)
		backfillDegraded = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "backfill_degraded_total",
				Help: "Total full backfills forced by resume state loss",
			},
			[]string{"series"},
		)

		exportTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_total",
				Help: "Total billing exports by format and result",
			},
			[]string{"format", "result"},
		)
		exportLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "export_latency_seconds",
				Help:    "Billing export latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format", "result"},
		)

		accountBalance = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "account_balance_dollars",
			Help: "Balance due on the account",
		})
		previousBalance = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "previous_balance_dollars",
			Help: "Balance carried from the previous bill",
		})
		latestBillAmount = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "latest_bill_dollars",
			Help: "Amount of the latest issued bill",
		})
		latestPayment = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "latest_payment_dollars",
			Help: "Latest payment received, as a positive amount",
		})
		latestMonthlyUsage = prometheus.NewGauge(prometheus.GaugeOpts{
			Name: metricPrefix + "latest_monthly_usage_gallons",
			Help: "Metered usage of the latest reported month",
		})

		prometheus.MustRegister(
			refreshCycles,
			refreshLatency,
			documentsFetched,
			recordsSkipped,
			statisticsAppended,
			backfillDegraded,
			exportTotal,
			exportLatency,
			accountBalance,
			previousBalance,
			latestBillAmount,
			latestPayment,
			latestMonthlyUsage,
		)

		if db != nil {
			registerDBMetrics(db, logger)
		}
	})
}

// ObserveRefreshCycle records refresh cycle duration and result.
func ObserveRefreshCycle(result string, duration time.Duration) {
	if result == "" {
		result = resultSuccess
	}
	if refreshCycles != nil {
		refreshCycles.WithLabelValues(result).Inc()
	}
	if refreshLatency != nil {
		refreshLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}

// AddDocumentsFetched increments the retrieved document counter by count.
func AddDocumentsFetched(count int) {
	if count <= 0 {
		return
	}
	if documentsFetched != nil {
		documentsFetched.Add(float64(count))
	}
}

// AddRecordsSkipped increments the skip counter by count.
func AddRecordsSkipped(reason string, count int) {
	if count <= 0 {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	if recordsSkipped != nil {
		recordsSkipped.WithLabelValues(reason).Add(float64(count))
	}
}

// AddStatisticsAppended increments the appended point counter by count.
func AddStatisticsAppended(series string, count int) {
	if count <= 0 {
		return
	}
	if series == "" {
		series = "unknown"
	}
	if statisticsAppended != nil {
		statisticsAppended.WithLabelValues(series).Add(float64(count))
	}
}

// IncBackfillDegraded counts a cycle that lost its resume state.
func IncBackfillDegraded(series string) {
	if series == "" {
		series = "unknown"
	}
	if backfillDegraded != nil {
		backfillDegraded.WithLabelValues(series).Inc()
	}
}

// SetAccountSnapshot publishes the account figures of the latest cycle.
func SetAccountSnapshot(balance, previous, latestBill, payment float64, usageGallons int64) {
	if accountBalance != nil {
		accountBalance.Set(balance)
	}
	if previousBalance != nil {
		previousBalance.Set(previous)
	}
	if latestBillAmount != nil {
		latestBillAmount.Set(latestBill)
	}
	if latestPayment != nil {
		latestPayment.Set(payment)
	}
	if latestMonthlyUsage != nil {
		latestMonthlyUsage.Set(float64(usageGallons))
	}
}

// ObserveExport records export latency and result.
func ObserveExport(format, result string, duration time.Duration) {
	if format == "" {
		format = "unknown"
	}
	if result == "" {
		result = resultSuccess
	}
	if exportTotal != nil {
		exportTotal.WithLabelValues(format, result).Inc()
	}
	if exportLatency != nil {
		exportLatency.WithLabelValues(format, result).Observe(duration.Seconds())
	}
}

// Exported constants for callers.
const (
	ResultSuccess = resultSuccess
	ResultError   = resultError
)
