package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fleep"

// Invoice paths.
const (
	PathBot    = "bot"
	PathWebApp = "webapp"
)

// Metrics holds all Prometheus metrics for the ledger. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	InvoicesIssued     *prometheus.CounterVec
	InvoiceFailures    *prometheus.CounterVec
	PaymentsCredited   prometheus.Counter
	CoinsCredited      prometheus.Counter
	PaymentDecodeFails prometheus.Counter
	PaymentDuplicates  prometheus.Counter
	BroadcastDelivered *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		InvoicesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoices_issued_total",
			Help:      "Invoices handed to the payment platform, by entry path.",
		}, []string{"path"}),
		InvoiceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invoice_failures_total",
			Help:      "Invoice requests that were rejected or failed, by path and reason.",
		}, []string{"path", "reason"}),
		PaymentsCredited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payments_credited_total",
			Help:      "Confirmed payments credited to the ledger.",
		}),
		CoinsCredited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coins_credited_total",
			Help:      "Coins credited to the ledger.",
		}),
		PaymentDecodeFails: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_decode_failures_total",
			Help:      "Confirmed payments whose token could not be decoded; need manual reconciliation.",
		}),
		PaymentDuplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payment_duplicates_total",
			Help:      "Redelivered payment confirmations that were ignored.",
		}),
		BroadcastDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcast_deliveries_total",
			Help:      "Broadcast delivery attempts, by result.",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		m.InvoicesIssued,
		m.InvoiceFailures,
		m.PaymentsCredited,
		m.CoinsCredited,
		m.PaymentDecodeFails,
		m.PaymentDuplicates,
		m.BroadcastDelivered,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)

	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}

	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) InvoiceIssued(path string) {
	if m == nil {
		return
	}

	m.InvoicesIssued.WithLabelValues(path).Inc()
}

func (m *Metrics) InvoiceFailed(path, reason string) {
	if m == nil {
		return
	}

	m.InvoiceFailures.WithLabelValues(path, reason).Inc()
}

func (m *Metrics) PaymentCredited(coins int64) {
	if m == nil {
		return
	}

	m.PaymentsCredited.Inc()
	m.CoinsCredited.Add(float64(coins))
}

func (m *Metrics) PaymentDecodeFailed() {
	if m == nil {
		return
	}

	m.PaymentDecodeFails.Inc()
}

func (m *Metrics) PaymentDuplicate() {
	if m == nil {
		return
	}

	m.PaymentDuplicates.Inc()
}

func (m *Metrics) BroadcastResult(delivered bool) {
	if m == nil {
		return
	}

	result := "failed"
	if delivered {
		result = "delivered"
	}

	m.BroadcastDelivered.WithLabelValues(result).Inc()
}
