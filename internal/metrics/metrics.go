package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PaymentMetrics holds every collector the engine reports.
type PaymentMetrics struct {
	OrdersInitiatedTotal     *prometheus.CounterVec
	OrdersInitiatedAmount    *prometheus.CounterVec
	CreditAppliedTotal       prometheus.Counter
	CallbacksTotal           *prometheus.CounterVec
	SettlementsTotal         *prometheus.CounterVec
	MaterializeFailuresTotal *prometheus.CounterVec
	StorageRetriesTotal      *prometheus.CounterVec
	ConvergenceWaitSeconds   *prometheus.HistogramVec
	NotificationsTotal       *prometheus.CounterVec
}

// NewPaymentMetrics registers the collectors on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not panic.
func NewPaymentMetrics(reg prometheus.Registerer) *PaymentMetrics {
	factory := promauto.With(reg)

	return &PaymentMetrics{
		OrdersInitiatedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_orders_initiated_total",
				Help: "Orders persisted as INITIATED",
			},
			[]string{"booking_type"},
		),

		OrdersInitiatedAmount: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_orders_initiated_amount_total",
				Help: "Sum of final due amounts of initiated orders in INR",
			},
			[]string{"booking_type"},
		),

		CreditAppliedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "payment_credit_applied_amount_total",
				Help: "Partial-payment credit consumed by new orders in INR",
			},
		),

		CallbacksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_callbacks_total",
				Help: "Callbacks received by transport and outcome",
			},
			[]string{"transport", "outcome"},
		),

		SettlementsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_settlements_total",
				Help: "Transactions moved out of INITIATED by resulting status",
			},
			[]string{"booking_type", "status"},
		),

		MaterializeFailuresTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_materialize_failures_total",
				Help: "Materialization sub-steps that failed after retries",
			},
			[]string{"booking_type", "step"},
		),

		StorageRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_storage_retries_total",
				Help: "Retries of transient storage failures",
			},
			[]string{"step"},
		),

		ConvergenceWaitSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "payment_convergence_wait_seconds",
				Help:    "Time a redirect waited for the webhook to settle the order",
				Buckets: []float64{0.1, 0.5, 1, 2, 3, 4, 5, 6},
			},
			[]string{"settled"},
		),

		NotificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "payment_notifications_total",
				Help: "Admin notifications and confirmation emails by channel and result",
			},
			[]string{"channel", "result"},
		),
	}
}

func (m *PaymentMetrics) RecordOrderInitiated(bookingType string, amount, creditUsed float64) {
	m.OrdersInitiatedTotal.WithLabelValues(bookingType).Inc()
	m.OrdersInitiatedAmount.WithLabelValues(bookingType).Add(amount)
	if creditUsed > 0 {
		m.CreditAppliedTotal.Add(creditUsed)
	}
}

func (m *PaymentMetrics) RecordCallback(transport, outcome string) {
	m.CallbacksTotal.WithLabelValues(transport, outcome).Inc()
}

func (m *PaymentMetrics) RecordSettlement(bookingType, status string) {
	m.SettlementsTotal.WithLabelValues(bookingType, status).Inc()
}

func (m *PaymentMetrics) RecordMaterializeFailure(bookingType, step string) {
	m.MaterializeFailuresTotal.WithLabelValues(bookingType, step).Inc()
}

func (m *PaymentMetrics) RecordRetry(step string) {
	m.StorageRetriesTotal.WithLabelValues(step).Inc()
}

func (m *PaymentMetrics) RecordConvergenceWait(seconds float64, settled bool) {
	label := "false"
	if settled {
		label = "true"
	}
	m.ConvergenceWaitSeconds.WithLabelValues(label).Observe(seconds)
}

func (m *PaymentMetrics) RecordNotification(channel string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.NotificationsTotal.WithLabelValues(channel, result).Inc()
}
