package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// FulfillmentMetrics содержит метрики процесса выполнения заказов.
type FulfillmentMetrics struct {
	// Счётчики операций заказа
	ordersPlaced    prometheus.Counter
	ordersCancelled prometheus.Counter
	stockConflicts  prometheus.Counter

	// Счётчики решений по возвратам/обменам
	returnDecisions   *prometheus.CounterVec
	exchangeDecisions *prometheus.CounterVec

	// Счётчик сбоев доставки уведомлений
	notifyFailures prometheus.Counter

	// Гистограмма длительности оформления заказа
	checkoutDuration prometheus.Histogram

	// Gauge активных оформлений
	activeCheckouts prometheus.Gauge
}

// NewFulfillmentMetrics создаёт новый экземпляр метрик.
func NewFulfillmentMetrics() *FulfillmentMetrics {
	return newFulfillmentMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newFulfillmentMetricsWithRegisterer(registerer prometheus.Registerer) *FulfillmentMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &FulfillmentMetrics{
		ordersPlaced: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_orders_placed_total",
			Help: "Total number of orders successfully placed",
		}),
		ordersCancelled: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_orders_cancelled_total",
			Help: "Total number of orders cancelled",
		}),
		stockConflicts: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_stock_conflicts_total",
			Help: "Total number of checkouts rejected due to insufficient stock",
		}),
		returnDecisions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_return_decisions_total",
			Help: "Total number of return request decisions by outcome",
		}, []string{"outcome"}),
		exchangeDecisions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_exchange_decisions_total",
			Help: "Total number of exchange request decisions by outcome",
		}, []string{"outcome"}),
		notifyFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_notification_failures_total",
			Help: "Total number of notifications that failed to publish",
		}),
		checkoutDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "storefront_checkout_duration_seconds",
			Help:    "Duration of checkout confirmation in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
		}),
		activeCheckouts: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_active_checkouts",
			Help: "Number of checkout confirmations currently in flight",
		}),
	}
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}

// RecordOrderPlaced увеличивает счётчик оформленных заказов.
func (m *FulfillmentMetrics) RecordOrderPlaced() {
	m.ordersPlaced.Inc()
}

// RecordOrderCancelled увеличивает счётчик отменённых заказов.
func (m *FulfillmentMetrics) RecordOrderCancelled() {
	m.ordersCancelled.Inc()
}

// RecordStockConflict увеличивает счётчик отказов из-за нехватки стока.
func (m *FulfillmentMetrics) RecordStockConflict() {
	m.stockConflicts.Inc()
}

// RecordReturnDecision увеличивает счётчик решений по возвратам.
func (m *FulfillmentMetrics) RecordReturnDecision(outcome string) {
	m.returnDecisions.WithLabelValues(outcome).Inc()
}

// RecordExchangeDecision увеличивает счётчик решений по обменам.
func (m *FulfillmentMetrics) RecordExchangeDecision(outcome string) {
	m.exchangeDecisions.WithLabelValues(outcome).Inc()
}

// RecordNotifyFailure увеличивает счётчик сбоев уведомлений.
func (m *FulfillmentMetrics) RecordNotifyFailure() {
	m.notifyFailures.Inc()
}

// RecordCheckoutDuration записывает время подтверждения заказа.
func (m *FulfillmentMetrics) RecordCheckoutDuration(duration time.Duration) {
	m.checkoutDuration.Observe(duration.Seconds())
}

// RecordCheckoutStarted увеличивает количество активных оформлений.
func (m *FulfillmentMetrics) RecordCheckoutStarted() {
	m.activeCheckouts.Inc()
}

// RecordCheckoutFinished уменьшает количество активных оформлений.
func (m *FulfillmentMetrics) RecordCheckoutFinished() {
	m.activeCheckouts.Dec()
}
