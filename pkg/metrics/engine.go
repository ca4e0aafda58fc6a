package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics records order fulfillment and bulk upload outcomes.
type EngineMetrics struct {
	ordersCreated  prometheus.Counter
	orderRejected  *prometheus.CounterVec
	uploadBatches  *prometheus.CounterVec
	uploadRowsSeen *prometheus.CounterVec
}

// NewEngineMetrics registers the engine metrics on the provided registerer.
// A nil registerer yields a no-op recorder, matching how tests construct
// services without a registry.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	if reg == nil {
		return &EngineMetrics{}
	}
	ordersCreated := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Orders committed with their full line set.",
	})
	orderRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Order requests rejected, by error code.",
	}, []string{"reason"})
	uploadBatches := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upload_batches_total",
		Help: "Bulk upload batches, by kind and outcome.",
	}, []string{"kind", "outcome"})
	uploadRowsSeen := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "upload_rows_total",
		Help: "Data rows observed in bulk uploads, by kind.",
	}, []string{"kind"})
	reg.MustRegister(ordersCreated, orderRejected, uploadBatches, uploadRowsSeen)
	return &EngineMetrics{
		ordersCreated:  ordersCreated,
		orderRejected:  orderRejected,
		uploadBatches:  uploadBatches,
		uploadRowsSeen: uploadRowsSeen,
	}
}

// IncOrderCreated counts one committed order.
func (m *EngineMetrics) IncOrderCreated() {
	if m == nil || m.ordersCreated == nil {
		return
	}
	m.ordersCreated.Inc()
}

// IncOrderRejected counts one rejected order request under the given reason.
func (m *EngineMetrics) IncOrderRejected(reason string) {
	if m == nil || m.orderRejected == nil {
		return
	}
	m.orderRejected.WithLabelValues(normalizeLabel(reason)).Inc()
}

// IncUploadBatch counts one upload batch outcome ("accepted" or "rejected").
func (m *EngineMetrics) IncUploadBatch(kind, outcome string) {
	if m == nil || m.uploadBatches == nil {
		return
	}
	m.uploadBatches.WithLabelValues(normalizeLabel(kind), normalizeLabel(outcome)).Inc()
}

// AddUploadRows counts data rows observed for the given upload kind.
func (m *EngineMetrics) AddUploadRows(kind string, rows int) {
	if m == nil || m.uploadRowsSeen == nil || rows <= 0 {
		return
	}
	m.uploadRowsSeen.WithLabelValues(normalizeLabel(kind)).Add(float64(rows))
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
