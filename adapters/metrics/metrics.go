// Package metrics provides Prometheus metrics collection for shapekit.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/artpar/shapekit/core/jsoncodec"
	"github.com/artpar/shapekit/domain/document"
	"github.com/artpar/shapekit/ports"
)

const namespace = "shapekit"

// Collector holds all Prometheus metrics for shapekit.
type Collector struct {
	// Request metrics
	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RequestsInFlight prometheus.Gauge

	// Document metrics
	DocumentsStored       *prometheus.CounterVec
	DocumentsDeduplicated *prometheus.CounterVec
	DocumentsDeleted      prometheus.Counter
	StoreErrors           *prometheus.CounterVec

	// Codec metrics
	CodecErrors *prometheus.CounterVec

	// Registry metrics
	RegistryShapes       prometheus.Gauge
	RegistryReloads      prometheus.Counter
	RegistryReloadErrors prometheus.Counter
	RegistryLastReload   prometheus.Gauge
}

// New creates a new metrics collector registered with the default registry.
func New() *Collector {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates a new metrics collector with a custom registry.
func NewWithRegistry(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "requests_total",
				Help:      "Total number of requests processed",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "request_duration_seconds",
				Help:      "Request duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"method", "route"},
		),
		RequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "requests_in_flight",
				Help:      "Number of requests currently being processed",
			},
		),

		DocumentsStored: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_stored_total",
				Help:      "Total number of new documents stored",
			},
			[]string{"shape"},
		),
		DocumentsDeduplicated: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_deduplicated_total",
				Help:      "Total number of puts that matched an existing document",
			},
			[]string{"shape"},
		),
		DocumentsDeleted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "documents_deleted_total",
				Help:      "Total number of documents deleted",
			},
		),
		StoreErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_errors_total",
				Help:      "Total number of document store errors",
			},
			[]string{"op"},
		),

		CodecErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "codec_errors_total",
				Help:      "Total number of JSON read and write failures",
			},
			[]string{"op", "reason"},
		),

		RegistryShapes: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registry_shapes",
				Help:      "Number of registered record shapes",
			},
		),
		RegistryReloads: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_reloads_total",
				Help:      "Total number of successful definition reloads",
			},
		),
		RegistryReloadErrors: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registry_reload_errors_total",
				Help:      "Total number of failed definition reloads",
			},
		),
		RegistryLastReload: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "registry_last_reload_timestamp",
				Help:      "Unix timestamp of last successful definition reload",
			},
		),
	}
}

// RecordReload records the outcome of a definition reload.
func (c *Collector) RecordReload(shapes int, err error) {
	if err != nil {
		c.RegistryReloadErrors.Inc()
		return
	}
	c.RegistryReloads.Inc()
	c.RegistryShapes.Set(float64(shapes))
	c.RegistryLastReload.Set(float64(time.Now().Unix()))
}

// RecordCodecError counts a failed read or write by its sentinel reason.
func (c *Collector) RecordCodecError(op string, err error) {
	c.CodecErrors.WithLabelValues(op, CodecReason(err)).Inc()
}

// CodecReason maps a codec error to a low-cardinality label.
func CodecReason(err error) string {
	switch {
	case errors.Is(err, jsoncodec.ErrTypeMismatch):
		return "type_mismatch"
	case errors.Is(err, jsoncodec.ErrMissingField):
		return "missing_field"
	case errors.Is(err, jsoncodec.ErrUnknownField):
		return "unknown_field"
	case errors.Is(err, jsoncodec.ErrInvalidValue):
		return "invalid_value"
	default:
		return "syntax"
	}
}

// Store wraps a DocumentStore and records document metrics.
type Store struct {
	ports.DocumentStore
	c *Collector
}

// InstrumentStore wraps store with metrics from c.
func InstrumentStore(store ports.DocumentStore, c *Collector) *Store {
	return &Store{DocumentStore: store, c: c}
}

// Put records whether the put stored a new document or matched one.
func (s *Store) Put(ctx context.Context, shapeName string, value any) (document.Document, bool, error) {
	doc, created, err := s.DocumentStore.Put(ctx, shapeName, value)
	switch {
	case err != nil:
		s.c.StoreErrors.WithLabelValues("put").Inc()
	case created:
		s.c.DocumentsStored.WithLabelValues(shapeName).Inc()
	default:
		s.c.DocumentsDeduplicated.WithLabelValues(shapeName).Inc()
	}
	return doc, created, err
}

// Delete counts successful deletes.
func (s *Store) Delete(ctx context.Context, id string) error {
	err := s.DocumentStore.Delete(ctx, id)
	switch {
	case err == nil:
		s.c.DocumentsDeleted.Inc()
	case !errors.Is(err, document.ErrNotFound):
		s.c.StoreErrors.WithLabelValues("delete").Inc()
	}
	return err
}

var _ ports.DocumentStore = (*Store)(nil)
