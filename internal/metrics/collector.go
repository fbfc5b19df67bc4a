package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"pgmigrator/internal/progress"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Collector collects and exposes metrics
type Collector struct {
	registry        *prometheus.Registry
	processedTotal  prometheus.Counter
	errorsTotal     prometheus.Counter
	speed           prometheus.Gauge
	batchDuration   prometheus.Histogram
	progressTracker *progress.Tracker
	server          *http.Server
}

// New creates a new metrics collector with its own registry
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		processedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "migrator_processed_total",
				Help: "Total number of records migrated",
			},
		),
		errorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "migrator_errors_total",
				Help: "Total number of failed batches",
			},
		),
		speed: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "migrator_speed",
				Help: "Migration speed in records per second",
			},
		),
		batchDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "migrator_batch_duration_seconds",
				Help:    "Time taken to transfer one batch",
				Buckets: prometheus.DefBuckets,
			},
		),
		progressTracker: progress.NewTracker(),
	}

	c.registry.MustRegister(
		c.processedTotal,
		c.errorsTotal,
		c.speed,
		c.batchDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

// AddProcessed adds committed records
func (c *Collector) AddProcessed(n int) {
	c.processedTotal.Add(float64(n))
	c.progressTracker.AddProcessed(int64(n))
}

// IncErrors increments the failed batch counter
func (c *Collector) IncErrors() {
	c.errorsTotal.Inc()
	c.progressTracker.AddFailed()
}

// SetSpeed sets the records/second gauge
func (c *Collector) SetSpeed(recordsPerSecond float64) {
	c.speed.Set(recordsPerSecond)
}

// ObserveBatchDuration observes one batch transfer duration
func (c *Collector) ObserveBatchDuration(d time.Duration) {
	c.batchDuration.Observe(d.Seconds())
}

// SetTotal sets the record total for progress tracking
func (c *Collector) SetTotal(n int) {
	c.progressTracker.SetTotal(int64(n))
}

// Registry returns the registry holding the migration metrics
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler returns the /metrics handler for this collector
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartServer binds addr and serves /metrics in the background.
// It returns the bound address, useful when addr uses port 0.
func (c *Collector) StartServer(addr string, logger *zap.Logger) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", addr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	c.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := c.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	return ln.Addr(), nil
}

// Shutdown stops the metrics server if it was started
func (c *Collector) Shutdown(ctx context.Context) error {
	if c.server == nil {
		return nil
	}
	return c.server.Shutdown(ctx)
}

// GetProgressTracker returns the progress tracker
func (c *Collector) GetProgressTracker() *progress.Tracker {
	return c.progressTracker
}
