package metrics

import (
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	reg *prometheus.Registry

	Running prometheus.Gauge
	Ticks   prometheus.Counter
	Resets  prometheus.Counter

	Boardings    *prometheus.CounterVec // route label
	Disembarks   *prometheus.CounterVec // route label
	Rejections   *prometheus.CounterVec // action, reason labels
	TripDuration prometheus.Histogram

	NATSPublished   prometheus.Counter
	NATSPublishErrs prometheus.Counter
	NATSConnected   prometheus.Gauge

	WSClients prometheus.Gauge

	TickDuration    prometheus.Histogram
	PublishDuration prometheus.Histogram

	StepSize     prometheus.Gauge
	TickInterval prometheus.Gauge // seconds
	Routes       prometheus.Gauge
}

func NewCollector(stepSize float64, tickInterval time.Duration, routes int) *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Running: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_running",
			Help: "1 while the simulation ticker is running, 0 otherwise.",
		}),
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_ticks_total",
			Help: "Total simulation ticks.",
		}),
		Resets: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_resets_total",
			Help: "Total simulation resets.",
		}),
		Boardings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simulator_boardings_total",
			Help: "Passenger boardings per route.",
		}, []string{"route"}),
		Disembarks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simulator_disembarks_total",
			Help: "Passenger arrivals per route.",
		}, []string{"route"}),
		Rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "simulator_rejections_total",
			Help: "Rejected passenger actions by action and reason.",
		}, []string{"action", "reason"}),
		TripDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "simulator_trip_duration_seconds",
			Help:    "Time between boarding and arrival.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 10),
		}),
		NATSPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_nats_published_total",
			Help: "Total NATS messages published.",
		}),
		NATSPublishErrs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "simulator_nats_publish_errors_total",
			Help: "Total NATS publish errors.",
		}),
		NATSConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_nats_connected",
			Help: "1 if NATS connection is established, 0 otherwise.",
		}),
		WSClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_ws_clients",
			Help: "Connected websocket clients.",
		}),
		TickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "simulator_tick_duration_seconds",
			Help:    "Duration of simulation tick computations.",
			Buckets: prometheus.ExponentialBuckets(0.00001, 2, 15),
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "simulator_publish_duration_seconds",
			Help:    "Duration to marshal and publish a NATS message.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 15),
		}),
		StepSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_step_size",
			Help: "Fraction of a segment covered per tick.",
		}),
		TickInterval: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_tick_interval_seconds",
			Help: "Tick interval in seconds.",
		}),
		Routes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "simulator_routes",
			Help: "Number of configured routes.",
		}),
	}

	reg.MustRegister(
		c.Running, c.Ticks, c.Resets,
		c.Boardings, c.Disembarks, c.Rejections, c.TripDuration,
		c.NATSPublished, c.NATSPublishErrs, c.NATSConnected,
		c.WSClients, c.TickDuration, c.PublishDuration,
		c.StepSize, c.TickInterval, c.Routes,
	)

	c.StepSize.Set(stepSize)
	c.TickInterval.Set(tickInterval.Seconds())
	c.Routes.Set(float64(routes))

	return c
}

func (c *Collector) Handler() http.Handler { return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{}) }

// Serve starts an HTTP server exposing /metrics on the given address.
func (c *Collector) Serve(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()
	log.Printf("metrics listening on %s", addr)
	return srv
}
