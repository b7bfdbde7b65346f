package main

import (
	"context"
	"log"
	"math/rand/v2"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"bus-simulator/internal/config"
	"bus-simulator/internal/db"
	"bus-simulator/internal/handler"
	"bus-simulator/internal/hub"
	"bus-simulator/internal/metrics"
	"bus-simulator/internal/publisher"
	"bus-simulator/internal/sim"
	"bus-simulator/internal/transit"
)

func main() {
	// Load configuration from .env and environment
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// Root context with cancellation on SIGINT/SIGTERM
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	network, err := loadNetwork(ctx, cfg)
	if err != nil {
		log.Fatalf("route configuration error: %v", err)
	}

	opts := []sim.Option{sim.WithStepSize(cfg.StepSize)}
	if cfg.ETASeed != 0 {
		opts = append(opts, sim.WithRand(rand.New(rand.NewPCG(cfg.ETASeed, cfg.ETASeed))))
	}
	simulation, err := sim.New(network, opts...)
	if err != nil {
		log.Fatalf("simulation error: %v", err)
	}
	log.Printf("loaded %d routes; passenger waiting at %q for %q", len(network.Routes), network.Pickup.Name, network.Destination.Name)

	// Metrics setup
	var mcol *metrics.Collector
	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mcol = metrics.NewCollector(cfg.StepSize, cfg.TickInterval, len(network.Routes))
		metricsSrv = mcol.Serve(cfg.MetricsAddr)
	}

	wsHub := hub.NewHub(wrapHubMetrics(mcol))
	mgr := sim.NewManager(simulation, cfg.TickInterval, mcol, wsHub)

	// NATS is optional
	if cfg.NATSURL != "" {
		pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSSubjectPrefix, cfg.LogNATSSubjects, wrapPublisherMetrics(mcol), cfg.NATSStreamName)
		if err != nil {
			log.Fatalf("nats error: %v", err)
		}
		defer pub.Close()
		mgr.AddPublisher(pub)
	}

	go wsHub.Run(ctx)

	router := handler.NewRouter(
		handler.NewSimHandler(ctx, mgr),
		handler.NewWSHandler(ctx, wsHub, mgr),
		handler.NewHealthHandler(mgr),
	)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("http listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http server error: %v", err)
			cancel()
		}
	}()

	if cfg.AutoStart {
		mgr.Start(ctx)
	}

	// Block until context cancelled
	<-ctx.Done()
	mgr.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("http shutdown error: %v", err)
	}
	if metricsSrv != nil {
		_ = metricsSrv.Shutdown(shutdownCtx)
	}
	log.Println("shutdown complete")
}

// loadNetwork returns the routes from Postgres when a database is configured,
// else the built-in network.
func loadNetwork(ctx context.Context, cfg *config.Config) (transit.Network, error) {
	network := transit.DefaultNetwork()
	if cfg.DatabaseURL == "" {
		return network, nil
	}

	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return transit.Network{}, err
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		return transit.Network{}, err
	}

	routeSet := ""
	if cfg.City != "" {
		routeSet, err = db.ResolveLatestRouteSet(ctx, sqlDB, cfg.City)
		if err != nil {
			return transit.Network{}, err
		}
		log.Printf("Using route set %q for city %q", routeSet, cfg.City)
	}
	routes, err := db.FetchRoutes(ctx, sqlDB, routeSet)
	if err != nil {
		return transit.Network{}, err
	}

	network.Routes = routes
	pickup, ok := transit.ResolveStop(routes, cfg.PickupStop)
	if !ok {
		log.Printf("pickup stop %q not on any route; keeping %q", cfg.PickupStop, network.Pickup.Name)
	} else {
		network.Pickup = pickup
	}
	dest, ok := transit.ResolveStop(routes, cfg.DestinationStop)
	if !ok {
		log.Printf("destination stop %q not on any route; keeping %q", cfg.DestinationStop, network.Destination.Name)
	} else {
		network.Destination = dest
	}
	return network, network.Validate()
}

// wrapPublisherMetrics adapts our Collector to the PublisherMetrics interface.
func wrapPublisherMetrics(c *metrics.Collector) publisher.PublisherMetrics {
	if c == nil {
		return nil
	}
	return &pubMetrics{c: c}
}

type pubMetrics struct{ c *metrics.Collector }

func (p *pubMetrics) NATSPublishedInc()              { p.c.NATSPublished.Inc() }
func (p *pubMetrics) NATSPublishErrInc()             { p.c.NATSPublishErrs.Inc() }
func (p *pubMetrics) PublishObserve(d time.Duration) { p.c.PublishDuration.Observe(d.Seconds()) }
func (p *pubMetrics) NATSSetConnected(b bool) {
	if b {
		p.c.NATSConnected.Set(1)
	} else {
		p.c.NATSConnected.Set(0)
	}
}

func wrapHubMetrics(c *metrics.Collector) hub.Metrics {
	if c == nil {
		return nil
	}
	return hubMetrics{c: c}
}

type hubMetrics struct{ c *metrics.Collector }

func (h hubMetrics) SetClients(n int) { h.c.WSClients.Set(float64(n)) }
