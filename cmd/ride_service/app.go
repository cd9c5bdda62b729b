package rideservice

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"ride-hail/internal/domain/ride"
	"ride-hail/internal/general/config"
	"ride-hail/internal/general/contracts"
	"ride-hail/internal/general/jwt"
	"ride-hail/internal/general/logger"
	"ride-hail/internal/general/postgres"
	"ride-hail/internal/general/push"
	"ride-hail/internal/general/rabbitmq"
	"ride-hail/internal/general/websocket"
	"ride-hail/internal/ports"
	"ride-hail/internal/software/dispatch"
	"ride-hail/internal/software/driverauth"
	"ride-hail/internal/software/presence"
	"ride-hail/internal/software/ridestate"
	"ride-hail/internal/software/wallet"
	"ride-hail/internal/software/workinghours"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Run wires the ride service and blocks until ctx is cancelled. This is the
// sole owner of the realtime gateway and every piece of in-memory soft
// state (the dispatch dedup registry, the dispatch pricing cache,
// working-hours timers, presence fix-routing); driver_location_service
// and admin_service never hold any of it.
func Run(ctx context.Context, maxConcurrent int) error {
	// set up a new logger and context for ride service with a static request ID for startup logs
	logger := logger.New("ride-service")
	ctx = logger.WithRequestID(ctx, "startup-001")

	// load a config from file
	cfg, err := config.LoadFromFile("config/config.yaml")
	if err != nil {
		logger.Error(ctx, "config_load_failed", "Failed to load configuration", err, nil)
		return err
	}

	// set up a Postgres connection pool
	pool, err := postgres.NewPool(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "db_connection_failed", "Failed to initialize Postgres pool", err, nil)
		return err
	}
	defer pool.Close()

	// set up the JWT manager
	jwtManager := jwt.NewManager(cfg.JWT.SecretKey, 2*time.Hour)

	// set up the necessary repos
	uow := postgres.NewUnitOfWork(pool)
	rideRepo := postgres.NewRideRepo()
	driverRepo := postgres.NewDriverRepo()
	userRepo := postgres.NewUserRepo()
	sequenceRepo := postgres.NewSequenceRepo()
	pricingRepo := postgres.NewPricingRepo()
	txRepo := postgres.NewTransactionRepo()

	// the hub is wired after the services below, but the services need a
	// handle to it as their Notifier — break the cycle with a forwarding
	// shim that's filled in once the hub exists.
	notifier := &hubNotifier{}
	pushSender := push.NewLogSender(logger)

	dispatchSvc := dispatch.NewDispatchService(logger, uow, rideRepo, driverRepo, sequenceRepo, pricingRepo, notifier, pushSender)
	if err := dispatchSvc.LoadPricing(ctx); err != nil {
		logger.Error(ctx, "pricing_load_failed", "Failed to hydrate pricing cache", err, nil)
		return err
	}

	rideStateSvc := ridestate.NewRideStateService(logger, uow, rideRepo, driverRepo, userRepo, txRepo, pricingRepo, notifier)
	workingHoursSvc := workinghours.NewWorkingHoursService(logger, uow, driverRepo, txRepo, notifier)
	if err := workingHoursSvc.Recover(ctx); err != nil {
		logger.Error(ctx, "working_hours_recover_failed", "Failed to recover in-flight shift timers", err, nil)
		return err
	}
	presenceSvc := presence.NewPresenceService(logger, driverRepo, rideRepo, notifier)
	walletSvc := wallet.NewWalletService(uow, driverRepo, userRepo, txRepo)
	driverAuthSvc := driverauth.NewService(driverRepo, jwtManager, logger)

	// connect to RabbitMQ to receive location fixes relayed by
	// driver_location_service over the fanout exchange (spec §4.4's
	// "location broadcast" dependency), since a driver may be updating its
	// position through that REST surface instead of this process's
	// websocket connection.
	rmq, err := rabbitmq.ConnectRabbitMQ(ctx, cfg, logger)
	if err != nil {
		logger.Error(ctx, "rabbitmq_connection_failed", "Failed to connect to RabbitMQ", err, nil)
		return err
	}
	defer rmq.Close()
	go runLocationRelayConsumer(ctx, rmq, logger, presenceSvc)

	hub := websocket.NewHub(logger, jwtManager, websocket.Deps{
		Dispatch:     dispatchSvc,
		RideState:    rideStateSvc,
		Presence:     presenceSvc,
		WorkingHours: workingHoursSvc,
		Wallet:       walletSvc,
		DriverRepo:   driverRepo,
		PricingRepo:  pricingRepo,
	})
	notifier.hub = hub

	// set up the HTTP handler and its routes
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ws/driver", hub.ConnectDriver)
	mux.HandleFunc("GET /ws/passenger", hub.ConnectPassenger)

	ridestate.NewHTTPHandler(rideStateSvc, driverRepo, logger, jwtManager).RegisterRoutes(mux)
	workinghours.NewHTTPHandler(workingHoursSvc, logger, jwtManager).RegisterRoutes(mux)
	dispatch.NewHTTPHandler(dispatchSvc, logger, jwtManager).RegisterRoutes(mux)
	wallet.NewHTTPHandler(walletSvc, logger, jwtManager).RegisterRoutes(mux)
	driverauth.NewHTTPHandler(driverAuthSvc, logger).RegisterRoutes(mux)

	// concurrency limiter (global) — blocks when capacity is full
	limitedHandler := withConcurrencyLimit(maxConcurrent, mux)

	// set up the server configurations
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Services.RideServicePort),  // listen on the specified port
		Handler:           limitedHandler,                                    // apply the concurrency limiter to the HTTP handler
		ReadHeaderTimeout: 5 * time.Second,                                   // time to read headers
		ReadTimeout:       10 * time.Second,                                  // time to read full request body
		WriteTimeout:      15 * time.Second,                                  // full response write timeout
		IdleTimeout:       60 * time.Second,                                  // keep-alive window
		BaseContext:       func(net.Listener) context.Context { return ctx }, // pass base ctx to all handlers
	}

	// log service start
	logger.Info(ctx, "service_started",
		fmt.Sprintf("Ride Service started on port %d", cfg.Services.RideServicePort),
		map[string]any{"port": cfg.Services.RideServicePort, "max_concurrent": maxConcurrent},
	)

	// start the server in a background goroutine
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	// wait for context cancellation or server error
	select {
	case <-ctx.Done():
		// graceful HTTP shutdown on context cancel
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info(ctx, "service_stopping", "Starting graceful shutdown", nil)
		if err := srv.Shutdown(shCtx); err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_shutdown_failed", "Failed to gracefully shut down HTTP server", err, nil)
		}
	case err := <-errCh:
		// server returned a terminal error at startup or during run
		if err != nil && err != http.ErrServerClosed {
			logger.Error(ctx, "http_server_error", "HTTP server terminated with error", err, map[string]any{"port": cfg.Services.RideServicePort})
			return err
		}
		return nil
	}

	return nil
}

// runLocationRelayConsumer drains QueueLocationUpdatesRide and forwards each
// fix into the Presence Registry so a driver using the REST location-ingest
// surface still reaches the passenger over the realtime gateway.
func runLocationRelayConsumer(ctx context.Context, rmq *rabbitmq.Client, log *logger.Logger, presenceSvc ports.PresenceService) {
	err := rmq.Consume(ctx, contracts.QueueLocationUpdatesRide, "ride-service-location-relay", 10,
		func(hCtx context.Context, d amqp.Delivery) error {
			var msg contracts.LocationUpdateMessage
			if err := json.Unmarshal(d.Body, &msg); err != nil {
				log.Error(hCtx, "location_relay_decode_failed", "Failed to decode location fanout message", err, nil)
				return nil
			}
			return presenceSvc.UpdateLocation(hCtx, ports.UpdateLocationInput{
				SubjectID: msg.DriverID,
				IsDriver:  true,
				Location:  ride.Point{Lat: msg.Location.Lat, Lng: msg.Location.Lng},
			})
		})
	if err != nil && ctx.Err() == nil {
		log.Error(ctx, "location_relay_consumer_stopped", "Location relay consumer exited", err, nil)
	}
}

// hubNotifier forwards to the Hub once it's constructed, breaking the
// construction cycle between the software services (which need a
// Notifier) and the hub (which needs the software services).
type hubNotifier struct {
	hub *websocket.Hub
}

func (n *hubNotifier) BroadcastToRoom(room, event string, data any, excludeID string) {
	n.hub.BroadcastToRoom(room, event, data, excludeID)
}

func (n *hubNotifier) SendToDriver(driverID, event string, data any) bool {
	return n.hub.SendToDriver(driverID, event, data)
}

func (n *hubNotifier) SendToPassenger(passengerID, event string, data any) bool {
	return n.hub.SendToPassenger(passengerID, event, data)
}

func (n *hubNotifier) IsDriverConnected(driverID string) bool {
	return n.hub.IsDriverConnected(driverID)
}

// withConcurrencyLimit wraps an http.Handler with a semaphore-based limiter.
// It controls how many HTTP requests can be in-progress at the same time.
func withConcurrencyLimit(n int, next http.Handler) http.Handler {
	if n <= 0 {
		return next
	}
	sem := make(chan struct{}, n)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case sem <- struct{}{}: // acquire
			defer func() { <-sem }() // release
			next.ServeHTTP(w, r)
		case <-r.Context().Done():
			// client canceled or server is shutting down
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		}
	})
}
