// README: Entry point; loads config, wires services, starts HTTP server and the dispatch monitor.
package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"wasil/internal/config"
	httptransport "wasil/internal/http"
	"wasil/internal/infra"
	gmaps "wasil/internal/maps"
	"wasil/internal/modules/assignment"
	"wasil/internal/modules/coupon"
	"wasil/internal/modules/inventory"
	"wasil/internal/modules/order"
	"wasil/internal/modules/pricing"
	"wasil/internal/modules/worker"
	"wasil/internal/notify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Firebase.ProjectID == "" {
		log.Fatal("WASIL_FIREBASE_PROJECT_ID is required")
	}
	verifier, err := infra.NewFirebaseVerifier(ctx, cfg.Firebase.ProjectID, cfg.Firebase.CredentialsFile)
	if err != nil {
		log.Fatalf("firebase init: %v", err)
	}

	if err := infra.MigrateUp(cfg.DB.DSN, cfg.DB.MigrationsDir); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	dbPool, err := infra.NewDB(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal(err)
	}
	defer dbPool.Close()

	redisClient := infra.NewRedis(cfg.Redis.Addr)

	var sender notify.Sender = notify.Nop{}
	if cfg.Telegram.BotToken != "" {
		sender = notify.NewTelegram(cfg.Telegram.BotToken, dbPool)
	}

	pricingSvc := pricing.NewService(pricing.NewStore(dbPool))

	presence := worker.NewPresence(redisClient)
	workerSvc := worker.NewService(worker.NewStore(dbPool), presence, cfg.Worker)

	orderStore := order.NewStore(dbPool)
	deps := order.ServiceDeps{
		Inventory: inventory.NewLedger(),
		Coupons:   coupon.NewLedger(),
		Fees:      pricingSvc,
		Workers:   workerSvc,
		Notify:    sender,
	}
	if cfg.Maps.APIKey != "" {
		geocoder, err := gmaps.NewGeocodeService(cfg.Maps.APIKey)
		if err != nil {
			log.Fatalf("maps init: %v", err)
		}
		deps.Geocoder = geocoder
	}
	orderSvc := order.NewService(orderStore, deps)

	engine := assignment.NewEngine(orderStore, presence, sender)
	orderSvc.SetAssigner(engine)

	monitor := assignment.NewMonitor(orderStore, orderSvc, cfg.Dispatch)
	go monitor.Run(ctx)

	handler := httptransport.NewRouter(httptransport.RouterDeps{
		Order:    orderSvc,
		Workers:  workerSvc,
		Engine:   engine,
		Verifier: verifier,
	})
	server := &http.Server{Addr: cfg.HTTP.Addr, Handler: handler}

	go func() {
		<-ctx.Done()
		_ = server.Shutdown(context.Background())
	}()

	slog.Info("wasil api listening", "addr", cfg.HTTP.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal(err)
	}
}
