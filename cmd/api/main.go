package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"escrowgate/config"
	"escrowgate/db"
	"escrowgate/gateway"
	"escrowgate/httpapi"
	"escrowgate/logger"
	"escrowgate/nonce"
	"escrowgate/payout"
	"escrowgate/storefront"
	"escrowgate/tradesafe"
	"escrowgate/withdrawal"
)

func main() {
	log := logger.New(os.Getenv("LOG_LEVEL"))

	cfg, err := config.Load("")
	if err != nil {
		log.Error("config load failed", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DB.DSN)
	if err != nil {
		log.Error("database pool failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// An unconfigured client leaves the gateway in its unavailable state
	// rather than refusing to boot.
	var client tradesafe.Client
	if cfg.HasCredentials() {
		client = tradesafe.NewHTTPClient(
			cfg.TradeSafe.APIURL,
			cfg.TradeSafe.AuthURL,
			cfg.TradeSafe.ClientID,
			cfg.TradeSafe.ClientSecret,
		)
	} else {
		log.Warn("tradesafe credentials missing; gateway disabled")
	}

	store := storefront.NewRepository(pool)
	urls := storefront.NewURLs(cfg.Site.URL)

	gatewaySvc := gateway.NewService(client, store, urls, gateway.Settings{
		Enabled:          cfg.Gateway.Enabled,
		Production:       cfg.TradeSafe.Production,
		HasCredentials:   cfg.HasCredentials(),
		Currencies:       cfg.Gateway.Currencies,
		MarketplaceSplit: cfg.Gateway.MarketplaceSplit,
		Industry:         cfg.Gateway.Industry,
		FeeAllocation:    cfg.Gateway.FeeAllocation,
	}).WithLogger(log)
	payoutSvc := payout.NewService(client, store).
		WithDefaultInterval(cfg.Gateway.DefaultPayoutMethod)
	withdrawalSvc := withdrawal.NewService(client, withdrawal.NewRepository(pool), store).
		WithLogger(log)
	nonceSvc := nonce.NewService(cfg.Nonce.Secret)

	handler := httpapi.NewHandler(gatewaySvc, payoutSvc, withdrawalSvc, nonceSvc)
	srv := httpapi.NewServer(handler)

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: srv.Router,
	}

	go func() {
		log.Info("api listening", "addr", cfg.Server.Addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}
