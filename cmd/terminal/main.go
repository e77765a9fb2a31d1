package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"tiendafacil/terminal/internal/cache"
	"tiendafacil/terminal/internal/config"
	"tiendafacil/terminal/internal/connectivity"
	"tiendafacil/terminal/internal/httpapi"
	"tiendafacil/terminal/internal/localstore"
	"tiendafacil/terminal/internal/products"
	"tiendafacil/terminal/internal/remote"
	"tiendafacil/terminal/internal/remote/memory"
	pgremote "tiendafacil/terminal/internal/remote/postgres"
	"tiendafacil/terminal/internal/sales"
	"tiendafacil/terminal/internal/stats"
)

func main() {
	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	closers := make([]func() error, 0, 3)

	local, err := localstore.Open(cfg.LocalDBPath)
	if err != nil {
		log.Fatalf("local store: %v", err)
	}
	closers = append(closers, local.Close)
	log.Printf("local store: %s", cfg.LocalDBPath)

	// A crash mid-drain leaves queue entries stuck in processing; put them
	// back in the drainable set before the monitor starts.
	if recovered, err := local.RecoverProcessingOperations(); err != nil {
		log.Fatalf("recover queue: %v", err)
	} else if recovered > 0 {
		log.Printf("recovered %d interrupted queue operations", recovered)
	}

	var rem remote.Store
	var blobs remote.BlobStore
	if cfg.DatabaseURL != "" {
		pg, err := pgremote.New(ctx, cfg.DatabaseURL)
		if err != nil {
			// The terminal is offline-first: an unreachable backend at
			// boot is a normal condition, not a startup failure.
			log.Printf("remote store unreachable at startup (%v); starting offline", err)
			pg, err = pgremote.NewLazy(cfg.DatabaseURL)
			if err != nil {
				log.Fatalf("remote store: %v", err)
			}
			rem, blobs = pg, pg
			closers = append(closers, pg.Close)
		} else {
			rem, blobs = pg, pg
			closers = append(closers, pg.Close)
			log.Println("remote store: postgres")
		}
	} else {
		mem := memory.New()
		rem, blobs = mem, mem
		log.Println("remote store: in-memory")
	}

	statsCache := cache.StatsCache(cache.NoopCache{})
	if cfg.RedisAddr != "" {
		redisCache, err := cache.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, time.Duration(cfg.StatsTTLSeconds)*time.Second)
		if err != nil {
			log.Printf("redis unavailable (%v), using noop cache", err)
		} else {
			statsCache = redisCache
			closers = append(closers, redisCache.Close)
			log.Println("cache: redis")
		}
	} else {
		log.Println("cache: noop")
	}

	monitor := connectivity.New(rem, connectivity.LogNotifier{}, time.Duration(cfg.ConnectivityProbeSecs)*time.Second)
	engine := stats.NewEngine(statsCache)
	productStore := products.New(local, rem, blobs, monitor)
	saleStore := sales.New(local, rem, productStore, monitor, engine)

	// The sales drain runs the products drain first internally, so one
	// registration covers both queues on every reconnect.
	monitor.OnOnline(saleStore.SyncPendingSales)

	runCtx, stopMonitor := context.WithCancel(context.Background())
	defer stopMonitor()
	monitor.Start(runCtx)

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.AdminUsername, cfg.AdminPasswordHash)
	api := httpapi.New(productStore, saleStore, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("terminal listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	stopMonitor()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.Printf("close error: %v", err)
		}
	}

	log.Println("terminal stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if cfg.AdminPasswordHash == "" {
		return fmt.Errorf("ADMIN_PASSWORD_HASH must be set to a bcrypt hash")
	}
	return nil
}
