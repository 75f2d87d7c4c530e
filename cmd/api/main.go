package main

import (
	"context"
	"database/sql"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rathinamtrainers/google-adk-mcp-demo-1/internal/auth"
	"github.com/rathinamtrainers/google-adk-mcp-demo-1/internal/config"
	"github.com/rathinamtrainers/google-adk-mcp-demo-1/internal/httpapi"
	"github.com/rathinamtrainers/google-adk-mcp-demo-1/internal/obs"
)

var (
	version = "0.3.0"
	commit  = "dev"
)

func main() {
	obs.Init()
	obs.InitBuildInfo(version, commit)

	cfg := config.Load()

	var db *sql.DB
	var store auth.Store
	if cfg.PostgresDSN != "" {
		var err error
		db, err = sql.Open("pgx", cfg.PostgresDSN)
		if err != nil {
			log.Fatalf("open db: %v", err)
		}
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
		store = auth.NewPGStore(db)
	} else {
		// No DSN means local development; state lives in memory and
		// is lost on restart.
		log.Printf("MCP_PG_DSN not set, using in-memory store")
		store = auth.NewMemStore()
	}

	tokens, err := auth.NewTokens(cfg.JWTSecret,
		auth.WithAccessTTL(time.Duration(cfg.AccessTTLMinutes)*time.Minute),
		auth.WithRefreshTTL(time.Duration(cfg.RefreshTTLDays)*24*time.Hour),
	)
	if err != nil {
		log.Fatalf("tokens: %v", err)
	}

	svc, err := auth.NewService(store, tokens, auth.WithMode(cfg.EnforcementMode))
	if err != nil {
		log.Fatalf("service: %v", err)
	}

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer bootCancel()

	if err := svc.Seed(bootCtx); err != nil {
		log.Fatalf("seed roles: %v", err)
	}
	admin, err := svc.EnsureAdminUser(bootCtx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		log.Fatalf("ensure admin: %v", err)
	}
	if admin.APIKey != "" {
		// Printed once at first bootstrap; subsequent starts return
		// the existing user without a key.
		log.Printf("admin user %q created, api key: %s", admin.User.Username, admin.APIKey)
	}
	if cfg.SeedDemoUsers {
		seeded, err := svc.CreateDemoUsers(bootCtx)
		if err != nil {
			log.Fatalf("seed demo users: %v", err)
		}
		for _, su := range seeded {
			if su.APIKey != "" {
				log.Printf("demo user %q created, api key: %s", su.User.Username, su.APIKey)
			}
		}
	}

	// Tool bodies live with the MCP host; this service only gates access
	// to them. Without a dispatcher, execution endpoints answer 501.
	api := httpapi.New(svc, nil, httpapi.ReadyProbe{DB: db}, version)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.Handler(),
		ReadTimeout:       15 * time.Second,
		ReadHeaderTimeout: 15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Printf("Starting mcp-rbac-api %s (%s mode) on %s", version, svc.Mode(), srv.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	log.Println("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_ = srv.Shutdown(ctx)
	if db != nil {
		_ = db.Close()
	}
	log.Println("Stopped")
}
