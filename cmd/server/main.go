package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"gridmatch/internal/config"
	"gridmatch/internal/gateway"
	"gridmatch/internal/identity"
	"gridmatch/internal/lobby"
	"gridmatch/internal/match"
	"gridmatch/internal/matchmgr"
	"gridmatch/internal/registry"
	"gridmatch/internal/restart"
	"gridmatch/internal/resume"
	"gridmatch/internal/store"
)

const (
	ServerVersion = "0.1.0"
	ServerName    = "Grid Match Server"
)

func main() {
	envFile := flag.String("env", "", "path to a custom .env file")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	cfg.LogConfig()

	log.Printf("%s v%s starting up...", cfg.ServerName, cfg.ServerVersion)

	st, err := store.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	var redisClient *redis.Client
	if cfg.RedisEnabled {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisURL})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to redis at %s: %v", cfg.RedisURL, err)
		}
		log.Printf("Connected to redis at %s", cfg.RedisURL)
	}

	oracle := identity.NewOracle(cfg, st)
	lobbySvc := lobby.NewService(st)
	reg := registry.New()
	resumes := resume.New(redisClient)
	restarts := restart.New()

	var gw *gateway.Gateway
	onMatchEvent := func(roomCode, matchID string, ev match.Event) {
		gw.OnMatchEvent(roomCode, matchID, ev)
	}
	matches := matchmgr.NewManager(0, 0, onMatchEvent)
	gw = gateway.New(cfg, oracle, lobbySvc, matches, restarts, resumes, reg)

	admin, err := gateway.NewAdmin(gw)
	if err != nil {
		log.Fatalf("Failed to initialize admin TOTP surface: %v", err)
	}

	sweepStop := make(chan struct{})
	go gw.StartSweeps(sweepStop)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", gw.HandleWS)
	admin.RegisterRoutes(mux)

	fs := http.FileServer(http.Dir("web/static"))
	mux.Handle("/", fs)

	httpServer := &http.Server{
		Addr:         cfg.ListenAddress(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Printf("%s v%s ready", cfg.ServerName, cfg.ServerVersion)
		log.Printf("WebSocket endpoint: ws://localhost:%d/ws", cfg.Port)
		log.Printf("Web client: http://localhost:%d/", cfg.Port)
		log.Println("Press Ctrl+C to shutdown")

		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	sig := <-sigChan
	log.Printf("\nReceived signal: %v", sig)
	performGracefulShutdown(httpServer, sweepStop, matches, cfg)
}

// performGracefulShutdown mirrors the teacher's staged shutdown sequence,
// adapted to this server's components: stop the sweep loop, end every live
// match, then shut down the HTTP server (which stops accepting sockets).
func performGracefulShutdown(httpServer *http.Server, sweepStop chan struct{}, matches *matchmgr.Manager, cfg *config.Config) {
	log.Printf("%s v%s shutting down...", cfg.ServerName, cfg.ServerVersion)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeoutSecs)*time.Second)
	defer cancel()

	log.Println("[1/3] Stopping background sweeps...")
	close(sweepStop)

	log.Printf("[2/3] Ending %d live match(es)...", matches.Count())
	matches.StopAll()

	log.Println("[3/3] Shutting down HTTP server...")
	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	log.Printf("%s v%s offline.", cfg.ServerName, cfg.ServerVersion)
}
