package main

import (
	"flag"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

func main() {
	if err := LoadEnv(".env"); err != nil {
		log.Fatalf("config: %v", err)
	}
	cfg, err := ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var (
		db       *DB
		auth     *Auth
		recorder *Recorder
		sink     StatsSink
	)
	if cfg.DBPath != "" {
		db, err = OpenDB(cfg.DBPath)
		if err != nil {
			log.Fatalf("db: open %s: %v", cfg.DBPath, err)
		}
		defer db.Close()
		auth = NewAuth(db, cfg.JWTSecret)
		recorder = NewRecorder(db, 0)
		sink = recorder
	} else {
		log.Printf("db: persistence disabled")
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	world := NewWorld(Arena{W: cfg.Width, H: cfg.Height}, rand.New(rand.NewSource(seed)), NewPlayerStats(sink))
	n, err := world.SpawnAsteroids(WallClock(), cfg.AsteroidDensity)
	if err != nil {
		log.Fatalf("game: spawn asteroids: %v", err)
	}
	log.Printf("game: %gx%g arena, %d asteroids, tick %v", cfg.Width, cfg.Height, n, cfg.Tick)

	game := NewGame(world, WallClock, cfg.Tick)
	go game.Run()

	hub := NewHub(game, WallClock, db, auth)
	go hub.Run()

	mux := SetupRoutes(hub)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		log.Printf("Server starting on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	server.Close()
	game.Stop()
	if recorder != nil {
		recorder.Stop()
	}
}
