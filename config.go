package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the server settings.
type Config struct {
	Addr            string
	Width, Height   float64
	Tick            time.Duration
	AsteroidDensity float64
	DBPath          string // empty disables persistence and pilot accounts
	JWTSecret       string
	Seed            int64 // 0 seeds from the clock
}

// LoadEnv reads an optional .env file. A missing file is not an error.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("load %s: %w", f, err)
		}
		log.Printf("config: loaded %s", f)
	}
	return nil
}

// ParseConfig parses args with defaults taken from the environment.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var c Config
	fs.StringVar(&c.Addr, "addr", envString("MMOSS_ADDR", ":12171"), "HTTP listen address")
	fs.Float64Var(&c.Width, "width", envFloat("MMOSS_WIDTH", 800), "arena width")
	fs.Float64Var(&c.Height, "height", envFloat("MMOSS_HEIGHT", 550), "arena height")
	fs.DurationVar(&c.Tick, "tick", envDuration("MMOSS_TICK", DefaultTickInterval), "simulation tick interval")
	fs.Float64Var(&c.AsteroidDensity, "asteroids", envFloat("MMOSS_ASTEROID_DENSITY", 0.005), "fraction of the arena covered by asteroids")
	fs.StringVar(&c.DBPath, "db", envString("MMOSS_DB", "mmoss.db"), "SQLite path (empty disables persistence)")
	fs.StringVar(&c.JWTSecret, "jwt-secret", envString("MMOSS_JWT_SECRET", ""), "pilot token signing secret")
	fs.Int64Var(&c.Seed, "seed", envInt("MMOSS_SEED", 0), "random seed (0 = time based)")
	if err := fs.Parse(args); err != nil {
		return c, err
	}
	return c, c.validate()
}

func (c Config) validate() error {
	if !finite(c.Width, c.Height, c.AsteroidDensity) {
		return fmt.Errorf("arena %gx%g and asteroid density %g must be finite", c.Width, c.Height, c.AsteroidDensity)
	}
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("arena must be positive, got %gx%g", c.Width, c.Height)
	}
	if c.Tick <= 0 {
		return fmt.Errorf("tick must be positive, got %v", c.Tick)
	}
	if c.AsteroidDensity < 0 || c.AsteroidDensity >= 1 {
		return fmt.Errorf("asteroid density must be in [0,1), got %g", c.AsteroidDensity)
	}
	return nil
}

func envString(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func envFloat(key string, def float64) float64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("config: ignoring %s=%q: %v", key, v, err)
		return def
	}
	return f
}

func envInt(key string, def int64) int64 {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		log.Printf("config: ignoring %s=%q: %v", key, v, err)
		return def
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v, ok := os.LookupEnv(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("config: ignoring %s=%q: %v", key, v, err)
		return def
	}
	return d
}
