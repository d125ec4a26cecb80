package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings. Values come from the environment
// (optionally seeded from a .env file) with sane defaults for local play.
type Config struct {
	Addr      string
	ClientDir string
	DBPath    string

	TickRate         int // simulation ticks per second
	CountdownSeconds int
	ResetSeconds     int

	// Room IDs listed here use the legacy host-relay protocol instead of
	// the server-authoritative tick.
	RelayRooms map[string]bool
}

// LoadConfig reads settings from .env and the environment.
func LoadConfig() *Config {
	_ = godotenv.Load() // missing .env is fine

	cfg := &Config{
		Addr:             envStr("ADDR", ":3001"),
		ClientDir:        envStr("CLIENT_DIR", "public"),
		DBPath:           envStr("DB_PATH", "flappy.db"),
		TickRate:         envInt("TICK_RATE", 60),
		CountdownSeconds: envInt("COUNTDOWN_SECONDS", 3),
		ResetSeconds:     envInt("RESET_SECONDS", 3),
		RelayRooms:       make(map[string]bool),
	}

	for _, id := range strings.Split(envStr("RELAY_ROOMS", ""), ",") {
		id = strings.TrimSpace(id)
		if id != "" {
			cfg.RelayRooms[id] = true
		}
	}

	if cfg.TickRate <= 0 {
		cfg.TickRate = 60
	}
	return cfg
}

// TickInterval returns the scheduler period.
func (c *Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRate)
}

// ResetDelay returns how long final scores stay visible after a game ends.
func (c *Config) ResetDelay() time.Duration {
	return time.Duration(c.ResetSeconds) * time.Second
}

func envStr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
