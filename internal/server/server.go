package server

import (
	"context"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/coder/quartz"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"casino/internal/cache"
	"casino/internal/database"
	"casino/internal/game"
	"casino/internal/ledger"
)

type FiberServer struct {
	*fiber.App

	db         database.Service
	cache      cache.Service
	ledger     ledger.Service
	roundClock *game.RoundClock
	tables     *game.TableEngine
	hub        *game.Hub
	factory    *game.Factory
}

func New() *FiberServer {
	// Initialize database
	db := database.New()

	// Initialize Redis cache
	redisService := cache.New()
	if redisService == nil {
		log.Fatal("[SERVER] Redis is required for game functionality")
	}

	lgr := ledger.New(db.Pool())

	// Initialize game components
	hub := game.NewHub()
	clk := quartz.NewReal()
	roundClock := game.NewRoundClock(clockConfigFromEnv(), hub, lgr, redisService.Rounds(), clk)
	tables := game.NewTableEngine(tableConfigFromEnv(), hub, lgr, clk)

	factory := game.NewFactory()
	factory.RegisterEngine(roundClock)
	factory.RegisterEngine(tables)

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "casino",
			AppName:       "casino",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:         db,
		cache:      redisService,
		ledger:     lgr,
		roundClock: roundClock,
		tables:     tables,
		hub:        hub,
		factory:    factory,
	}

	// Apply global middleware
	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	// Start game components
	go hub.Run()
	if err := factory.StartAll(context.Background()); err != nil {
		log.Printf("[SERVER] Failed to start game engines: %v", err)
	}

	log.Println("[SERVER] Hub and all game engines started")

	return server
}

// Shutdown gracefully shuts down the server and game components
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if s.factory != nil {
		if err := s.factory.StopAll(); err != nil {
			log.Printf("[SERVER] Error stopping game engines: %v", err)
		}
	}

	// Close connections
	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return nil
}

func clockConfigFromEnv() game.ClockConfig {
	cfg := game.DefaultClockConfig()
	cfg.BettingSeconds = getEnvAsInt("SICBO_BETTING_SECONDS", cfg.BettingSeconds)
	cfg.RevealSeconds = getEnvAsInt("SICBO_REVEAL_SECONDS", cfg.RevealSeconds)
	cfg.CooldownSeconds = getEnvAsInt("SICBO_COOLDOWN_SECONDS", cfg.CooldownSeconds)
	cfg.MinWager = getEnvAsInt64("SICBO_MIN_WAGER", cfg.MinWager)
	cfg.MaxWager = getEnvAsInt64("SICBO_MAX_WAGER", cfg.MaxWager)
	cfg.Paytable.ExactSumMultX100 = getEnvAsInt64("SICBO_EXACT_MULT_X100", cfg.Paytable.ExactSumMultX100)
	return cfg
}

func tableConfigFromEnv() game.TableConfig {
	cfg := game.DefaultTableConfig()
	cfg.DefaultCapacity = getEnvAsInt("BLACKJACK_CAPACITY", cfg.DefaultCapacity)
	cfg.MinWager = getEnvAsInt64("BLACKJACK_MIN_WAGER", cfg.MinWager)
	cfg.TurnSeconds = getEnvAsInt("BLACKJACK_TURN_SECONDS", cfg.TurnSeconds)
	return cfg
}

func getEnvAsInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvAsInt64(key string, defaultVal int64) int64 {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.ParseInt(val, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultVal
}
