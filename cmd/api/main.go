package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"casino/internal/server"
)

func gracefulShutdown(fiberServer *server.FiberServer, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Println("[MAIN] Shutting down gracefully, press Ctrl+C again to force")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := fiberServer.ShutdownWithContext(ctx); err != nil {
		log.Printf("[MAIN] Server forced to shutdown: %v", err)
	}
	fiberServer.Shutdown()

	done <- true
}

func main() {
	srv := server.New()
	srv.RegisterFiberRoutes()

	done := make(chan bool, 1)
	go gracefulShutdown(srv, done)

	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 4000
	}
	if err := srv.Listen(":" + strconv.Itoa(port)); err != nil {
		log.Fatalf("[MAIN] Server error: %v", err)
	}

	<-done
	log.Println("[MAIN] Graceful shutdown complete")
}
