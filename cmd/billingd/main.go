package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/LucaBras1/VertiGo-SaaS-sub009/internal/app"

	"github.com/joho/godotenv"
)

var (
	runOnce  = flag.Bool("run-once", false, "Run the billing, reminder and retry engines once and exit")
	tenantID = flag.Int64("tenant", 0, "Tenant to process with -run-once (0 = all tenants)")
)

func main() {
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		log.Println("[MAIN] No .env file found, relying on system env vars")
	}

	srv := app.NewServer()

	if *runOnce {
		if err := srv.RunOnce(context.Background(), *tenantID); err != nil {
			log.Fatalf("run-once failed: %v", err)
		}
		return
	}

	// Run server in a separate goroutine so we can listen for shutdown signals
	go func() {
		if err := srv.Start(); err != nil {
			log.Fatalf("server failed to start: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	log.Println("server stopped gracefully")
}
