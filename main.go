package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	addr := flag.String("addr", "", "HTTP listen address (overrides ADDR)")
	flag.Parse()

	cfg := LoadConfig()
	if *addr != "" {
		cfg.Addr = *addr
	}

	db, err := OpenDB(cfg.DBPath)
	if err != nil {
		log.Printf("database disabled: %v", err)
		db = nil
	} else {
		defer db.Close()
	}

	hub := NewHub(db)
	reg := NewRegistry(cfg, hub, db)
	hub.SetRegistry(reg)
	go hub.Run()

	sched := NewScheduler(reg, cfg.TickInterval())
	go sched.Run()

	mux := SetupRoutes(hub, reg, cfg.ClientDir)

	// Graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	server := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		log.Printf("Server starting on %s (%d Hz tick)", cfg.Addr, cfg.TickRate)
		log.Printf("Serving client files from %s", cfg.ClientDir)
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			log.Fatalf("ListenAndServe: %v", err)
		}
	}()

	<-stop
	log.Println("Shutting down...")
	sched.Stop()
	server.Close()
}
