package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/codetrek/cloudsync/internal/config"
	"github.com/codetrek/cloudsync/internal/services"
)

func main() {
	var (
		noFeedConsumer = flag.Bool("no-feed-consumer", false, "do not relay the NATS feed into the local stream endpoint")
		issueToken     = flag.String("issue-token", "", "issue an origin token for the given origin and exit")
	)
	flag.Parse()

	cfg := config.LoadConfig()

	manager := services.NewManager(cfg, services.Options{
		RunAPI:          *issueToken == "",
		RunFeedConsumer: !*noFeedConsumer,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	err := manager.Init(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}

	if *issueToken != "" {
		ts := manager.TokenService()
		if ts == nil {
			log.Fatal("Token issuing requires auth.enabled")
		}
		token, err := ts.GenerateOriginToken(*issueToken)
		if err != nil {
			log.Fatalf("Failed to issue token: %v", err)
		}
		fmt.Println(token)
		shutdown(manager)
		return
	}

	manager.Run()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop
	log.Println("Shutting down...")

	shutdown(manager)
}

func shutdown(manager *services.Manager) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	manager.Shutdown(ctx)
}
