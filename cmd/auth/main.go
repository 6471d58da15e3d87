package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/astro-web3/codeveros-auth/internal/config"
	httptransport "github.com/astro-web3/codeveros-auth/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoad(config.ServiceAuth)

	srv, err := httptransport.NewAuthServer(cfg)
	if err != nil {
		log.Fatalf("Failed to create auth server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = srv.Run(ctx, shutdownTimeout)
	stop()
	if err != nil {
		log.Fatalf("Auth server exited: %v", err)
	}
}
