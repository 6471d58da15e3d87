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

const (
	startupTimeout  = 10 * time.Second
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg := config.MustLoad(config.ServiceGateway)

	startupCtx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	srv, err := httptransport.NewGatewayServer(startupCtx, cfg)
	cancel()
	if err != nil {
		log.Fatalf("Failed to create gateway server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = srv.Run(ctx, shutdownTimeout)
	stop()
	if err != nil {
		log.Fatalf("Gateway exited: %v", err)
	}
}
