package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	sensorflow "github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard"
)

func main() {
	cfg, err := sensorflow.LoadConfig("../../config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rt, err := sensorflow.NewRuntime(cfg)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("runtime exited: %v", err)
	}
}
