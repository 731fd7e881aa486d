package main

import (
	"context"
	"fmt"
	"log"
	"os/signal"
	"syscall"
	"time"

	sensorflow "github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard"
)

func main() {
	cfg, err := sensorflow.LoadConfig("../../config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	callback := func(_ context.Context, batch []sensorflow.Reading) error {
		for _, r := range batch {
			fmt.Printf("%s floor=%s sensor=%s %s=%g\n",
				r.ObservedAt.Format(time.RFC3339Nano),
				r.Floor,
				r.SensorID,
				r.Type,
				r.Value,
			)
		}
		return nil
	}

	rt, err := sensorflow.NewRuntime(cfg, sensorflow.WithSink(sensorflow.NewCallbackSink("stdout", callback)))
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}
