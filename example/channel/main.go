package main

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	sensorflow "github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard"
)

// offlineTransport never reaches a broker; readings come from Publish below.
type offlineTransport struct{}

func (offlineTransport) Connect(context.Context) (<-chan error, error) { return make(chan error), nil }

func (offlineTransport) Subscribe(context.Context, string, sensorflow.MessageHandler) error {
	return nil
}

func (offlineTransport) Disconnect() {}

func main() {
	cfg, err := sensorflow.LoadConfig("../../config.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.Policy.Mode = "queued"

	sink, batches, closeBatches := sensorflow.NewChannelSink("fanout", 32)
	defer closeBatches()

	rt, err := sensorflow.NewRuntime(cfg,
		sensorflow.WithTransport(offlineTransport{}),
		sensorflow.WithSink(sink),
	)
	if err != nil {
		log.Fatalf("build runtime: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go fanoutWorker("dashboard", batches)
	go simulate(ctx, rt)

	if err := rt.Run(ctx); err != nil {
		log.Fatalf("runtime error: %v", err)
	}
}

// simulate publishes one temperature reading per second for room E58.
func simulate(ctx context.Context, rt *sensorflow.Runtime) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			value := 19 + rand.Float64()*5
			out := rt.Publish(sensorflow.RawMessage{
				Topic:   "eg/E58/temperature",
				Payload: []byte(strconv.FormatFloat(value, 'f', 2, 64)),
			})
			if out.Err != nil {
				log.Printf("publish: %s: %v", out.Status, out.Err)
			}
		}
	}
}

func fanoutWorker(name string, batches <-chan []sensorflow.Reading) {
	for batch := range batches {
		fmt.Printf("[%s] forwarding %d readings at %s\n", name, len(batch), time.Now().Format(time.RFC3339))
	}
}
