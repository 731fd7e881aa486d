package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	sensorflow "github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard"
)

const usage = `sensorflow moves sensor readings from MQTT into InfluxDB and serves them to the dashboard.

Usage:
  sensorflow <command> [flags]

Commands:
  run        start ingestion and the HTTP API
  validate   load and check a configuration file
  stats      poll a running instance for pipeline counters
  help       show this message
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	cmd := os.Args[1]
	var err error

	switch cmd {
	case "run":
		err = runCommand(os.Args[2:])
	case "validate":
		err = validateCommand(os.Args[2:])
	case "stats":
		err = statsCommand(os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usage)
		return
	default:
		fmt.Fprint(os.Stderr, usage)
		err = fmt.Errorf("unknown command %q", cmd)
	}

	if err != nil {
		log.Fatalf("sensorflow %s: %v", cmd, err)
	}
}

func runCommand(args []string) error {
	fs := pflag.NewFlagSet("run", pflag.ExitOnError)
	cfgPath := fs.StringP("config", "c", "./config.yaml", "path to configuration file")
	addr := fs.String("addr", "", "override http.addr")
	mode := fs.String("mode", "", "override policy.mode (direct or queued)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := sensorflow.LoadConfig(*cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if *addr != "" {
		cfg.HTTP.Addr = *addr
	}
	if *mode != "" {
		cfg.Policy.Mode = *mode
	}

	rt, err := sensorflow.NewRuntime(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return rt.Run(ctx)
}

func validateCommand(args []string) error {
	fs := pflag.NewFlagSet("validate", pflag.ExitOnError)
	cfgPath := fs.StringP("config", "c", "./config.yaml", "path to configuration file to validate")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := sensorflow.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	fmt.Printf("config %s is valid (broker %s, bucket %s, mode %s)\n",
		*cfgPath, cfg.MQTT.BrokerURL, cfg.Influx.Bucket, cfg.Policy.Mode)
	return nil
}

func statsCommand(args []string) error {
	fs := pflag.NewFlagSet("stats", pflag.ExitOnError)
	base := fs.String("url", "http://localhost:8080", "base URL of a running instance")
	interval := fs.Duration("interval", 2*time.Second, "refresh interval")
	once := fs.Bool("once", false, "print a single snapshot and exit")
	if err := fs.Parse(args); err != nil {
		return err
	}
	root := strings.TrimRight(*base, "/")
	client := &http.Client{Timeout: 5 * time.Second}

	if *once {
		return printSnapshot(client, root)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	fmt.Printf("Polling %s (Ctrl+C to stop)\n", root)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := printSnapshot(client, root); err != nil {
				fmt.Fprintf(os.Stderr, "stats error: %v\n", err)
			}
		}
	}
}

type healthResponse struct {
	Status     string `json:"status"`
	Connection string `json:"connection"`
}

func printSnapshot(client *http.Client, root string) error {
	var health healthResponse
	if err := getJSON(client, root+"/healthz", &health); err != nil {
		return err
	}
	var stats sensorflow.Stats
	if err := getJSON(client, root+"/stats", &stats); err != nil {
		return err
	}

	fmt.Printf("[%s] connection=%s received=%d accepted=%d rejected=%d written=%d write_failed=%d dropped=%d queue=%d\n",
		time.Now().Format(time.RFC3339),
		health.Connection,
		stats.Received,
		stats.Accepted,
		stats.Rejected,
		stats.Written,
		stats.WriteFailed,
		stats.Dropped,
		stats.QueueLength,
	)
	return nil
}

func getJSON(client *http.Client, url string, into any) error {
	resp, err := client.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s: unexpected status %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(into)
}
