// Package influx connects SensorFlow to an InfluxDB 2.x server.
package influx

import (
	"context"
	"fmt"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdomain "github.com/influxdata/influxdb-client-go/v2/domain"

	"github.com/2425-4chif-syp/2324-4bhif-syp-project-iot-dashboard/internal/ports"
)

const defaultTimeout = 10 * time.Second

type ClientConfig struct {
	URL     string
	Token   string
	Timeout time.Duration
}

// NewClient builds the process-wide client. It is safe for concurrent use;
// the caller closes it on shutdown.
func NewClient(cfg ClientConfig) (influxdb2.Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("influx url is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	secs := uint(timeout.Round(time.Second) / time.Second)
	if secs == 0 {
		secs = 1
	}
	opts := influxdb2.DefaultOptions().
		SetHTTPRequestTimeout(secs).
		SetUseGZip(true)
	return influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, opts), nil
}

// rawQuerier is satisfied by api.QueryAPI.
type rawQuerier interface {
	QueryRaw(ctx context.Context, query string, dialect *influxdomain.Dialect) (string, error)
}

// QueryExecutor runs Flux and returns the CSV body unchanged.
type QueryExecutor struct {
	api     rawQuerier
	timeout time.Duration
}

func NewQueryExecutor(client influxdb2.Client, org string, timeout time.Duration) *QueryExecutor {
	return newQueryExecutor(client.QueryAPI(org), timeout)
}

func newQueryExecutor(api rawQuerier, timeout time.Duration) *QueryExecutor {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &QueryExecutor{api: api, timeout: timeout}
}

func (e *QueryExecutor) ExecuteQuery(ctx context.Context, query string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	raw, err := e.api.QueryRaw(ctx, query, nil)
	if err != nil {
		return "", fmt.Errorf("influx query: %w", err)
	}
	return raw, nil
}

var _ ports.QueryExecutor = (*QueryExecutor)(nil)
