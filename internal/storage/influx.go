package storage

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"bmsengine/internal/config"
)

// Influx writes line-protocol records to a bucket with the blocking write API.
type Influx struct {
	client influxdb2.Client
	writer api.WriteAPIBlocking
	bucket string
}

func NewInflux(cfg config.InfluxConfig) (*Influx, error) {
	if cfg.URL == "" {
		return nil, ErrNotConfigured
	}
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	return &Influx{
		client: client,
		writer: client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
		bucket: cfg.Bucket,
	}, nil
}

func (i *Influx) WriteLines(ctx context.Context, lines ...string) error {
	if len(lines) == 0 {
		return nil
	}
	if err := i.writer.WriteRecord(ctx, lines...); err != nil {
		return fmt.Errorf("write %d lines to %s: %w", len(lines), i.bucket, err)
	}
	return nil
}

func (i *Influx) Ping(ctx context.Context) error {
	ok, err := i.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping influx: %w", err)
	}
	if !ok {
		return fmt.Errorf("ping influx: server not ready")
	}
	return nil
}

func (i *Influx) Close() error {
	i.client.Close()
	return nil
}
