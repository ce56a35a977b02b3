package history

import (
	"context"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/daemonp/bosch2mqtt/internal/clock"
	"github.com/daemonp/bosch2mqtt/internal/config"
	"github.com/daemonp/bosch2mqtt/internal/log"
	"github.com/daemonp/bosch2mqtt/internal/types"
)

const measurement = "panel_history"

// InfluxExporter writes history events as InfluxDB points. Writes are
// batched by the client library and never block the caller.
type InfluxExporter struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	clock    clock.Clock
	log      *log.Logger
}

func NewInfluxExporter(cfg config.InfluxDBConfig, clk clock.Clock, logger *log.Logger) *InfluxExporter {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)
	x := &InfluxExporter{
		client:   client,
		writeAPI: client.WriteAPI(cfg.Org, cfg.Bucket),
		clock:    clk,
		log:      logger,
	}
	go x.handleWriteErrors(x.writeAPI.Errors())
	return x
}

func (x *InfluxExporter) handleWriteErrors(errorsCh <-chan error) {
	for err := range errorsCh {
		x.log.Warn("InfluxDB write failed: %v", err)
	}
}

func (x *InfluxExporter) Export(ctx context.Context, key string, events []types.HistoryEvent) error {
	for _, ev := range events {
		x.writeAPI.WritePoint(eventPoint(key, ev, x.clock))
	}
	return nil
}

func (x *InfluxExporter) Close() {
	x.writeAPI.Flush()
	x.client.Close()
}

// eventPoint stamps events without a panel date with the local time.
func eventPoint(key string, ev types.HistoryEvent, clk clock.Clock) *write.Point {
	ts := ev.Date
	if ts.IsZero() {
		ts = clk.Now()
	}
	return write.NewPoint(
		measurement,
		map[string]string{"panel": key},
		map[string]interface{}{
			"id":      ev.ID,
			"message": ev.Message,
		},
		ts,
	)
}
