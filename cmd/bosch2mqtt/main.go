package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/daemonp/bosch2mqtt/internal/bridge"
	"github.com/daemonp/bosch2mqtt/internal/clock"
	"github.com/daemonp/bosch2mqtt/internal/config"
	"github.com/daemonp/bosch2mqtt/internal/history"
	"github.com/daemonp/bosch2mqtt/internal/homeassistant"
	"github.com/daemonp/bosch2mqtt/internal/log"
	"github.com/daemonp/bosch2mqtt/internal/mqtt"
	"github.com/daemonp/bosch2mqtt/internal/panel"
	_ "github.com/daemonp/bosch2mqtt/internal/panel/simulator"
)

const (
	probeTimeout    = 30 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	configFile := flag.String("config", "config.yml", "Path to configuration file")
	probe := flag.Bool("probe", false, "Identify each configured panel and exit")
	flag.Parse()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	logger := log.NewLogger(cfg.Log)

	if *probe {
		if !probePanels(cfg, logger) {
			os.Exit(1)
		}
		return
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clk := clock.New()
	store := history.NewStore(newBackend(cfg), clk, cfg.History.Delay(), cfg.History.MaxEvents, logger)
	store.Initialize(ctx)

	var sinks []history.Sink
	var influx *history.InfluxExporter
	if cfg.InfluxDB.Enabled {
		influx = history.NewInfluxExporter(cfg.InfluxDB, clk, logger)
		sinks = append(sinks, influx)
	}

	mqttClient := mqtt.NewMQTT(&cfg.MQTT, logger)
	ha := homeassistant.New(&cfg.HomeAssistant, mqttClient, logger)
	mqttClient.OnConnect(ha.Republish)
	if err := mqttClient.Connect(); err != nil {
		logger.Error("Failed to connect to MQTT broker: %v", err)
		os.Exit(1)
	}
	go ha.Run(ctx)

	manager, err := bridge.NewManager(cfg, ha, store, clk, logger, sinks...)
	if err != nil {
		logger.Error("Failed to set up panels: %v", err)
		mqttClient.Close()
		os.Exit(1)
	}

	router := homeassistant.NewRouter(ha, manager, logger)
	if err := router.Start(); err != nil {
		logger.Warn("Failed to subscribe to command topics: %v", err)
	}

	if err := manager.Start(ctx); err != nil {
		logger.Error("Failed to start panels: %v", err)
		mqttClient.Close()
		os.Exit(1)
	}

	<-sigChan

	logger.Info("Shutting down...")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()
	if err := manager.Stop(stopCtx); err != nil {
		logger.Warn("Errors during shutdown: %v", err)
	}
	cancel()
	ha.Flush()
	if influx != nil {
		influx.Close()
	}
	mqttClient.Close()
}

func newBackend(cfg *config.Config) history.Backend {
	if cfg.History.Backend == "redis" {
		return history.NewRedisBackend(history.NewRedisClient(cfg.History.Redis), cfg.History.Redis.Key)
	}
	return history.NewFileBackend(cfg.History.Path)
}

// probePanels reports what each configured panel is and which credentials it
// needs. It returns false when any panel could not be identified.
func probePanels(cfg *config.Config, logger *log.Logger) bool {
	ok := true
	for _, pc := range cfg.Panels {
		client, err := panel.NewClient(pc, logger.With("panel", pc.UniqueID))
		if err != nil {
			fmt.Printf("%s: %v\n", pc.UniqueID, err)
			ok = false
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
		res, err := panel.Probe(ctx, client)
		cancel()
		if err != nil {
			fmt.Printf("%s: %s (%v)\n", pc.UniqueID, panel.Reason(err), err)
			ok = false
			continue
		}

		fmt.Printf("%s: %s serial %s firmware %s\n", pc.UniqueID, res.Model, res.SerialNumber, res.Firmware)
		for _, cred := range res.Required {
			fmt.Printf("  requires %s\n", cred)
		}
	}
	return ok
}
