package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zabeloliver/zway-exporter/zway-api/zwayClient"
	"github.com/zabeloliver/zway-exporter/zway-api/zwayConfig"
	"github.com/zabeloliver/zway-exporter/zway-api/zwayPoller"
	"github.com/zabeloliver/zway-exporter/zway-api/zwayStructs"
)

var (
	sugar      = zap.NewNop().Sugar()
	configPath string
	logFile    string
)

func initLogger() {
	logger, err := zwayConfig.NewLogger(logFile)
	if err != nil {
		panic(err)
	}
	sugar = logger.Sugar()
}

func initCliFlags() {
	flag.StringVar(&configPath, "configFile", "config.yaml", "Path to the config.yaml File.")
	flag.StringVar(&logFile, "logFile", "zway_exporter.log", "Path to the log file, empty logs to stdout only.")
	flag.Parse()
}

func newRegistry(client *zwayClient.ZwayApiClient) (*prometheus.Registry, *metrics) {
	sugar.Info("Creating Metrics-Registry")
	// Create a non-global registry.
	reg := prometheus.NewRegistry()

	sugar.Info("Registering Metrics")
	reg.MustRegister(collectors.NewBuildInfoCollector())
	reg.MustRegister(collectors.NewGoCollector())
	m := NewMetrics(reg)

	m.reset(client.Registry())
	version, err := client.SoftwareVersion()
	if err != nil {
		sugar.Error("Reading controller version failed: ", err)
	} else {
		m.controllerInfo.WithLabelValues(version).Set(1)
	}
	return reg, m
}

func main() {
	initCliFlags()
	initLogger()
	defer sugar.Sync() // flushes buffer, if any

	sugar.Info("Starting Z-Way Prometheus-Exporter")
	cfg, err := zwayConfig.Load(configPath, sugar)
	if err != nil {
		sugar.Fatal(err)
	}

	client, err := zwayClient.NewZwayApiClient(cfg.ClientConfig(), sugar)
	if err != nil {
		sugar.Fatal(err)
	}
	if err := zwayConfig.SaveRegistry(client, cfg.Registry.File, sugar); err != nil {
		sugar.Error("Writing device registry failed: ", err)
	}

	reg, m := newRegistry(client)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller := zwayPoller.NewPoller(client, cfg.Poll.Interval, cfg.Poll.Rescan, sugar)
	poller.OnScan = func(devices zwayStructs.Registry) {
		m.reset(devices)
		if err := zwayConfig.SaveRegistry(client, cfg.Registry.File, sugar); err != nil {
			sugar.Error("Writing device registry failed: ", err)
		}
	}

	// Expose metrics and custom registry via an HTTP server
	// using the HandleFor function. "/metrics" is the usual endpoint for that.
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	server := &http.Server{Addr: ":" + cfg.Metrics.Port, Handler: mux}
	go func() {
		sugar.Infof("Metrics served at: %v", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			sugar.Fatal(err)
		}
	}()

	// the client is not safe for concurrent use, all reads happen here
	_ = poller.Run(ctx, func(readings []zwayStructs.Reading) {
		m.update(readings, time.Now())
	})

	sugar.Info("Catch Keyboard interrupt")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		sugar.Error(err)
	}
}
