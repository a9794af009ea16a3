package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	influxdb2 "github.com/influxdata/influxdb-client-go"

	"github.com/zabeloliver/zway-exporter/zway-api/zwayClient"
	"github.com/zabeloliver/zway-exporter/zway-api/zwayConfig"
	"github.com/zabeloliver/zway-exporter/zway-api/zwayPoller"
	"github.com/zabeloliver/zway-exporter/zway-api/zwayStructs"
)

// recordWriter is satisfied by api.WriteAPIBlocking.
type recordWriter interface {
	WriteRecord(ctx context.Context, line ...string) error
}

var (
	sugar      = zap.NewNop().Sugar()
	configPath string
	logFile    string
)

var tagEscaper = strings.NewReplacer(",", `\,`, "=", `\=`, " ", `\ `)

// influxLines renders readings as line protocol, one sensor line per reading
// and one battery line per reading that has a battery level.
func influxLines(readings []zwayStructs.Reading, ts time.Time) []string {
	lines := make([]string, 0, len(readings))
	for _, r := range readings {
		tags := fmt.Sprintf("deviceId=%s,name=%s", tagEscaper.Replace(r.Id), tagEscaper.Replace(r.Name))
		lines = append(lines, fmt.Sprintf("zway_sensor,%s,type=%s value=%f %d", tags, r.Type, r.Value, ts.UnixNano()))
		if r.Battery != nil {
			lines = append(lines, fmt.Sprintf("zway_battery,%s level=%di %d", tags, *r.Battery, ts.UnixNano()))
		}
	}
	return lines
}

func writeReadings(ctx context.Context, w recordWriter, readings []zwayStructs.Reading, ts time.Time) error {
	lines := influxLines(readings, ts)
	if len(lines) == 0 {
		return nil
	}
	sugar.Debug(strings.Join(lines, "\n"))
	return w.WriteRecord(ctx, lines...)
}

func initLogger() {
	logger, err := zwayConfig.NewLogger(logFile)
	if err != nil {
		panic(err)
	}
	sugar = logger.Sugar()
}

func initCliFlags() {
	flag.StringVar(&configPath, "configFile", "config.yaml", "Path to the config.yaml File.")
	flag.StringVar(&logFile, "logFile", "influx_exporter.log", "Path to the log file, empty logs to stdout only.")
	flag.Parse()
}

func main() {
	initCliFlags()
	initLogger()
	defer sugar.Sync() // flushes buffer, if any

	sugar.Info("Starting Influx-Exporter")
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

	// Create a new client using an InfluxDB server base URL and an authentication token
	influxClient := influxdb2.NewClient(cfg.Influxdb.Host, cfg.Influxdb.Token)
	defer influxClient.Close()
	// Use blocking write client for writes to desired bucket
	influxApi := influxClient.WriteAPIBlocking(cfg.Influxdb.Org, cfg.Influxdb.Bucket)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	poller := zwayPoller.NewPoller(client, cfg.Poll.Interval, cfg.Poll.Rescan, sugar)
	poller.OnScan = func(zwayStructs.Registry) {
		if err := zwayConfig.SaveRegistry(client, cfg.Registry.File, sugar); err != nil {
			sugar.Error("Writing device registry failed: ", err)
		}
	}
	_ = poller.Run(ctx, func(readings []zwayStructs.Reading) {
		if err := writeReadings(ctx, influxApi, readings, time.Now().UTC()); err != nil {
			sugar.Error("Writing to InfluxDB failed: ", err)
		}
	})
	sugar.Info("Catch Keyboard interrupt")
}
