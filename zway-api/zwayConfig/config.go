package zwayConfig

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/zabeloliver/zway-exporter/zway-api/zwayClient"
)

type Config struct {
	Zway struct {
		Host         string        `mapstructure:"host"`
		Port         int           `mapstructure:"port"`
		Username     string        `mapstructure:"username"`
		Password     string        `mapstructure:"password"`
		Timeout      time.Duration `mapstructure:"timeout"`
		RetryBackoff time.Duration `mapstructure:"retrybackoff"`
	} `mapstructure:"zway"`
	Poll struct {
		Interval time.Duration `mapstructure:"interval"`
		// Rescan is the interval between device scans, zero scans only on
		// startup.
		Rescan time.Duration `mapstructure:"rescan"`
	} `mapstructure:"poll"`
	Registry struct {
		File string `mapstructure:"file"`
	} `mapstructure:"registry"`
	Metrics struct {
		Port string `mapstructure:"port"`
	} `mapstructure:"metrics"`
	Influxdb struct {
		Host   string `mapstructure:"host"`
		Token  string `mapstructure:"token"`
		Org    string `mapstructure:"org"`
		Bucket string `mapstructure:"bucket"`
	} `mapstructure:"influxdb"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("zway.host", zwayClient.DefaultHost)
	v.SetDefault("zway.port", zwayClient.DefaultPort)
	v.SetDefault("zway.username", "")
	v.SetDefault("zway.password", "")
	v.SetDefault("zway.timeout", zwayClient.DefaultTimeout.String())
	v.SetDefault("zway.retrybackoff", "0s")
	v.SetDefault("poll.interval", "30s")
	v.SetDefault("poll.rescan", "0s")
	v.SetDefault("registry.file", "")
	v.SetDefault("metrics.port", "9124")
	v.SetDefault("influxdb.host", "http://localhost:8086")
	v.SetDefault("influxdb.token", "")
	v.SetDefault("influxdb.org", "")
	v.SetDefault("influxdb.bucket", "zway")
}

// Load reads the yaml file at path on top of the defaults. Every key can be
// overridden by an environment variable, e.g. ZWAY_ZWAY_HOST or
// ZWAY_POLL_INTERVAL. A missing file is not an error.
func Load(path string, logger *zap.SugaredLogger) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix("zway")
	v.AutomaticEnv()
	v.SetConfigType("yaml")

	var cfg Config
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logger.Info("No configuration file found. Using Default config")
	case err != nil:
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		if err := v.ReadConfig(bytes.NewBuffer(raw)); err != nil {
			return cfg, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding config: %w", err)
	}
	if cfg.Poll.Interval <= 0 {
		return cfg, fmt.Errorf("%w: poll.interval must be positive", zwayClient.ErrInvalidConfig)
	}
	if cfg.Poll.Rescan < 0 {
		return cfg, fmt.Errorf("%w: poll.rescan must not be negative", zwayClient.ErrInvalidConfig)
	}

	logger.Infof("Configuration from %v", redacted(v.AllSettings()))
	return cfg, nil
}

func redacted(settings map[string]any) map[string]any {
	for _, section := range []string{"zway", "influxdb"} {
		values, ok := settings[section].(map[string]any)
		if !ok {
			continue
		}
		for _, key := range []string{"password", "token"} {
			if s, ok := values[key].(string); ok && s != "" {
				values[key] = "***"
			}
		}
	}
	return settings
}

func (c Config) ClientConfig() zwayClient.Config {
	return zwayClient.Config{
		Host:         c.Zway.Host,
		Port:         c.Zway.Port,
		Username:     c.Zway.Username,
		Password:     c.Zway.Password,
		Timeout:      c.Zway.Timeout,
		RetryBackoff: c.Zway.RetryBackoff,
	}
}

// NewLogger builds a production logger writing to stdout and logFile.
func NewLogger(logFile string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{"stdout"}
	if logFile != "" {
		cfg.OutputPaths = append(cfg.OutputPaths, logFile)
	}
	return cfg.Build()
}

// SaveRegistry dumps the client's device registry to path, if set.
func SaveRegistry(client *zwayClient.ZwayApiClient, path string, logger *zap.SugaredLogger) error {
	if path == "" {
		return nil
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := client.SaveRegistry(f); err != nil {
		return err
	}
	logger.Info("Device registry written to ", path)
	return f.Close()
}
