package zwayClient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"syscall"
	"time"

	"github.com/zabeloliver/zway-exporter/zway-api/zwayStructs"
	"go.uber.org/zap"
)

const (
	DefaultHost    = "localhost"
	DefaultPort    = 8083
	DefaultTimeout = 5 * time.Second

	maxAttempts = 10
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	Timeout  time.Duration
	// RetryBackoff is slept between failed attempts of a request. Zero retries
	// immediately.
	RetryBackoff time.Duration
	// Devices skips the initial scan when not empty.
	Devices zwayStructs.Registry
	// Transport overrides http.DefaultTransport.
	Transport http.RoundTripper
}

// ZwayApiClient talks to the ZWaveAPI of a Z-Way server. It is not safe for
// concurrent use.
type ZwayApiClient struct {
	Host         string
	client       http.Client
	baseUrl      string
	loginUrl     string
	session      session
	retryBackoff time.Duration
	devices      zwayStructs.Registry
	logger       *zap.SugaredLogger
}

// NewZwayApiClient logs in if credentials are given, checks that the server
// answers and builds the device registry. Any failure is returned as a
// *ConnectError.
func NewZwayApiClient(cfg Config, logger *zap.SugaredLogger) (*ZwayApiClient, error) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Timeout < 0 || cfg.Port < 0 || cfg.RetryBackoff < 0 {
		return nil, fmt.Errorf("%w: timeout %v, port %d, retry backoff %v", ErrInvalidConfig, cfg.Timeout, cfg.Port, cfg.RetryBackoff)
	}

	c := &ZwayApiClient{
		Host: cfg.Host,
		client: http.Client{
			Transport: cfg.Transport,
			Timeout:   cfg.Timeout,
		},
		baseUrl:      fmt.Sprintf("http://%s:%d/ZWaveAPI/", cfg.Host, cfg.Port),
		loginUrl:     fmt.Sprintf("http://%s:%d/ZAutomation/api/v1/login", cfg.Host, cfg.Port),
		retryBackoff: cfg.RetryBackoff,
		logger:       logger,
	}

	s, err := c.login(cfg.Username, cfg.Password)
	if err != nil {
		return nil, connectError(err)
	}
	c.session = s

	if err := c.checkConnection(); err != nil {
		return nil, connectError(err)
	}

	if len(cfg.Devices) > 0 {
		c.logger.Info("Using provided device registry: ", len(cfg.Devices))
		c.devices = cfg.Devices.Copy()
		return c, nil
	}
	if _, err := c.ScanDevices(); err != nil {
		return nil, &ConnectError{Cause: ErrConnectFailed, Err: err}
	}
	return c, nil
}

func (c *ZwayApiClient) checkConnection() error {
	body, err := c.Request("Data")
	if err != nil {
		return err
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(body, &data); err != nil {
		return &DecodeError{Command: "Data", Body: truncate(body), Err: err}
	}
	c.logger.Info("Connected to ", c.baseUrl)
	return nil
}

// SetTimeout changes the deadline of every following request.
func (c *ZwayApiClient) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive, got %v", ErrInvalidConfig, timeout)
	}
	c.client.Timeout = timeout
	return nil
}

func (c *ZwayApiClient) Timeout() time.Duration {
	return c.client.Timeout
}

func (c *ZwayApiClient) Authenticated() bool {
	_, ok := c.session.(authenticated)
	return ok
}

// Request issues GET <base url><command> and returns the body. It can be used
// for any ZWaveAPI command the client has no method for.
//
// Connection failures and timeouts are retried up to 10 times, any other error
// is returned right away.
func (c *ZwayApiClient) Request(command string) ([]byte, error) {
	var last failureKind
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		body, err := c.get(command)
		if err == nil {
			return body, nil
		}

		last = classify(err)
		switch last {
		case failureTimeout:
			c.logger.Warnf("Timed out %d: %s", attempt, command)
		case failureConnection:
			c.logger.Warnf("Connection failed %d: %s: %v", attempt, command, err)
		default:
			return nil, err
		}

		if attempt < maxAttempts && c.retryBackoff > 0 {
			time.Sleep(c.retryBackoff)
		}
	}

	if last == failureTimeout {
		return nil, fmt.Errorf("%w after %d attempts: %s", ErrTimeout, maxAttempts, command)
	}
	return nil, fmt.Errorf("%w after %d attempts: %s", ErrConnectionLost, maxAttempts, command)
}

func (c *ZwayApiClient) get(command string) ([]byte, error) {
	url := c.baseUrl + command
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	c.session.apply(req)

	r, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if r.StatusCode < 200 || r.StatusCode > 299 {
		return nil, &StatusError{Url: url, StatusCode: r.StatusCode}
	}
	return body, nil
}

type failureKind int

const (
	failureOther failureKind = iota
	failureConnection
	failureTimeout
)

func classify(err error) failureKind {
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return failureTimeout
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &opErr), errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF):
		return failureConnection
	}
	return failureOther
}

func truncate(body []byte) string {
	const max = 128
	if len(body) > max {
		return string(body[:max]) + "..."
	}
	return string(body)
}
