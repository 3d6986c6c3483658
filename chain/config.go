package chain

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/arloliu/go-zaber/logger"
)

// Default configuration values.
const (
	DefaultBaudRate    = 9600
	DefaultReadTimeout = 50 * time.Millisecond // per exchange read bound
	DefaultWriteDelay  = 50 * time.Millisecond // minimum gap between writes
	DefaultRetryLimit  = 10                    // attempts per query
	DefaultProbeData   = 123                   // echo payload of the chain size probe
)

// Configuration range limits.
const (
	MinReadTimeout = time.Millisecond
	MaxReadTimeout = 10 * time.Second

	MaxWriteDelay = time.Second

	MinRetryLimit = 1
	MaxRetryLimit = 100
)

// SupportedBaudRates lists the baud rates accepted by WithBaudRate.
var SupportedBaudRates = []int{9600, 19200, 38400, 57600, 115200}

// Config holds the settings of a chain and its serial link.
// A Config is immutable once built by NewConfig.
type Config struct {
	// baudRate is the serial line speed. Only consulted when a transport is
	// opened from this config.
	baudRate int

	// readTimeout bounds how long a single exchange waits for its reply.
	readTimeout time.Duration

	// writeDelay is the minimum gap between two writes on the link.
	writeDelay time.Duration

	// retryLimit is the maximum number of attempts of one query.
	retryLimit int

	// probeData is echoed by every actuator during the chain size probe.
	probeData int32

	logger logger.Logger
}

// NewConfig creates a configuration from defaults overridden by opts,
// applied in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		baudRate:    DefaultBaudRate,
		readTimeout: DefaultReadTimeout,
		writeDelay:  DefaultWriteDelay,
		retryLimit:  DefaultRetryLimit,
		probeData:   DefaultProbeData,
		logger:      logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// DefaultConfig returns a configuration with every option at its default.
func DefaultConfig() *Config {
	cfg, _ := NewConfig()
	return cfg
}

// BaudRate returns the serial line speed.
func (cfg *Config) BaudRate() int { return cfg.baudRate }

// ReadTimeout returns the per exchange read bound.
func (cfg *Config) ReadTimeout() time.Duration { return cfg.readTimeout }

// WriteDelay returns the minimum gap between two writes.
func (cfg *Config) WriteDelay() time.Duration { return cfg.writeDelay }

// RetryLimit returns the maximum number of attempts of one query.
func (cfg *Config) RetryLimit() int { return cfg.retryLimit }

// ProbeData returns the echo payload used by the chain size probe.
func (cfg *Config) ProbeData() int32 { return cfg.probeData }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for NewConfig.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithBaudRate sets the serial line speed. It must be one of SupportedBaudRates.
func WithBaudRate(rate int) Option {
	return optFunc(func(cfg *Config) error {
		if !slices.Contains(SupportedBaudRates, rate) {
			return fmt.Errorf("chain: unsupported baud rate %d", rate)
		}
		cfg.baudRate = rate

		return nil
	})
}

// WithReadTimeout sets how long one exchange waits for its reply.
func WithReadTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinReadTimeout || d > MaxReadTimeout {
			return fmt.Errorf("chain: read timeout %v out of range [%v, %v]", d, MinReadTimeout, MaxReadTimeout)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithWriteDelay sets the minimum gap between two writes. Zero disables pacing.
func WithWriteDelay(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < 0 || d > MaxWriteDelay {
			return fmt.Errorf("chain: write delay %v out of range [0, %v]", d, MaxWriteDelay)
		}
		cfg.writeDelay = d

		return nil
	})
}

// WithRetryLimit sets the maximum number of attempts of one query.
func WithRetryLimit(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < MinRetryLimit || n > MaxRetryLimit {
			return fmt.Errorf("chain: retry limit %d out of range [%d, %d]", n, MinRetryLimit, MaxRetryLimit)
		}
		cfg.retryLimit = n

		return nil
	})
}

// WithProbeData sets the echo payload of the chain size probe.
func WithProbeData(data int32) Option {
	return optFunc(func(cfg *Config) error {
		cfg.probeData = data
		return nil
	})
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("chain: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
