package app

import (
	"errors"
	"fmt"
	"time"

	envstruct "code.cloudfoundry.org/go-envstruct"
)

// Config stores all configuration options for the device probe.
type Config struct {
	Device            string        `env:"DEVICE_PROBE_DEVICE, report"`
	Clients           int           `env:"DEVICE_PROBE_CLIENTS, report"`
	MessagesPerClient int           `env:"DEVICE_PROBE_MESSAGES_PER_CLIENT, report"`
	ClientDelay       time.Duration `env:"DEVICE_PROBE_CLIENT_DELAY, report"`
	MaxWait           time.Duration `env:"DEVICE_PROBE_MAX_WAIT, report"`

	// transport
	DiodeSize int `env:"DEVICE_PROBE_DIODE_SIZE, report"`

	// progress reporting
	ReportBatchSize int           `env:"DEVICE_PROBE_REPORT_BATCH_SIZE, report"`
	ReportInterval  time.Duration `env:"DEVICE_PROBE_REPORT_INTERVAL, report"`

	// health
	HealthAddr string `env:"DEVICE_PROBE_HEALTH_ADDR, report"`
	PProfPort  uint32 `env:"DEVICE_PROBE_PPROF_PORT, report"`

	UseRFC3339 bool `env:"DEVICE_PROBE_USE_RFC3339"`
}

// LoadConfig reads from the environment to create a Config.
func LoadConfig() (*Config, error) {
	config := Config{
		Device:            DeviceStreamer,
		Clients:           5,
		MessagesPerClient: 1,
		MaxWait:           5 * time.Second,
		DiodeSize:         1000,
		ReportBatchSize:   100,
		ReportInterval:    time.Second,
	}

	err := envstruct.Load(&config)
	if err != nil {
		return nil, err
	}

	err = config.validate()
	if err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) validate() error {
	switch c.Device {
	case DeviceQueue, DeviceForwarder, DeviceStreamer:
	default:
		return fmt.Errorf("unknown device %q", c.Device)
	}

	if c.Clients <= 0 {
		return errors.New("need at least one client")
	}

	if c.MessagesPerClient <= 0 {
		return errors.New("need at least one message per client")
	}

	if c.ClientDelay < 0 {
		return errors.New("client delay must not be negative")
	}

	if c.MaxWait <= 0 {
		return errors.New("max wait must be positive")
	}

	if c.DiodeSize <= 0 {
		return errors.New("diode size must be positive")
	}

	if c.ReportBatchSize <= 0 {
		return errors.New("report batch size must be positive")
	}

	return nil
}
