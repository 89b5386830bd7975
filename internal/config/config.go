// Package config loads the scale-sensor YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sweeney/scale-sensor/internal/gpio"
	"github.com/sweeney/scale-sensor/internal/hx711"
)

// Config represents the application configuration.
type Config struct {
	GPIO    GPIOConfig    `yaml:"gpio"`
	HX711   HX711Config   `yaml:"hx711"`
	Monitor MonitorConfig `yaml:"monitor"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// GPIOConfig contains the line assignment (BCM numbering).
type GPIOConfig struct {
	Chip     string `yaml:"chip"`
	PinData  int    `yaml:"pin_data"`  // DOUT
	PinClock int    `yaml:"pin_clock"` // PD_SCK
}

// HX711Config contains the protocol timing.
type HX711Config struct {
	PollInterval time.Duration `yaml:"poll_interval"`
	ClockHold    time.Duration `yaml:"clock_hold"`
	Settle       time.Duration `yaml:"settle"`
	ReadyTimeout time.Duration `yaml:"ready_timeout"` // 0 = wait forever
	TareSamples  int           `yaml:"tare_samples"`
	TareRest     time.Duration `yaml:"tare_rest"`
}

// MonitorConfig contains the poll loop and change detection parameters.
type MonitorConfig struct {
	Poll      time.Duration `yaml:"poll"`
	Debounce  time.Duration `yaml:"debounce"`
	Threshold int64         `yaml:"threshold"` // net counts treated as noise
	Heartbeat time.Duration `yaml:"heartbeat"` // 0 disables
}

// MQTTConfig contains broker settings. An empty broker disables MQTT.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
}

// HTTPConfig contains the status server address. Empty disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	t := hx711.DefaultTiming()
	return &Config{
		GPIO: GPIOConfig{
			Chip:     gpio.DefaultChip,
			PinData:  gpio.DefaultPinData,
			PinClock: gpio.DefaultPinClock,
		},
		HX711: HX711Config{
			PollInterval: t.PollInterval,
			ClockHold:    t.ClockHold,
			Settle:       t.Settle,
			ReadyTimeout: t.ReadyTimeout,
			TareSamples:  t.TareSamples,
			TareRest:     t.TareRest,
		},
		Monitor: MonitorConfig{
			Poll:      500 * time.Millisecond,
			Debounce:  time.Second,
			Threshold: 20,
			Heartbeat: 15 * time.Minute,
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://192.168.1.200:1883",
			ClientID: "scale-sensor",
		},
		HTTP: HTTPConfig{
			Addr: ":80",
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", filename, err)
	}
	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Timing returns the HX711 protocol timing.
func (c *Config) Timing() hx711.Timing {
	return hx711.Timing{
		PollInterval: c.HX711.PollInterval,
		ClockHold:    c.HX711.ClockHold,
		Settle:       c.HX711.Settle,
		ReadyTimeout: c.HX711.ReadyTimeout,
		TareSamples:  c.HX711.TareSamples,
		TareRest:     c.HX711.TareRest,
	}
}

// Validate checks configuration correctness. It does not mutate c.
func (c *Config) Validate() error {
	if c.GPIO.PinData < 0 || c.GPIO.PinClock < 0 {
		return errors.New("gpio pins must not be negative")
	}
	if c.GPIO.PinData == c.GPIO.PinClock {
		return fmt.Errorf("gpio pin_data and pin_clock are both %d", c.GPIO.PinData)
	}
	if err := c.Timing().Validate(); err != nil {
		return fmt.Errorf("hx711: %w", err)
	}
	if c.Monitor.Poll <= 0 {
		return errors.New("monitor poll must be positive")
	}
	if c.Monitor.Debounce < 0 || c.Monitor.Heartbeat < 0 {
		return errors.New("monitor durations must not be negative")
	}
	if c.Monitor.Threshold < 0 {
		return errors.New("monitor threshold must not be negative")
	}
	return nil
}

// ensureDefaults fills fields left at their zero value. ReadyTimeout,
// ClockHold, TareRest, Debounce, Threshold, Heartbeat, broker and HTTP
// address keep zero values because zero is meaningful for them.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.GPIO.Chip == "" {
		c.GPIO.Chip = def.GPIO.Chip
	}

	if c.HX711.PollInterval == 0 {
		c.HX711.PollInterval = def.HX711.PollInterval
	}
	if c.HX711.Settle == 0 {
		c.HX711.Settle = def.HX711.Settle
	}
	if c.HX711.TareSamples == 0 {
		c.HX711.TareSamples = def.HX711.TareSamples
	}

	if c.Monitor.Poll == 0 {
		c.Monitor.Poll = def.Monitor.Poll
	}

	if c.MQTT.ClientID == "" {
		c.MQTT.ClientID = def.MQTT.ClientID
	}
}
