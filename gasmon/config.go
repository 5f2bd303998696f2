package gasmon

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config holds the runtime tunables. Calibration curves are compiled in and
// are not part of it, except for the CO2 baseline.
type Config struct {
	Sampler   SamplerConfig   `yaml:"sampler"`
	Battery   BatteryConfig   `yaml:"battery"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Influx    InfluxConfig    `yaml:"influx"`

	// units: ppm
	CO2Offset uint32 `yaml:"co2_offset"`
}

type SamplerConfig struct {
	Period              time.Duration `yaml:"period"`
	VRef                float64       `yaml:"vref"`          // ADC reference voltage
	SupplyVolts         float64       `yaml:"supply_volts"`  // sensor heater/supply rail
	DividerRatio        float64       `yaml:"divider_ratio"` // Vadc/Vsensor
	BatteryDividerRatio float64       `yaml:"battery_divider_ratio"`
	StuckCycles         int           `yaml:"stuck_cycles"` // saturated samples tolerated before a fault
}

type BatteryConfig struct {
	Period     time.Duration `yaml:"period"`
	Window     int           `yaml:"window"`
	EmptyVolts float64       `yaml:"empty_volts"`
	FullVolts  float64       `yaml:"full_volts"`
}

type TelemetryConfig struct {
	// every characteristic is refreshed once per period, staggered
	Period       time.Duration `yaml:"period"`
	CommandQueue int           `yaml:"command_queue"`
}

type InfluxConfig struct {
	URL    string `yaml:"url"`
	Org    string `yaml:"org"`
	Bucket string `yaml:"bucket"`
	// Token is read from INFLUX_TOKEN when empty
	Token string `yaml:"token"`
}

// Enabled reports whether readings should be archived.
func (c InfluxConfig) Enabled() bool {
	return c.URL != "" && c.Bucket != ""
}

func Default() *Config {
	return &Config{
		Sampler: SamplerConfig{
			Period:              250 * time.Millisecond,
			VRef:                3.3,
			SupplyVolts:         5.0,
			DividerRatio:        2.0 / 3.0,
			BatteryDividerRatio: 0.5,
			StuckCycles:         20,
		},
		Battery: BatteryConfig{
			Period:     50 * time.Millisecond,
			Window:     40, // ~2s at 50ms
			EmptyVolts: 3.3,
			FullVolts:  4.2,
		},
		Telemetry: TelemetryConfig{
			Period:       250 * time.Millisecond,
			CommandQueue: 8,
		},
		CO2Offset: DefaultCO2Offset,
	}
}

// Load reads a YAML config. A missing file yields the defaults.
func Load(filename string) (*Config, error) {
	cfg := Default()
	if filename != "" {
		data, err := os.ReadFile(filename)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, errors.Wrap(err, "failed to read config file")
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, errors.Wrap(err, "failed to parse config file")
			}
			cfg.ensureDefaults()
		}
	}

	if cfg.Influx.Token == "" {
		cfg.Influx.Token = os.Getenv("INFLUX_TOKEN")
	}
	return cfg, nil
}

func (c *Config) ensureDefaults() {
	d := Default()
	if c.Sampler.Period <= 0 {
		c.Sampler.Period = d.Sampler.Period
	}
	if c.Sampler.VRef <= 0 {
		c.Sampler.VRef = d.Sampler.VRef
	}
	if c.Sampler.SupplyVolts <= 0 {
		c.Sampler.SupplyVolts = d.Sampler.SupplyVolts
	}
	if c.Sampler.DividerRatio <= 0 {
		c.Sampler.DividerRatio = d.Sampler.DividerRatio
	}
	if c.Sampler.BatteryDividerRatio <= 0 {
		c.Sampler.BatteryDividerRatio = d.Sampler.BatteryDividerRatio
	}
	if c.Sampler.StuckCycles <= 0 {
		c.Sampler.StuckCycles = d.Sampler.StuckCycles
	}
	if c.Battery.Period <= 0 {
		c.Battery.Period = d.Battery.Period
	}
	if c.Battery.Window <= 0 {
		c.Battery.Window = d.Battery.Window
	}
	if c.Battery.FullVolts <= c.Battery.EmptyVolts {
		c.Battery.EmptyVolts = d.Battery.EmptyVolts
		c.Battery.FullVolts = d.Battery.FullVolts
	}
	if c.Telemetry.Period <= 0 {
		c.Telemetry.Period = d.Telemetry.Period
	}
	if c.Telemetry.CommandQueue <= 0 {
		c.Telemetry.CommandQueue = d.Telemetry.CommandQueue
	}
}
