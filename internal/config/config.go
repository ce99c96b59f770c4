package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/coreman2200/dv8lights/internal/statebus"
)

type MQTT struct {
	Broker        string        `yaml:"broker" validate:"required,url"`
	ClientID      string        `yaml:"client_id"` // empty: generated
	Username      string        `yaml:"username,omitempty"`
	Password      string        `yaml:"password,omitempty"`
	KeepAlive     time.Duration `yaml:"keep_alive" validate:"gt=0"`
	RetryInterval time.Duration `yaml:"retry_interval" validate:"gt=0"`
}

// Output is one LED array's transport.
type Output struct {
	Driver     string  `yaml:"driver" validate:"oneof=periph spidev screen sim"`
	Port       string  `yaml:"port"` // periph port name or /dev/spidevX.Y
	Count      int     `yaml:"count" validate:"gt=0"`
	ColorOrder string  `yaml:"color_order" validate:"oneof=RGB GRB RGBW GRBW"`
	Brightness float64 `yaml:"brightness" validate:"gte=0,lte=1"`
	SpeedHz    int     `yaml:"speed_hz" validate:"gte=0"`
	ResetUs    int     `yaml:"reset_us" validate:"gte=0"`
	BudgetMA   float64 `yaml:"budget_ma" validate:"gte=0"` // 0 = no limit
	ChannelMA  float64 `yaml:"channel_ma" validate:"gte=0"`
}

type Light struct {
	Output      `yaml:",inline"`
	GapStart    int           `yaml:"gap_start" validate:"gte=0"`
	GapEnd      int           `yaml:"gap_end" validate:"gtefield=GapStart"`
	Period      time.Duration `yaml:"period" validate:"gt=0"`
	BlinkPeriod time.Duration `yaml:"blink_period" validate:"gt=0"`
}

type Panel struct {
	Output `yaml:",inline"`
	FPS    int `yaml:"fps" validate:"gt=0,lte=240"`
}

type Face struct {
	MinHold time.Duration `yaml:"min_hold" validate:"gt=0"`
	MaxHold time.Duration `yaml:"max_hold" validate:"gtefield=MinHold"`
}

type Status struct {
	Addr     string        `yaml:"addr"` // empty: no HTTP server
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
}

type Log struct {
	Level      string `yaml:"level" validate:"oneof=trace debug info warn error"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `yaml:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"max_age_days" validate:"gte=0"`
	Console    bool   `yaml:"console"`
}

type Config struct {
	MQTT   MQTT   `yaml:"mqtt"`
	Light  Light  `yaml:"light"`
	Panel  Panel  `yaml:"panel"`
	Face   Face   `yaml:"face"`
	Status Status `yaml:"status"`
	Log    Log    `yaml:"log"`
}

func Default() *Config {
	return &Config{
		MQTT: MQTT{
			Broker:        "tcp://192.168.0.108:1883",
			KeepAlive:     5 * time.Second,
			RetryInterval: 5 * time.Second,
		},
		Light: Light{
			Output: Output{
				Driver:     "periph",
				Port:       "SPI0.0",
				Count:      120,
				ColorOrder: "GRBW",
				Brightness: 0.5,
				SpeedHz:    2400000,
				ResetUs:    300,
				ChannelMA:  20,
			},
			GapStart:    15,
			GapEnd:      35,
			Period:      time.Second,
			BlinkPeriod: time.Second,
		},
		Panel: Panel{
			Output: Output{
				Driver:     "periph",
				Port:       "SPI1.0",
				Count:      statebus.PanelPixels,
				ColorOrder: "GRB",
				Brightness: 1.0,
				SpeedHz:    2400000,
				ResetUs:    300,
				ChannelMA:  20,
			},
			FPS: 30,
		},
		Face:   Face{MinHold: 10 * time.Second, MaxHold: 20 * time.Second},
		Status: Status{Addr: ":8080", Interval: time.Second},
		Log:    Log{Level: "info", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 28, Console: true},
	}
}

var validate = validator.New()

// Validate checks field ranges and the cross-section constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Light.GapEnd >= c.Light.Count {
		return fmt.Errorf("config: light gap_end %d outside strip of %d", c.Light.GapEnd, c.Light.Count)
	}
	if c.Panel.Count != statebus.PanelPixels {
		return fmt.Errorf("config: panel count must be %d, got %d", statebus.PanelPixels, c.Panel.Count)
	}
	return nil
}

// Load reads path over the defaults. A missing file returns the defaults
// with an error wrapping fs.ErrNotExist.
func Load(path string) (*Config, error) {
	c := Default()
	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return c, err
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func Save(path string, c *Config) error {
	b, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0644)
}
