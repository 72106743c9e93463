package main

import (
	"fmt"

	"github.com/kbukum/justconveyor/admin"
	"github.com/kbukum/justconveyor/config"
	"github.com/kbukum/justconveyor/conveyor"
	"github.com/kbukum/justconveyor/observability"
	"github.com/kbukum/justconveyor/validation"
)

// Config is the multiplier host configuration.
type Config struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Conveyor  conveyor.Settings `yaml:"conveyor" mapstructure:"conveyor"`
	Admin     admin.Config      `yaml:"admin" mapstructure:"admin"`
	Telemetry TelemetryConfig   `yaml:"telemetry" mapstructure:"telemetry"`
	Numbers   NumbersConfig     `yaml:"numbers" mapstructure:"numbers"`
}

// TelemetryConfig switches the OTLP exporters on.
type TelemetryConfig struct {
	Enabled bool                       `yaml:"enabled" mapstructure:"enabled"`
	Tracer  observability.TracerConfig `yaml:"tracer" mapstructure:"tracer"`
	Meter   observability.MeterConfig  `yaml:"meter" mapstructure:"meter"`
}

// NumbersConfig shapes the demo workload.
type NumbersConfig struct {
	Count  int `yaml:"count" mapstructure:"count" validate:"gte=1"`
	Factor int `yaml:"factor" mapstructure:"factor" validate:"ne=0"`
	Lines  int `yaml:"lines" mapstructure:"lines" validate:"gte=1"`
}

func (c *Config) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Conveyor.ApplyDefaults()
	c.Admin.ApplyDefaults()
	if c.Numbers.Count == 0 {
		c.Numbers.Count = 100
	}
	if c.Numbers.Factor == 0 {
		c.Numbers.Factor = 2
	}
	if c.Numbers.Lines == 0 {
		c.Numbers.Lines = 4
	}
	if c.Telemetry.Tracer.ServiceName == "" {
		c.Telemetry.Tracer = observability.DefaultTracerConfig(c.Name)
	}
	if c.Telemetry.Meter.ServiceName == "" {
		c.Telemetry.Meter = observability.DefaultMeterConfig(c.Name)
	}
}

func (c *Config) Validate() error {
	if err := c.ServiceConfig.Validate(); err != nil {
		return err
	}
	if err := c.Conveyor.Validate(); err != nil {
		return fmt.Errorf("config.conveyor: %w", err)
	}
	if err := c.Admin.Validate(); err != nil {
		return err
	}
	if err := validation.Struct(c.Telemetry.Tracer); err != nil {
		return fmt.Errorf("config.telemetry.tracer: %w", err)
	}
	if err := validation.Struct(c.Numbers); err != nil {
		return fmt.Errorf("config.numbers: %w", err)
	}
	return nil
}
