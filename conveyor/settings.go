package conveyor

import (
	"time"

	"github.com/kbukum/justconveyor/validation"
)

// Settings tunes the background loops of a conveyor.
type Settings struct {
	// CooldownPeriod is the interval of the tick that wakes idle lines.
	CooldownPeriod time.Duration `mapstructure:"cooldown_period" validate:"gt=0"`
	// HarvestPeriod is the interval of the counter harvester.
	HarvestPeriod time.Duration `mapstructure:"harvest_period" validate:"gt=0"`
	// ReceiveTimeout bounds one queue poll of a line.
	ReceiveTimeout time.Duration `mapstructure:"receive_timeout" validate:"gt=0"`
	// SupplierRate caps supplier polls per second; zero disables pacing.
	SupplierRate float64 `mapstructure:"supplier_rate" validate:"gte=0"`
	// SupplierBurst is the pacing bucket size.
	SupplierBurst int `mapstructure:"supplier_burst" validate:"gte=0"`
	// StepTracing opens a span around every pipeline step.
	StepTracing bool `mapstructure:"step_tracing"`
}

// DefaultSettings returns the defaults used for zero fields.
func DefaultSettings() Settings {
	return Settings{
		CooldownPeriod: time.Second,
		HarvestPeriod:  5 * time.Second,
		ReceiveTimeout: time.Second,
	}
}

// ApplyDefaults fills zero durations.
func (s *Settings) ApplyDefaults() {
	d := DefaultSettings()
	if s.CooldownPeriod == 0 {
		s.CooldownPeriod = d.CooldownPeriod
	}
	if s.HarvestPeriod == 0 {
		s.HarvestPeriod = d.HarvestPeriod
	}
	if s.ReceiveTimeout == 0 {
		s.ReceiveTimeout = d.ReceiveTimeout
	}
}

// Validate checks the settings.
func (s Settings) Validate() error {
	return validation.Struct(s)
}
