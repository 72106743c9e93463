package bootstrap

import (
	"github.com/kbukum/justconveyor/config"
)

// Config is the constraint for host configuration types. Any struct that
// embeds config.ServiceConfig satisfies it through promoted methods.
//
//	type Config struct {
//	    config.ServiceConfig `yaml:",inline" mapstructure:",squash"`
//	    Conveyor conveyor.Settings `yaml:"conveyor" mapstructure:"conveyor"`
//	}
type Config interface {
	GetServiceConfig() *config.ServiceConfig
	ApplyDefaults()
	Validate() error
}
