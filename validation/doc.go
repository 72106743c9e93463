// Package validation checks configuration and registration input.
//
// Struct tag validation (go-playground/validator) is used for settings
// loaded from config files:
//
//	type Settings struct {
//	    CooldownPeriod time.Duration `mapstructure:"cooldown_period" validate:"gt=0"`
//	}
//	err := validation.Struct(settings)
//
// Programmatic checks collect failures for values tags cannot express:
//
//	err := validation.New().
//	    NotNil("blueprint", d.Blueprint).
//	    Min("lines", d.Lines, 1).
//	    Err()
//
// Both return a INVALID_INPUT AppError with a "fields" detail.
package validation
