package validation

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kbukum/justconveyor/errors"
)

type settings struct {
	Period time.Duration `mapstructure:"period" validate:"gt=0"`
	Lines  int           `mapstructure:"lines" validate:"min=1"`
	Mode   string        `mapstructure:"mode" validate:"required,oneof=fast slow"`
	Name   string        `validate:"required"`
}

func TestStruct_Valid(t *testing.T) {
	s := settings{Period: time.Second, Lines: 1, Mode: "fast", Name: "x"}
	require.NoError(t, Struct(s))
}

func TestStruct_Invalid(t *testing.T) {
	err := Struct(settings{Mode: "other"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrCodeInvalidInput), "got %v", err)

	for _, want := range []string{
		"settings.period: must be greater than 0",
		"settings.lines: must be at least 1",
		"settings.mode: must be one of: fast slow",
		"settings.name: is required",
	} {
		assert.ErrorContains(t, err, want)
	}

	appErr, ok := errors.AsAppError(err)
	require.True(t, ok)
	fields, ok := appErr.Details["fields"].([]FieldError)
	require.True(t, ok, "fields detail is %T", appErr.Details["fields"])
	assert.Len(t, fields, 4)
}

func TestValidator_Checks(t *testing.T) {
	tests := []struct {
		name  string
		check func(v *Validator)
		fails bool
	}{
		{"required ok", func(v *Validator) { v.Required("name", "x") }, false},
		{"required blank", func(v *Validator) { v.Required("name", "  ") }, true},
		{"not nil ok", func(v *Validator) { v.NotNil("bp", 1) }, false},
		{"not nil missing", func(v *Validator) { v.NotNil("bp", nil) }, true},
		{"not nil typed pointer", func(v *Validator) { v.NotNil("bp", (*strings.Builder)(nil)) }, true},
		{"not nil typed map", func(v *Validator) { v.NotNil("headers", map[string]any(nil)) }, true},
		{"not nil empty slice", func(v *Validator) { v.NotNil("items", []int{}) }, false},
		{"min ok", func(v *Validator) { v.Min("lines", 1, 1) }, false},
		{"min below", func(v *Validator) { v.Min("lines", 0, 1) }, true},
		{"custom ok", func(v *Validator) { v.Custom(true, "x", "bad") }, false},
		{"custom failed", func(v *Validator) { v.Custom(false, "x", "bad") }, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := New()
			tt.check(v)
			assert.Equal(t, tt.fails, v.HasErrors(), "errors: %v", v.Errors())
			assert.Equal(t, tt.fails, v.Err() != nil, "Err() disagrees with HasErrors()")
		})
	}
}

func TestValidator_Chaining(t *testing.T) {
	err := New().Required("name", "").Min("lines", 0, 1).Err()
	require.Error(t, err)
	assert.ErrorContains(t, err, "name: is required; lines: must be at least 1")
}

func TestToSnakeCase(t *testing.T) {
	assert.Equal(t, "cooldown_period", toSnakeCase("CooldownPeriod"))
}
