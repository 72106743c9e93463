// Package config loads host configuration for a conveyor process.
//
// Viper reads a YAML file found next to the command (or given explicitly),
// godotenv loads an optional .env file, and environment variables override
// file values using underscore-separated paths
// (CONVEYOR_COOLDOWN_PERIOD sets conveyor.cooldown_period).
//
// # Usage
//
//	var cfg Config
//	err := config.LoadConfig("multiplier", &cfg)
package config
