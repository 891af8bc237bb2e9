// Package config loads the service configuration from the environment.
//
// Every setting is a struct field tagged for cleanenv:
//
//	cfg, err := config.Load()
//
// reads the process environment, after LoadEnvFile has merged an optional
// .env file into it. Durations accept Go syntax ("15m", "12h") or ISO-8601
// ("PT15M", "PT12H").
package config
