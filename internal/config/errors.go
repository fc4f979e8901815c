package config

import "fmt"

type ConfigErrorCode string

const (
	ConfigErrorMissing ConfigErrorCode = "missing"
	ConfigErrorInvalid ConfigErrorCode = "invalid"
)

// ConfigError is fatal at startup; callers should not retry.
type ConfigError struct {
	Code  ConfigErrorCode
	Field string
	Env   string
	Value string
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid config"
	}
	switch e.Code {
	case ConfigErrorMissing:
		if e.Env != "" {
			return fmt.Sprintf("%s is required (set %s in the environment or .env file)", e.Field, e.Env)
		}
		return fmt.Sprintf("%s is required", e.Field)
	case ConfigErrorInvalid:
		return fmt.Sprintf("invalid %s=%q", e.Field, e.Value)
	default:
		return "invalid config"
	}
}
