package pipeline

import (
	"errors"
	"fmt"
)

// Sentinel causes carried by ConfigurationError.
var (
	ErrSettingMissing   = errors.New("setting is missing")
	ErrSettingMalformed = errors.New("setting is malformed")
)

// ConfigurationError reports a required setting or secret that is absent or unusable.
type ConfigurationError struct {
	Setting string
	Err     error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %v", e.Setting, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// MissingSetting builds a ConfigurationError for an absent setting.
func MissingSetting(setting string) error {
	return &ConfigurationError{Setting: setting, Err: ErrSettingMissing}
}

// MalformedSetting builds a ConfigurationError for a setting that is present but cannot be used.
func MalformedSetting(setting string, cause error) error {
	if cause == nil {
		return &ConfigurationError{Setting: setting, Err: ErrSettingMalformed}
	}
	return &ConfigurationError{Setting: setting, Err: fmt.Errorf("%w: %w", ErrSettingMalformed, cause)}
}

// TransportError reports a failed exchange with an external service.
// StatusCode is zero when no HTTP response was received.
type TransportError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s transport: http %d: %v", e.Service, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s transport: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ValidationError reports input missing a field that a downstream tool needs.
// Index is the offending item position, or -1 when the failure is not item scoped.
type ValidationError struct {
	Field  string
	Index  int
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("validation: item %d: %s %s", e.Index, e.Field, e.Reason)
	}
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// AbortError wraps the first failure of a run with the stage that produced it.
type AbortError struct {
	RunID string
	Stage StageID
	Err   error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("run %s failed at stage %s: %v", e.RunID, e.Stage, e.Err)
}

func (e *AbortError) Unwrap() error { return e.Err }
