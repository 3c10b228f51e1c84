package logger

import "strings"

const (
	// DefaultMaskValue is the replacement for masked field values.
	DefaultMaskValue = "***"
)

// FilterConfig defines the configuration for sensitive data filtering.
type FilterConfig struct {
	// SensitiveFields contains field names that should be masked in logs
	SensitiveFields []string
	// MaskValue is the value used to replace sensitive data (default: "***")
	MaskValue string
}

// DefaultFilterConfig returns a configuration covering the credential
// material this SDK handles: bearer tokens, refresh tokens and passwords
// must never appear in log output.
func DefaultFilterConfig() *FilterConfig {
	return &FilterConfig{
		SensitiveFields: []string{
			"password",
			"secret", "api_key", "apikey",
			"token", "access_token", "refresh_token", "bearer",
			"auth", "authorization",
			"credential", "credentials",
		},
		MaskValue: DefaultMaskValue,
	}
}

// SensitiveDataFilter masks sensitive fields before they reach the log sink.
type SensitiveDataFilter struct {
	config *FilterConfig
}

// NewSensitiveDataFilter creates a new filter with the given configuration.
func NewSensitiveDataFilter(config *FilterConfig) *SensitiveDataFilter {
	if config == nil {
		config = DefaultFilterConfig()
	}
	if config.MaskValue == "" {
		config.MaskValue = DefaultMaskValue
	}
	return &SensitiveDataFilter{config: config}
}

// FilterString filters sensitive data from string values.
func (f *SensitiveDataFilter) FilterString(key, value string) string {
	if f.isSensitiveField(key) {
		return f.config.MaskValue
	}
	return value
}

// FilterValue filters sensitive data from arbitrary values. String map
// values are filtered recursively one level deep, which covers the header
// maps logged by the HTTP layer.
func (f *SensitiveDataFilter) FilterValue(key string, value any) any {
	if f.isSensitiveField(key) {
		return f.config.MaskValue
	}
	if m, ok := value.(map[string]string); ok {
		filtered := make(map[string]string, len(m))
		for k, v := range m {
			filtered[k] = f.FilterString(k, v)
		}
		return filtered
	}
	if m, ok := value.(map[string]any); ok {
		return f.FilterFields(m)
	}
	return value
}

// FilterFields returns a copy of fields with sensitive values masked.
func (f *SensitiveDataFilter) FilterFields(fields map[string]any) map[string]any {
	filtered := make(map[string]any, len(fields))
	for k, v := range fields {
		if f.isSensitiveField(k) {
			filtered[k] = f.config.MaskValue
			continue
		}
		filtered[k] = v
	}
	return filtered
}

// isSensitiveField checks if a field name is considered sensitive.
func (f *SensitiveDataFilter) isSensitiveField(fieldName string) bool {
	lower := strings.ToLower(fieldName)
	for _, sensitive := range f.config.SensitiveFields {
		if lower == sensitive || strings.Contains(lower, sensitive) {
			return true
		}
	}
	return false
}
