package logger

import (
	"regexp"
	"strings"
)

// sensitiveDataPatterns match credentials that must never reach a log sink.
// Each pattern keeps its first group and replaces the secret part.
var sensitiveDataPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-._~+/]+=*)`),
	regexp.MustCompile(`(?i)(x-goog-api-key[\s:=]+)([^;,\s]+)`),
	regexp.MustCompile(`()(AIza[0-9A-Za-z_\-]{20,})`),
	regexp.MustCompile(`()(eyJ[A-Za-z0-9_\-]{5,}\.[A-Za-z0-9_\-]{5,}\.[A-Za-z0-9_\-]*)`),
	regexp.MustCompile(`(?i)((?:api[_-]?key|apikey|anon[_-]?key|access[_-]?token|secret|passw(?:or)?d|password_hash)["']?[\s:=]+["']?)([^;,\s"']{3,})`),
}

// SensitiveKeywords mark field keys whose values are always redacted
var SensitiveKeywords = []string{
	"password", "passwd", "secret", "credential", "token", "apikey", "api_key",
	"anonkey", "anon_key", "authorization", "cookie",
}

// RedactSensitiveData replaces API keys, bearer tokens, JWTs and passwords with "[REDACTED]"
func RedactSensitiveData(input string) string {
	if input == "" {
		return input
	}
	for _, pattern := range sensitiveDataPatterns {
		input = pattern.ReplaceAllString(input, "${1}[REDACTED]")
	}
	return input
}

// IsSensitiveKey reports whether a field key names a secret
func IsSensitiveKey(key string) bool {
	keyLower := strings.ToLower(key)
	for _, keyword := range SensitiveKeywords {
		if strings.Contains(keyLower, keyword) {
			return true
		}
	}
	return false
}

// Redacted returns a string field whose value is hidden when the key is sensitive
// and scrubbed of embedded credentials otherwise.
func Redacted(key, value string) Field {
	if value != "" && IsSensitiveKey(key) {
		return String(key, "[REDACTED]")
	}
	return String(key, RedactSensitiveData(value))
}
