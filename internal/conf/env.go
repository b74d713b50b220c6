package conf

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// envBinding maps a config key to one or more environment variables.
// The first variable that is set wins.
type envBinding struct {
	ConfigKey string
	EnvVars   []string
	Validate  func(string) error
}

func getEnvBindings() []envBinding {
	return []envBinding{
		{"gemini.apikey", []string{"FINDR_GEMINI_API_KEY", "EXPO_PUBLIC_GEMINI_API_KEY"}, validateEnvNonEmpty},
		{"supabase.url", []string{"FINDR_SUPABASE_URL", "EXPO_PUBLIC_SUPABASE_URL"}, validateEnvSupabaseURL},
		{"supabase.anonkey", []string{"FINDR_SUPABASE_ANON_KEY", "EXPO_PUBLIC_SUPABASE_ANON_KEY"}, validateEnvNonEmpty},
		{"datastore.type", []string{"FINDR_DATASTORE_TYPE"}, validateEnvDatastoreType},
		{"webserver.listen", []string{"FINDR_LISTEN"}, validateEnvListen},
		{"logging.default_level", []string{"FINDR_LOG_LEVEL"}, validateEnvLogLevel},
	}
}

// bindEnvVars binds every variable and validates the ones that are set.
func bindEnvVars(v *viper.Viper) error {
	var problems []string

	for _, binding := range getEnvBindings() {
		args := append([]string{binding.ConfigKey}, binding.EnvVars...)
		if err := v.BindEnv(args...); err != nil {
			problems = append(problems, fmt.Sprintf("failed to bind %s: %v", binding.ConfigKey, err))
			continue
		}

		if binding.Validate == nil {
			continue
		}
		for _, name := range binding.EnvVars {
			value := os.Getenv(name)
			if value == "" {
				continue
			}
			if err := binding.Validate(value); err != nil {
				problems = append(problems, fmt.Sprintf("invalid %s: %v", name, err))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("environment variable issues:\n  - %s", strings.Join(problems, "\n  - "))
	}
	return nil
}

func validateEnvNonEmpty(value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("value is empty")
	}
	return nil
}

func validateEnvSupabaseURL(value string) error {
	if value == SupabaseURLPlaceholder {
		return nil
	}
	u, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("not a URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("host is empty")
	}
	return nil
}

func validateEnvDatastoreType(value string) error {
	switch strings.ToLower(value) {
	case DatastoreSQLite, DatastoreMySQL:
		return nil
	default:
		return fmt.Errorf("must be %q or %q, got %q", DatastoreSQLite, DatastoreMySQL, value)
	}
}

func validateEnvListen(value string) error {
	if _, _, err := net.SplitHostPort(value); err != nil {
		return fmt.Errorf("must be host:port: %w", err)
	}
	return nil
}

func validateEnvLogLevel(value string) error {
	switch strings.ToLower(value) {
	case "trace", "debug", "info", "warn", "warning", "error":
		return nil
	default:
		return fmt.Errorf("unknown log level %q", value)
	}
}
