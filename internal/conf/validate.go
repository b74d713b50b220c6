package conf

import (
	"fmt"
	"strings"
)

const (
	DatastoreSQLite = "sqlite"
	DatastoreMySQL  = "mysql"
)

// ValidationError represents a collection of validation errors
type ValidationError struct {
	Errors []string
}

func (ve ValidationError) Error() string {
	return fmt.Sprintf("validation errors: %s", strings.Join(ve.Errors, "; "))
}

// ValidateSettings validates the entire Settings struct
func ValidateSettings(settings *Settings) error {
	ve := ValidationError{}

	for _, validate := range []func(*Settings) []string{
		validateGeminiSettings,
		validateSupabaseSettings,
		validateDatastoreSettings,
		validateReconcileSettings,
		validateMQTTSettings,
		validateWebServerSettings,
	} {
		ve.Errors = append(ve.Errors, validate(settings)...)
	}

	if len(ve.Errors) > 0 {
		return ve
	}
	return nil
}

func validateGeminiSettings(s *Settings) []string {
	var errs []string
	g := &s.Gemini

	if g.Model == "" {
		errs = append(errs, "gemini.model must not be empty")
	}
	if g.Timeout <= 0 {
		errs = append(errs, "gemini.timeout must be positive")
	}
	if g.EncodeTimeout <= 0 {
		errs = append(errs, "gemini.encodetimeout must be positive")
	}
	if g.Timeout > 0 && g.EncodeTimeout >= g.Timeout {
		errs = append(errs, fmt.Sprintf("gemini.encodetimeout (%s) must be shorter than gemini.timeout (%s)", g.EncodeTimeout, g.Timeout))
	}
	if g.CacheTTL < 0 {
		errs = append(errs, "gemini.cachettl must not be negative")
	}
	if g.RateLimit < 0 {
		errs = append(errs, "gemini.ratelimit must not be negative")
	}
	if g.RateLimit > 0 && g.Burst < 1 {
		errs = append(errs, "gemini.burst must be at least 1 when rate limiting is enabled")
	}
	return errs
}

func validateSupabaseSettings(s *Settings) []string {
	var errs []string
	sb := &s.Supabase

	if sb.Timeout <= 0 {
		errs = append(errs, "supabase.timeout must be positive")
	}
	if n, err := sb.MaxUploadBytes(); err != nil {
		errs = append(errs, err.Error())
	} else if n <= 0 {
		errs = append(errs, "supabase.maxuploadsize must be positive")
	}
	if sb.SightingsTable == "" || sb.UsersTable == "" {
		errs = append(errs, "supabase table names must not be empty")
	}
	if sb.Bucket == "" {
		errs = append(errs, "supabase.bucket must not be empty")
	}
	return errs
}

func validateDatastoreSettings(s *Settings) []string {
	var errs []string
	d := &s.Datastore
	d.Type = strings.ToLower(d.Type)

	switch d.Type {
	case DatastoreSQLite:
		if d.SQLite.Path == "" {
			errs = append(errs, "datastore.sqlite.path must not be empty")
		}
	case DatastoreMySQL:
		if d.MySQL.Host == "" || d.MySQL.Database == "" {
			errs = append(errs, "datastore.mysql host and database are required")
		}
		if d.MySQL.Port <= 0 || d.MySQL.Port > 65535 {
			errs = append(errs, fmt.Sprintf("datastore.mysql.port %d is out of range", d.MySQL.Port))
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown datastore.type %q", d.Type))
	}
	return errs
}

func validateReconcileSettings(s *Settings) []string {
	if s.Reconcile.Enabled && s.Reconcile.Interval <= 0 {
		return []string{"reconcile.interval must be positive when reconciliation is enabled"}
	}
	return nil
}

func validateMQTTSettings(s *Settings) []string {
	if !s.MQTT.Enabled {
		return nil
	}
	var errs []string
	if s.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required when mqtt is enabled")
	}
	if s.MQTT.Topic == "" {
		errs = append(errs, "mqtt.topic is required when mqtt is enabled")
	}
	return errs
}

func validateWebServerSettings(s *Settings) []string {
	if !s.WebServer.Enabled {
		return nil
	}
	if err := validateEnvListen(s.WebServer.Listen); err != nil {
		return []string{fmt.Sprintf("webserver.listen: %v", err)}
	}
	return nil
}
