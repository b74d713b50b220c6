// Package conf loads Findr settings from config.yaml, environment variables
// and command line flags using viper.
package conf

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/labstack/gommon/bytes"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/findrapp/findr/internal/errors"
	"github.com/findrapp/findr/internal/logger"
	"github.com/findrapp/findr/internal/secrets"
)

//go:embed config.yaml
var configFiles embed.FS

const (
	// GeminiKeyPlaceholder is the value shipped in example env files
	GeminiKeyPlaceholder = "your_gemini_api_key_here"
	// GeminiKeyFallback is used when no usable key is configured
	GeminiKeyFallback = "GEMINI-KEY"

	SupabaseURLPlaceholder     = "YOUR_SUPABASE_URL"
	SupabaseAnonKeyPlaceholder = "YOUR_SUPABASE_ANON_KEY"
)

// Settings contains all configuration options for Findr.
type Settings struct {
	Debug bool `yaml:"debug"`

	Main struct {
		Name string `yaml:"name"` // instance name reported in health output and MQTT client ids
	} `yaml:"main"`

	Gemini    GeminiSettings       `yaml:"gemini"`
	Supabase  SupabaseSettings     `yaml:"supabase"`
	Datastore DatastoreSettings    `yaml:"datastore"`
	Reconcile ReconcileSettings    `yaml:"reconcile"`
	MQTT      MQTTSettings         `yaml:"mqtt"`
	WebServer WebServerSettings    `yaml:"webserver"`
	Sentry    SentrySettings       `yaml:"sentry"`
	Logging   logger.LoggingConfig `yaml:"logging"`
}

// GeminiSettings configures the image classifier.
type GeminiSettings struct {
	APIKey        string        `yaml:"apikey"`
	APIKeyFile    string        `yaml:"apikeyfile"` // path to a mounted secret, wins over apikey
	Model         string        `yaml:"model"`
	Endpoint      string        `yaml:"endpoint"`
	EncodeTimeout time.Duration `yaml:"encodetimeout"` // bound on reading and base64 encoding the image
	Timeout       time.Duration `yaml:"timeout"`       // bound on the whole classification
	CacheTTL      time.Duration `yaml:"cachettl"`      // 0 disables the result cache
	RateLimit     float64       `yaml:"ratelimit"`     // requests per second, 0 disables limiting
	Burst         int           `yaml:"burst"`
}

// SupabaseSettings configures the hosted store and object storage.
type SupabaseSettings struct {
	URL            string        `yaml:"url"`
	AnonKey        string        `yaml:"anonkey"`
	AnonKeyFile    string        `yaml:"anonkeyfile"`
	SightingsTable string        `yaml:"sightingstable"`
	UsersTable     string        `yaml:"userstable"`
	Bucket         string        `yaml:"bucket"`
	MaxUploadSize  string        `yaml:"maxuploadsize"` // human readable, e.g. "10MB"
	Timeout        time.Duration `yaml:"timeout"`
}

// MaxUploadBytes parses MaxUploadSize.
func (s *SupabaseSettings) MaxUploadBytes() (int64, error) {
	n, err := bytes.Parse(s.MaxUploadSize)
	if err != nil {
		return 0, fmt.Errorf("invalid supabase.maxuploadsize %q: %w", s.MaxUploadSize, err)
	}
	return n, nil
}

// IsConfigured reports whether both URL and key are set to real values.
func (s *SupabaseSettings) IsConfigured() bool {
	return s.URL != "" && s.AnonKey != "" &&
		s.URL != SupabaseURLPlaceholder && s.AnonKey != SupabaseAnonKeyPlaceholder
}

// DatastoreSettings selects the local device store.
type DatastoreSettings struct {
	Type   string `yaml:"type"` // sqlite or mysql
	SQLite struct {
		Path string `yaml:"path"`
	} `yaml:"sqlite"`
	MySQL struct {
		Host     string `yaml:"host"`
		Port     int    `yaml:"port"`
		Username string `yaml:"username"`
		Password string `yaml:"password"`
		Database string `yaml:"database"`
	} `yaml:"mysql"`
}

// ReconcileSettings controls the background retry of pending sightings and accounts.
type ReconcileSettings struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
}

// MQTTSettings configures sighting event publishing.
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"clientid"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	Retain   bool   `yaml:"retain"`
}

// WebServerSettings configures the HTTP API.
type WebServerSettings struct {
	Enabled         bool          `yaml:"enabled"`
	Listen          string        `yaml:"listen"`
	ShutdownTimeout time.Duration `yaml:"shutdowntimeout"`
}

// SentrySettings configures optional error telemetry.
type SentrySettings struct {
	Enabled bool   `yaml:"enabled"`
	DSN     string `yaml:"dsn"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration from the default search paths, creating a
// default config file when none exists.
func Load() (*Settings, error) {
	return LoadFile("")
}

// LoadFile reads the configuration from an explicit file. An empty path searches the default locations.
func LoadFile(configFile string) (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	settings, err := loadWith(viper.GetViper(), configFile)
	if err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settings, nil
}

func loadWith(v *viper.Viper, configFile string) (*Settings, error) {
	if err := initViper(v, configFile); err != nil {
		return nil, errors.New(fmt.Errorf("error initializing viper: %w", err)).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}

	settings := &Settings{}
	if err := v.Unmarshal(settings); err != nil {
		return nil, errors.New(fmt.Errorf("error unmarshaling config into struct: %w", err)).
			Component("configuration").
			Category(errors.CategoryConfiguration).
			Build()
	}

	if err := resolveSecrets(settings); err != nil {
		return nil, err
	}
	applyFallbacks(settings)

	if err := ValidateSettings(settings); err != nil {
		return nil, errors.New(err).
			Component("configuration").
			Category(errors.CategoryValidation).
			Build()
	}

	return settings, nil
}

func initViper(v *viper.Viper, configFile string) error {
	setDefaultConfig(v)

	if err := bindEnvVars(v); err != nil {
		return err
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		return v.ReadInConfig()
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")

	configPaths, err := GetDefaultConfigPaths()
	if err != nil {
		return err
	}
	for _, path := range configPaths {
		v.AddConfigPath(path)
	}

	err = v.ReadInConfig()
	if err == nil {
		return nil
	}

	var notFound viper.ConfigFileNotFoundError
	if errors.As(err, &notFound) {
		return createDefaultConfig(v, configPaths)
	}
	return fmt.Errorf("fatal error reading config file: %w", err)
}

// createDefaultConfig writes the embedded config.yaml to the first writable search path
func createDefaultConfig(v *viper.Viper, configPaths []string) error {
	data, err := fs.ReadFile(configFiles, "config.yaml")
	if err != nil {
		return fmt.Errorf("error reading embedded config: %w", err)
	}

	var lastErr error
	for _, dir := range configPaths {
		configPath := filepath.Join(dir, "config.yaml")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			lastErr = err
			continue
		}
		if err := os.WriteFile(configPath, data, 0o644); err != nil {
			lastErr = err
			continue
		}
		logger.Global().Module("conf").Info("created default config file", logger.String("path", configPath))
		v.SetConfigFile(configPath)
		return v.ReadInConfig()
	}

	return fmt.Errorf("error writing default config file: %w", lastErr)
}

// resolveSecrets expands ${VAR} references and reads *file keys
func resolveSecrets(s *Settings) error {
	resolve := func(name, file, value string) (string, error) {
		resolved, err := secrets.Resolve(file, value)
		if err != nil {
			return "", errors.New(fmt.Errorf("resolving %s: %w", name, err)).
				Component("configuration").
				Category(errors.CategoryConfiguration).
				Build()
		}
		return resolved, nil
	}

	var err error
	if s.Gemini.APIKey, err = resolve("gemini.apikey", s.Gemini.APIKeyFile, s.Gemini.APIKey); err != nil {
		return err
	}
	if s.Supabase.AnonKey, err = resolve("supabase.anonkey", s.Supabase.AnonKeyFile, s.Supabase.AnonKey); err != nil {
		return err
	}
	if s.Supabase.URL, err = resolve("supabase.url", "", s.Supabase.URL); err != nil {
		return err
	}
	if s.MQTT.Password, err = resolve("mqtt.password", "", s.MQTT.Password); err != nil {
		return err
	}
	if s.Datastore.MySQL.Password, err = resolve("datastore.mysql.password", "", s.Datastore.MySQL.Password); err != nil {
		return err
	}
	if s.Sentry.DSN, err = resolve("sentry.dsn", "", s.Sentry.DSN); err != nil {
		return err
	}
	return nil
}

// applyFallbacks substitutes the hardcoded values used when credentials are absent.
// Placeholder Supabase values make the store read as not configured.
func applyFallbacks(s *Settings) {
	if s.Gemini.APIKey == "" || s.Gemini.APIKey == GeminiKeyPlaceholder {
		s.Gemini.APIKey = GeminiKeyFallback
	}
	if s.Supabase.URL == "" {
		s.Supabase.URL = SupabaseURLPlaceholder
	}
	if s.Supabase.AnonKey == "" {
		s.Supabase.AnonKey = SupabaseAnonKeyPlaceholder
	}
}

// GetSettings returns the current settings instance
func GetSettings() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}

// SaveYAMLConfig writes settings to configPath atomically.
// Comments and ordering in an existing file are not preserved.
func SaveYAMLConfig(configPath string, settings *Settings) error {
	yamlData, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling settings to YAML: %w", err)
	}

	tempFile, err := os.CreateTemp(filepath.Dir(configPath), "config-*.yaml")
	if err != nil {
		return fmt.Errorf("error creating temporary file: %w", err)
	}
	tempFileName := tempFile.Name()
	defer os.Remove(tempFileName)

	if _, err := tempFile.Write(yamlData); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("error writing to temporary file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("error closing temporary file: %w", err)
	}

	if err := os.Rename(tempFileName, configPath); err != nil {
		return errors.New(fmt.Errorf("error replacing config file: %w", err)).
			Component("configuration").
			Category(errors.CategoryFileIO).
			FileContext(configPath, int64(len(yamlData))).
			Build()
	}
	return nil
}
