package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers a default for every key so that env-only
// deployments unmarshal into a complete Settings.
func setDefaultConfig(v *viper.Viper) {
	v.SetDefault("debug", false)
	v.SetDefault("main.name", "findr")

	v.SetDefault("gemini.apikey", "")
	v.SetDefault("gemini.apikeyfile", "")
	v.SetDefault("gemini.model", "gemini-2.5-flash")
	v.SetDefault("gemini.endpoint", "https://generativelanguage.googleapis.com/")
	v.SetDefault("gemini.encodetimeout", 10*time.Second)
	v.SetDefault("gemini.timeout", 30*time.Second)
	v.SetDefault("gemini.cachettl", time.Hour)
	v.SetDefault("gemini.ratelimit", 1.0)
	v.SetDefault("gemini.burst", 2)

	v.SetDefault("supabase.url", "")
	v.SetDefault("supabase.anonkey", "")
	v.SetDefault("supabase.anonkeyfile", "")
	v.SetDefault("supabase.sightingstable", "creature_sightings")
	v.SetDefault("supabase.userstable", "users")
	v.SetDefault("supabase.bucket", "animals")
	v.SetDefault("supabase.maxuploadsize", "10MB")
	v.SetDefault("supabase.timeout", 15*time.Second)

	v.SetDefault("datastore.type", "sqlite")
	v.SetDefault("datastore.sqlite.path", "findr.db")
	v.SetDefault("datastore.mysql.host", "localhost")
	v.SetDefault("datastore.mysql.port", 3306)
	v.SetDefault("datastore.mysql.username", "")
	v.SetDefault("datastore.mysql.password", "")
	v.SetDefault("datastore.mysql.database", "findr")

	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.interval", 5*time.Minute)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.broker", "tcp://localhost:1883")
	v.SetDefault("mqtt.clientid", "findr")
	v.SetDefault("mqtt.username", "")
	v.SetDefault("mqtt.password", "")
	v.SetDefault("mqtt.topic", "findr/sightings")
	v.SetDefault("mqtt.retain", false)

	v.SetDefault("webserver.enabled", true)
	v.SetDefault("webserver.listen", ":8080")
	v.SetDefault("webserver.shutdowntimeout", 10*time.Second)

	v.SetDefault("sentry.enabled", false)
	v.SetDefault("sentry.dsn", "")

	v.SetDefault("logging.default_level", "info")
	v.SetDefault("logging.timezone", "Local")
	v.SetDefault("logging.console.enabled", true)
	v.SetDefault("logging.console.level", "info")
	v.SetDefault("logging.file_output.enabled", false)
	v.SetDefault("logging.file_output.path", "logs/findr.log")
	v.SetDefault("logging.file_output.level", "info")
}
