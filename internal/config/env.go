package config

import (
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override.
const EnvPrefix = "TRACKFLOW"

// Environment variables recognised by ApplyEnv and Actor.
const (
	EnvLogLevel      = "TRACKFLOW_LOG_LEVEL"
	EnvLogFormat     = "TRACKFLOW_LOG_FORMAT"
	EnvStorageDriver = "TRACKFLOW_STORAGE_DRIVER"
	EnvStoragePath   = "TRACKFLOW_STORAGE_PATH"
	EnvServerAddr    = "TRACKFLOW_SERVER_ADDR"
	EnvActor         = "TRACKFLOW_ACTOR"
)

func newEnv() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("log.level", EnvLogLevel)
	_ = v.BindEnv("log.format", EnvLogFormat)
	_ = v.BindEnv("storage.driver", EnvStorageDriver)
	_ = v.BindEnv("storage.path", EnvStoragePath)
	_ = v.BindEnv("server.addr", EnvServerAddr)
	_ = v.BindEnv("actor", EnvActor)
	return v
}

// ApplyEnv overlays TRACKFLOW_* environment variables on the loaded config.
// Unset variables leave the file values alone. The result is re-validated.
func (c *Config) ApplyEnv() error {
	v := newEnv()
	override := func(key string, dst *string) {
		if s := v.GetString(key); s != "" {
			*dst = s
		}
	}
	override("log.level", &c.Log.Level)
	override("log.format", &c.Log.Format)
	override("storage.driver", &c.Storage.Driver)
	override("storage.path", &c.Storage.Path)
	override("server.addr", &c.Server.Addr)
	return c.Validate()
}

// Actor returns the acting user from TRACKFLOW_ACTOR, falling back to fallback.
func Actor(fallback string) string {
	if s := newEnv().GetString("actor"); s != "" {
		return s
	}
	return fallback
}
