package config

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// DefaultPath is where Load looks when no path is given on the command line.
const DefaultPath = "config.toml"

// Load reads the TOML configuration at path, applies WARDEN_* environment
// overrides, and validates the result.
func Load(fs afero.Fs, path string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	v.SetEnvPrefix("WARDEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "failed to read config file %s", path)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// setDefaults registers every key with viper. Environment overrides are only
// honored for keys viper already knows about.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.command", "")
	v.SetDefault("server.args", []string{})
	v.SetDefault("server.workdir", "")
	v.SetDefault("server.stop_command", "stop")
	v.SetDefault("server.stop_timeout", "30s")

	v.SetDefault("schedule.start", "")
	v.SetDefault("schedule.end", "")
	v.SetDefault("schedule.poll_interval", "10s")
	v.SetDefault("schedule.warn_minutes", []int{10, 5, 1})

	v.SetDefault("watchdog.max_starts", 3)
	v.SetDefault("watchdog.window", "5m")
	v.SetDefault("watchdog.backoff", "60s")

	v.SetDefault("notify.discord_webhook_url", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)
}
