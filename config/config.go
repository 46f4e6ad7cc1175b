// Package config loads amigo's connection and fan-out settings,
// adapted from the teacher corpus's YAML-plus-environment-override
// pattern but built on viper (for layered config/env/flag precedence)
// and afero (so config loading is testable against an in-memory
// filesystem instead of the real one).
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
)

// AMI holds the connection and login parameters for the Asterisk
// Manager Interface.
type AMI struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Secret   string `mapstructure:"secret"`
	UseMD5   bool   `mapstructure:"use_md5"`
}

// Address returns the AMI server's dial address.
func (a AMI) Address() string {
	return fmt.Sprintf("%s:%d", a.Host, a.Port)
}

// Bus holds the optional event fan-out sink's connection settings. An
// empty URL disables fan-out entirely.
type Bus struct {
	URL    string `mapstructure:"url"`
	Prefix string `mapstructure:"prefix"`
}

// Log holds structured logging output settings.
type Log struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Config is amigo's top-level configuration.
type Config struct {
	AMI AMI `mapstructure:"ami"`
	Bus Bus `mapstructure:"bus"`
	Log Log `mapstructure:"log"`
}

func defaults(v *viper.Viper) {
	v.SetDefault("ami.port", 5038)
	v.SetDefault("ami.use_md5", true)
	v.SetDefault("bus.prefix", "ami.")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "terminal")
}

// Load reads configuration from path (if non-empty, any viper-
// supported format: YAML, JSON, TOML, ...) layered under environment
// variables prefixed AMIGO_ (e.g. AMIGO_AMI_SECRET overrides
// ami.secret) and the defaults above. fs is the filesystem path is
// resolved against; pass afero.NewOsFs() in production and an
// afero.NewMemMapFs() in tests.
func Load(fs afero.Fs, path string) (*Config, error) {
	v := viper.New()
	v.SetFs(fs)
	defaults(v)

	v.SetEnvPrefix("AMIGO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: reading %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: decoding: %w", err)
	}
	return &cfg, nil
}
