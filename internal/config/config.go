// Package config loads the console configuration once at startup.
//
// Precedence is flags > environment > file > defaults. The returned Config is
// treated as immutable; both transports read from it and nothing writes back.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/ownding/headscale-console/internal/validate"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	configName = "headscale-console"
	envPrefix  = "HEADSCALE_CONSOLE"
)

// REST configures the JSON request/response transport.
type REST struct {
	URL           string        `mapstructure:"url" yaml:"url"`
	APIKey        string        `mapstructure:"api_key" yaml:"api_key"`
	Timeout       time.Duration `mapstructure:"timeout" yaml:"timeout"`
	RetryAttempts int           `mapstructure:"retry_attempts" yaml:"retry_attempts"` // reserved
}

// RPC configures the binary RPC transport.
type RPC struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Host       string        `mapstructure:"host" yaml:"host"`
	Port       int           `mapstructure:"port" yaml:"port"`
	TLS        bool          `mapstructure:"tls" yaml:"tls"`
	Timeout    time.Duration `mapstructure:"timeout" yaml:"timeout"`
	CACert     string        `mapstructure:"ca_cert" yaml:"ca_cert,omitempty"`
	ServerName string        `mapstructure:"server_name" yaml:"server_name,omitempty"`
	Insecure   bool          `mapstructure:"insecure" yaml:"insecure,omitempty"`
}

// Address returns host:port.
func (r RPC) Address() string {
	return net.JoinHostPort(r.Host, strconv.Itoa(r.Port))
}

// Server configures the admin HTTP API.
type Server struct {
	Listen         string        `mapstructure:"listen" yaml:"listen"`
	StatusInterval time.Duration `mapstructure:"status_interval" yaml:"status_interval"`
}

// Log configures logging.
type Log struct {
	Level string `mapstructure:"level" yaml:"level"`
	JSON  bool   `mapstructure:"json" yaml:"json"`
}

// Config is the full console configuration.
type Config struct {
	REST   REST   `mapstructure:"rest" yaml:"rest"`
	RPC    RPC    `mapstructure:"rpc" yaml:"rpc"`
	Server Server `mapstructure:"server" yaml:"server"`
	Log    Log    `mapstructure:"log" yaml:"log"`
}

// Defaults returns the default key/value map fed to viper.
func Defaults() map[string]any {
	return map[string]any{
		"rest.url":               "http://localhost:8080",
		"rest.api_key":           "",
		"rest.timeout":           "30s",
		"rest.retry_attempts":    3,
		"rpc.enabled":            true,
		"rpc.host":               "localhost",
		"rpc.port":               50443,
		"rpc.tls":                false,
		"rpc.timeout":            "30s",
		"rpc.ca_cert":            "",
		"rpc.server_name":        "",
		"rpc.insecure":           false,
		"server.listen":          "127.0.0.1:8088",
		"server.status_interval": "10s",
		"log.level":              "info",
		"log.json":               false,
	}
}

// GetConfigPath returns the full path for the configuration file.
func GetConfigPath(system bool) (string, error) {
	var configDir string
	if system {
		switch runtime.GOOS {
		case "windows":
			configDir = filepath.Join(os.Getenv("ProgramData"), "headscale-console")
		default:
			configDir = "/etc/headscale-console"
		}
	} else {
		dir, err := os.UserConfigDir()
		if err != nil {
			return "", fmt.Errorf("could not get user config directory: %w", err)
		}
		configDir = filepath.Join(dir, "headscale-console")
	}
	return filepath.Join(configDir, configName+".yaml"), nil
}

// Load reads configuration from defaults, the config file, the environment
// and flags. explicitPath, when non-empty, replaces the search paths.
// flags may be nil.
func Load(flags *pflag.FlagSet, explicitPath string) (Config, error) {
	var c Config
	v := viper.New()

	for key, value := range Defaults() {
		v.SetDefault(key, value)
	}

	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	if explicitPath != "" {
		v.SetConfigFile(explicitPath)
	} else {
		if p, err := GetConfigPath(false); err == nil {
			v.AddConfigPath(filepath.Dir(p))
		}
		if p, err := GetConfigPath(true); err == nil {
			v.AddConfigPath(filepath.Dir(p))
		}
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return c, fmt.Errorf("read config: %w", err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		if err := bindFlags(v, flags); err != nil {
			return c, err
		}
	}

	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decode config: %w", err)
	}
	c.REST.URL = strings.TrimRight(strings.TrimSpace(c.REST.URL), "/")
	c.RPC.Host = strings.TrimSpace(c.RPC.Host)
	return c, c.Validate()
}

// bindFlags binds every flag whose name matches a config key. Flags use
// dashes where keys use underscores ("rest.api-key" -> "rest.api_key").
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	var err error
	flags.VisitAll(func(f *pflag.Flag) {
		if err != nil {
			return
		}
		key := strings.ReplaceAll(f.Name, "-", "_")
		if _, known := Defaults()[key]; !known {
			return
		}
		err = v.BindPFlag(key, f)
	})
	return err
}

// Validate rejects values neither transport could work with.
func (c Config) Validate() error {
	var errs []error

	if err := validate.HTTPURL(c.REST.URL); err != nil {
		errs = append(errs, fmt.Errorf("rest.url: %w", err))
	}
	if c.REST.Timeout <= 0 {
		errs = append(errs, errors.New("rest.timeout must be positive"))
	}
	if c.RPC.Enabled {
		if c.RPC.Host == "" {
			errs = append(errs, errors.New("rpc.host cannot be blank"))
		}
		if c.RPC.Port < 1 || c.RPC.Port > 65535 {
			errs = append(errs, fmt.Errorf("rpc.port %d out of range", c.RPC.Port))
		}
		if c.RPC.Timeout <= 0 {
			errs = append(errs, errors.New("rpc.timeout must be positive"))
		}
	}
	if c.Server.StatusInterval <= 0 {
		errs = append(errs, errors.New("server.status_interval must be positive"))
	}
	return errors.Join(errs...)
}

// WriteFile writes c as YAML to path, creating the directory if needed.
// The file may contain the API key, so it is created 0600.
func WriteFile(c Config, path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("could not create config directory %s: %w", filepath.Dir(path), err)
	}
	return os.WriteFile(path, data, 0o600)
}
