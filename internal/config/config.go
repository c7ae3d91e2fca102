// Package config contains the ARC4DE server Config and the code to load it.
package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix for environment configuration, i.e. ARC4DE_LOG_LEVEL.
const EnvPrefix = "ARC4DE"

// HTTPServer configures the main HTTP server.
type HTTPServer struct {
	// Address is the interface to listen on, all interfaces when empty.
	Address string `mapstructure:"address" json:"address"`
	Port    int    `mapstructure:"port" json:"port"`
}

// Log configures logging.
type Log struct {
	// Level is one of: trace, debug, info, warn, error, fatal, none.
	Level string `mapstructure:"level" json:"level"`
	// File is an optional log file, logs go to STDOUT when empty.
	File string `mapstructure:"file" json:"file"`
}

// Auth configures password login and token issuing.
type Auth struct {
	// Password accepted by the login endpoint.
	Password string `mapstructure:"password" json:"password"`
	// TokenHMACSecretKey signs access and refresh tokens.
	TokenHMACSecretKey string        `mapstructure:"token_hmac_secret_key" json:"token_hmac_secret_key"`
	AccessTokenTTL     time.Duration `mapstructure:"access_token_ttl" json:"access_token_ttl"`
	RefreshTokenTTL    time.Duration `mapstructure:"refresh_token_ttl" json:"refresh_token_ttl"`
	MaxLoginAttempts   int           `mapstructure:"max_login_attempts" json:"max_login_attempts"`
	LoginWindow        time.Duration `mapstructure:"login_window" json:"login_window"`
	LoginLockout       time.Duration `mapstructure:"login_lockout" json:"login_lockout"`
}

// Session configures tmux session management.
type Session struct {
	// TmuxSocket is an optional custom tmux server socket path.
	TmuxSocket string `mapstructure:"tmux_socket" json:"tmux_socket"`
	// TTL after which idle sessions are reaped, zero disables cleanup.
	TTL             time.Duration `mapstructure:"ttl" json:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval" json:"cleanup_interval"`
	Width           int           `mapstructure:"width" json:"width"`
	Height          int           `mapstructure:"height" json:"height"`
}

// WebSocket configures the terminal socket endpoint.
type WebSocket struct {
	AuthTimeout      time.Duration `mapstructure:"auth_timeout" json:"auth_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	MessageSizeLimit int           `mapstructure:"message_size_limit" json:"message_size_limit"`
}

// Tunnel configures cloudflared tunneling.
type Tunnel struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
}

// Prometheus metrics endpoint configuration.
type Prometheus struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
}

// Health check endpoint configuration.
type Health struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
}

// Client contains browser client related configuration.
type Client struct {
	// AllowedOrigins is a list of origin glob patterns allowed to connect
	// in addition to same-host origins.
	AllowedOrigins []string `mapstructure:"allowed_origins" json:"allowed_origins"`
}

// Debug helps to enable Go profiling endpoints.
type Debug struct {
	Enabled bool `mapstructure:"enabled" json:"enabled"`
}

// Shutdown configures graceful shutdown.
type Shutdown struct {
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

type Config struct {
	HTTP       HTTPServer `mapstructure:"http_server" json:"http_server"`
	Log        Log        `mapstructure:"log" json:"log"`
	Auth       Auth       `mapstructure:"auth" json:"auth"`
	Session    Session    `mapstructure:"session" json:"session"`
	WebSocket  WebSocket  `mapstructure:"websocket" json:"websocket"`
	Tunnel     Tunnel     `mapstructure:"tunnel" json:"tunnel"`
	Prometheus Prometheus `mapstructure:"prometheus" json:"prometheus"`
	Health     Health     `mapstructure:"health" json:"health"`
	Debug      Debug      `mapstructure:"debug" json:"debug"`
	Client     Client     `mapstructure:"client" json:"client"`
	Shutdown   Shutdown   `mapstructure:"shutdown" json:"shutdown"`

	// PidFile is a path to write a file with the server process PID.
	PidFile string `mapstructure:"pid_file" json:"pid_file"`
}

type Meta struct {
	FileNotFound bool
	UnknownKeys  []string
}

func DefineFlags(rootCmd *cobra.Command) {
	rootCmd.Flags().StringP("pid_file", "", "", "optional path to create PID file")
	rootCmd.Flags().StringP("http_server.address", "a", "", "interface address to listen on")
	rootCmd.Flags().IntP("http_server.port", "p", 8000, "port to bind HTTP server to")
	rootCmd.Flags().StringP("log.level", "", "info", "set the log level: trace, debug, info, warn, error, fatal or none")
	rootCmd.Flags().StringP("log.file", "", "", "optional log file - if not specified logs go to STDOUT")
	rootCmd.Flags().StringP("session.tmux_socket", "", "", "custom tmux server socket path")
	rootCmd.Flags().BoolP("tunnel.enabled", "", false, "start a cloudflared tunnel for the server")
	rootCmd.Flags().BoolP("prometheus.enabled", "", false, "enable Prometheus metrics endpoint")
	rootCmd.Flags().BoolP("health.enabled", "", true, "enable health check endpoint")
	rootCmd.Flags().BoolP("debug.enabled", "", false, "enable debug endpoints")
}

var bindPFlags = []string{
	"pid_file", "http_server.address", "http_server.port", "log.level", "log.file",
	"session.tmux_socket", "tunnel.enabled", "prometheus.enabled", "health.enabled",
	"debug.enabled",
}

// Viper needs every key registered with a default so values coming purely
// from the environment survive Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("http_server.address", "")
	v.SetDefault("http_server.port", 8000)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("auth.password", "")
	v.SetDefault("auth.token_hmac_secret_key", "")
	v.SetDefault("auth.access_token_ttl", 15*time.Minute)
	v.SetDefault("auth.refresh_token_ttl", 7*24*time.Hour)
	v.SetDefault("auth.max_login_attempts", 5)
	v.SetDefault("auth.login_window", time.Minute)
	v.SetDefault("auth.login_lockout", 15*time.Minute)
	v.SetDefault("session.tmux_socket", "")
	v.SetDefault("session.ttl", time.Duration(0))
	v.SetDefault("session.cleanup_interval", 5*time.Minute)
	v.SetDefault("session.width", 200)
	v.SetDefault("session.height", 50)
	v.SetDefault("websocket.auth_timeout", 30*time.Second)
	v.SetDefault("websocket.write_timeout", time.Second)
	v.SetDefault("websocket.message_size_limit", 65536)
	v.SetDefault("tunnel.enabled", false)
	v.SetDefault("prometheus.enabled", false)
	v.SetDefault("health.enabled", true)
	v.SetDefault("debug.enabled", false)
	v.SetDefault("client.allowed_origins", []string{})
	v.SetDefault("shutdown.timeout", 10*time.Second)
	v.SetDefault("pid_file", "")
}

func GetConfig(cmd *cobra.Command, configFile string) (Config, Meta, error) {
	v := viper.NewWithOptions(viper.WithDecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(" "),
	)))

	setDefaults(v)

	if cmd != nil {
		for _, flag := range bindPFlags {
			_ = v.BindPFlag(flag, cmd.Flags().Lookup(flag))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	meta := Meta{}

	if configFile != "" {
		v.SetConfigFile(configFile)
		err := v.ReadInConfig()
		if err != nil {
			var pathError *os.PathError
			if errors.As(err, &pathError) {
				meta.FileNotFound = true
			} else {
				return Config{}, Meta{}, fmt.Errorf("error reading config file %s: %w", configFile, err)
			}
		}
	}

	conf := &Config{}
	if err := v.Unmarshal(conf); err != nil {
		return Config{}, Meta{}, fmt.Errorf("error unmarshaling config: %w", err)
	}

	meta.UnknownKeys = findUnknownKeys(v.AllSettings(), *conf, "")

	return *conf, meta, nil
}

// findUnknownKeys reports config keys without a matching mapstructure tag
// so typos surface at startup instead of silently using defaults.
func findUnknownKeys(data map[string]any, configStruct any, parentKey string) []string {
	var unknownKeys []string
	typ := reflect.TypeOf(configStruct)
	val := reflect.ValueOf(configStruct)

	validKeys := make(map[string]reflect.StructField)
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag != "" {
			validKeys[tag] = field
		}
	}

	for key, value := range data {
		field, ok := validKeys[key]
		if !ok {
			unknownKeys = append(unknownKeys, appendKeyPath(parentKey, key))
			continue
		}
		if field.Type.Kind() == reflect.Struct {
			if nested, ok := value.(map[string]any); ok {
				nestedStruct := val.FieldByName(field.Name).Interface()
				unknownKeys = append(unknownKeys, findUnknownKeys(nested, nestedStruct, appendKeyPath(parentKey, key))...)
			}
		}
	}
	return unknownKeys
}

func appendKeyPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}
