package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sessamekesh/duckpond-client/pkg/errors"
	"github.com/sessamekesh/duckpond-client/pkg/netcode"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const EnvPrefix = "DUCKPOND"

// Config is the client's runtime configuration. Precedence, highest first:
// flags, DUCKPOND_* environment, config file, defaults.
type Config struct {
	ServerUrl        string        `mapstructure:"server-url"`
	FriendlyName     string        `mapstructure:"name"`
	TickRateHz       int           `mapstructure:"tick-rate"`
	HandshakeTimeout time.Duration `mapstructure:"handshake-timeout"`

	DrainMode          string `mapstructure:"drain-mode"`
	MaxFramesPerTick   int    `mapstructure:"max-frames-per-tick"`
	PayloadErrorPolicy string `mapstructure:"payload-error-policy"`
	ShortTags          bool   `mapstructure:"short-tags"`
	ReadBufferFrames   int    `mapstructure:"read-buffer-frames"`
	WriteBufferFrames  int    `mapstructure:"write-buffer-frames"`

	Wander     bool          `mapstructure:"wander"`
	QuackEvery time.Duration `mapstructure:"quack-every"`

	MetricsAddr string `mapstructure:"metrics-addr"`
	LogLevel    string `mapstructure:"log-level"`
	LogFile     string `mapstructure:"log-file"`
}

func Defaults() Config {
	return Config{
		ServerUrl:          netcode.DefaultServerUrl,
		FriendlyName:       "duck",
		TickRateHz:         60,
		HandshakeTimeout:   10 * time.Second,
		DrainMode:          "single",
		MaxFramesPerTick:   64,
		PayloadErrorPolicy: "placeholder",
		ReadBufferFrames:   256,
		WriteBufferFrames:  64,
		QuackEvery:         0,
		MetricsAddr:        "",
		LogLevel:           "",
	}
}

// BindFlags registers every config key on fs and binds it into v.
func BindFlags(fs *pflag.FlagSet, v *viper.Viper) error {
	d := Defaults()

	fs.String("server-url", d.ServerUrl, "WebSocket endpoint of the game server")
	fs.String("name", d.FriendlyName, "Friendly name sent with the join request")
	fs.Int("tick-rate", d.TickRateHz, "Ticks per second")
	fs.Duration("handshake-timeout", d.HandshakeTimeout, "WebSocket handshake timeout")
	fs.String("drain-mode", d.DrainMode, "Inbound frames per tick: single or until_empty")
	fs.Int("max-frames-per-tick", d.MaxFramesPerTick, "Cap on frames read per tick in until_empty mode")
	fs.String("payload-error-policy", d.PayloadErrorPolicy, "Undecodable payloads: placeholder or drop")
	fs.Bool("short-tags", d.ShortTags, "Send short action tags (j, m, q, i)")
	fs.Int("read-buffer-frames", d.ReadBufferFrames, "Inbound frame buffer size")
	fs.Int("write-buffer-frames", d.WriteBufferFrames, "Outbound frame buffer size")
	fs.Bool("wander", d.Wander, "Wander around the pond on our own")
	fs.Duration("quack-every", d.QuackEvery, "Quack on this interval (0 disables)")
	fs.String("metrics-addr", d.MetricsAddr, "Address for /metrics and /healthz (empty disables)")
	fs.String("log-level", d.LogLevel, "Log level (debug, info, warn, error)")
	fs.String("log-file", d.LogFile, "Also write JSON logs to this rotating file")

	return v.BindPFlags(fs)
}

// Load reads .env files, the optional config file and the environment into v
// and decodes the result.
func Load(v *viper.Viper, configFile string) (Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return Config{}, err
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
	}

	cfg := Defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if !strings.HasPrefix(c.ServerUrl, "ws://") && !strings.HasPrefix(c.ServerUrl, "wss://") {
		return &errors.InvalidConfigValue{Key: "server-url", Value: c.ServerUrl, Reason: "must be a ws:// or wss:// URL"}
	}
	if strings.TrimSpace(c.FriendlyName) == "" {
		return &errors.InvalidConfigValue{Key: "name", Value: c.FriendlyName, Reason: "must not be blank"}
	}
	if c.TickRateHz <= 0 || c.TickRateHz > 1000 {
		return &errors.InvalidConfigValue{Key: "tick-rate", Value: c.TickRateHz, Reason: "must be between 1 and 1000"}
	}
	if c.HandshakeTimeout <= 0 {
		return &errors.InvalidConfigValue{Key: "handshake-timeout", Value: c.HandshakeTimeout, Reason: "must be positive"}
	}
	if _, err := netcode.ParseDrainMode(c.DrainMode); err != nil {
		return &errors.InvalidConfigValue{Key: "drain-mode", Value: c.DrainMode, Reason: err.Error()}
	}
	if _, err := netcode.ParsePayloadErrorPolicy(c.PayloadErrorPolicy); err != nil {
		return &errors.InvalidConfigValue{Key: "payload-error-policy", Value: c.PayloadErrorPolicy, Reason: err.Error()}
	}
	if c.QuackEvery < 0 {
		return &errors.InvalidConfigValue{Key: "quack-every", Value: c.QuackEvery, Reason: "must not be negative"}
	}
	return nil
}

func (c Config) TickInterval() time.Duration {
	return time.Second / time.Duration(c.TickRateHz)
}

// SessionConfig maps the validated config onto the netcode session.
func (c Config) SessionConfig() netcode.SessionConfig {
	drainMode, _ := netcode.ParseDrainMode(c.DrainMode)
	policy, _ := netcode.ParsePayloadErrorPolicy(c.PayloadErrorPolicy)

	return netcode.SessionConfig{
		ServerUrl:          c.ServerUrl,
		HandshakeTimeout:   c.HandshakeTimeout,
		ReadBufferFrames:   c.ReadBufferFrames,
		WriteBufferFrames:  c.WriteBufferFrames,
		DrainMode:          drainMode,
		MaxFramesPerTick:   c.MaxFramesPerTick,
		PayloadErrorPolicy: policy,
		ShortTags:          c.ShortTags,
	}
}
