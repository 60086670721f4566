// Package config loads and validates the gateway settings from flags,
// environment variables and an optional config file.
package config

import (
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Viper keys. Environment variables use the DARKHOLD_ prefix with dashes
// replaced by underscores, e.g. DARKHOLD_RPC_PORT.
const (
	KeyBind          = "bind"
	KeyPort          = "port"
	KeyRPCPort       = "rpc-port"
	KeyAllowCIDR     = "allow-cidr"
	KeyBasePath      = "base-path"
	KeyCodexCommand  = "codex-command"
	KeyCodexArg      = "codex-arg"
	KeyRemoteHost    = "remote-host"
	KeyRemoteSecret  = "remote-secret"
	KeyLogLevel      = "log-level"
	KeyRPCTimeout    = "rpc-timeout"
	KeyKeepalive     = "keepalive-interval"
	KeyChildGrace    = "child-grace"
	KeyShutdownGrace = "shutdown-grace"
)

const envPrefix = "DARKHOLD"

// Tailscale hands out addresses from this ULA prefix; clients inside it are
// always accepted, in addition to loopback.
const tailscaleULA = "fd7a:115c:a1e0::/48"

var tailscaleNet = mustParseCIDR(tailscaleULA)

var v *viper.Viper

// Initialize creates the viper singleton with defaults and environment
// binding. It is safe to call repeatedly; each call resets prior state.
func Initialize() {
	v = viper.New()
	v.SetDefault(KeyBind, "127.0.0.1")
	v.SetDefault(KeyPort, 3275)
	v.SetDefault(KeyRPCPort, 3276)
	v.SetDefault(KeyAllowCIDR, []string{})
	v.SetDefault(KeyBasePath, "")
	v.SetDefault(KeyCodexCommand, "codex")
	v.SetDefault(KeyCodexArg, []string{"app-server"})
	v.SetDefault(KeyRemoteHost, "")
	v.SetDefault(KeyRemoteSecret, "")
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyRPCTimeout, 20*time.Second)
	v.SetDefault(KeyKeepalive, 15*time.Second)
	v.SetDefault(KeyChildGrace, 2500*time.Millisecond)
	v.SetDefault(KeyShutdownGrace, 5*time.Second)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
}

// BindFlags connects a cobra flag set to the viper singleton so that flags
// override environment variables and defaults.
func BindFlags(flags *pflag.FlagSet) error {
	if v == nil {
		Initialize()
	}
	return v.BindPFlags(flags)
}

// Config holds the validated gateway settings.
type Config struct {
	Bind          string
	Port          int
	RPCPort       int
	AllowCIDR     []string
	BasePath      string
	CodexCommand  string
	CodexArgs     []string
	RemoteHost    string
	RemoteSecret  string
	LogLevel      string
	RPCTimeout    time.Duration
	Keepalive     time.Duration
	ChildGrace    time.Duration
	ShutdownGrace time.Duration

	allowNets []*net.IPNet
}

// Load reads the current viper state into a Config and validates it.
func Load() (*Config, error) {
	if v == nil {
		Initialize()
	}
	cfg := &Config{
		Bind:          v.GetString(KeyBind),
		Port:          v.GetInt(KeyPort),
		RPCPort:       v.GetInt(KeyRPCPort),
		AllowCIDR:     v.GetStringSlice(KeyAllowCIDR),
		BasePath:      v.GetString(KeyBasePath),
		CodexCommand:  v.GetString(KeyCodexCommand),
		CodexArgs:     v.GetStringSlice(KeyCodexArg),
		RemoteHost:    v.GetString(KeyRemoteHost),
		RemoteSecret:  v.GetString(KeyRemoteSecret),
		LogLevel:      v.GetString(KeyLogLevel),
		RPCTimeout:    v.GetDuration(KeyRPCTimeout),
		Keepalive:     v.GetDuration(KeyKeepalive),
		ChildGrace:    v.GetDuration(KeyChildGrace),
		ShutdownGrace: v.GetDuration(KeyShutdownGrace),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ports and CIDRs and resolves the base path. Error messages
// are meant for startup output, not logs.
func (c *Config) Validate() error {
	if err := validatePort("port", c.Port); err != nil {
		return err
	}
	if err := validatePort("rpc-port", c.RPCPort); err != nil {
		return err
	}
	if c.Port == c.RPCPort {
		return fmt.Errorf("rpc-port %d must differ from port", c.RPCPort)
	}
	c.allowNets = c.allowNets[:0]
	for _, cidr := range c.AllowCIDR {
		cidr = strings.TrimSpace(cidr)
		if cidr == "" {
			continue
		}
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			return fmt.Errorf("invalid CIDR %q: %v", cidr, err)
		}
		if network.IP.To4() == nil {
			return fmt.Errorf("invalid CIDR %q: only IPv4 ranges are supported", cidr)
		}
		c.allowNets = append(c.allowNets, network)
	}
	if c.BasePath == "" {
		c.BasePath = defaultBasePath()
	}
	return nil
}

// IsAllowedClient reports whether a client address passes the allow rules:
// loopback and the Tailscale ULA always do, configured CIDRs additionally.
func (c *Config) IsAllowedClient(ip net.IP) bool {
	if ip == nil {
		return false
	}
	if ip.IsLoopback() {
		return true
	}
	if tailscaleNet.Contains(ip) {
		return true
	}
	for _, network := range c.allowNets {
		if network.Contains(ip) {
			return true
		}
	}
	return false
}

// Level maps the configured log level to slog; unknown values mean info.
func (c *Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Remote reports whether the child should be launched over SSH.
func (c *Config) Remote() bool {
	return c.RemoteHost != ""
}

func validatePort(name string, port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid %s %d: must be between 1 and 65535", name, port)
	}
	return nil
}

func defaultBasePath() string {
	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return home
	}
	if dir, err := os.Getwd(); err == nil {
		return dir
	}
	return "/"
}

func mustParseCIDR(cidr string) *net.IPNet {
	_, network, err := net.ParseCIDR(cidr)
	if err != nil {
		panic(err)
	}
	return network
}
