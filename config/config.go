// Package config loads environment variables and provides a typed Config used across the bot.
// It applies sensible defaults so the binary can run locally with minimal setup.
// Call Validate before handing the Config to the relay; it is treated as read-only afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultChannel is joined when IRC_CHANNELS is unset.
const DefaultChannel = "#neonwave-radio"

type Config struct {
	// IRC
	IRCServer      string
	IRCPort        int
	IRCNick        string
	IRCRealName    string
	IRCChannels    []string
	IRCUseTLS      bool
	IRCQuitMessage string
	IRCReadTimeout time.Duration
	// IRCMaxLineBytes caps buffered bytes without a line terminator. Zero disables the cap.
	IRCMaxLineBytes int
	// IRCSendRate limits outbound lines per second; zero disables the limiter.
	IRCSendRate  float64
	IRCSendBurst int

	// Web application
	WebSocketURL string
	APIURL       string

	// Requests
	RequestCommand string
	LookupTimeout  time.Duration

	// Supervision
	ReconnectInterval time.Duration
	ShutdownGrace     time.Duration

	// Status server; empty disables it
	HTTPAddr string
}

// Load reads environment variables and applies defaults. It only fails on values that are
// present but unparsable; semantic checks live in Validate.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.IRCServer = envOr("IRC_SERVER", "irc.libera.chat")
	port, err := envInt("IRC_PORT", 6697)
	if err != nil {
		return nil, err
	}
	cfg.IRCPort = port
	cfg.IRCNick = envOr("IRC_NICK", "NeonWaveBot")
	cfg.IRCRealName = envOr("IRC_REALNAME", "NeonWave Radio Bot")
	cfg.IRCChannels = splitChannels(envOr("IRC_CHANNELS", DefaultChannel))
	// only the literal "true" enables TLS, matching how the deployment scripts set it
	cfg.IRCUseTLS = strings.ToLower(envOr("IRC_USE_SSL", "true")) == "true"
	cfg.IRCQuitMessage = envOr("IRC_QUIT_MESSAGE", "NeonWave Bot shutting down")
	if cfg.IRCReadTimeout, err = envDuration("IRC_READ_TIMEOUT", time.Second); err != nil {
		return nil, err
	}
	if cfg.IRCMaxLineBytes, err = envInt("IRC_MAX_LINE_BYTES", 0); err != nil {
		return nil, err
	}
	if cfg.IRCSendRate, err = envFloat("IRC_SEND_RATE", 0); err != nil {
		return nil, err
	}
	if cfg.IRCSendBurst, err = envInt("IRC_SEND_BURST", 4); err != nil {
		return nil, err
	}

	cfg.WebSocketURL = envOr("WEBSOCKET_URL", "ws://localhost:5000/ws")
	cfg.APIURL = envOr("API_URL", "http://localhost:5000/api/irc/request")

	cfg.RequestCommand = envOr("REQUEST_COMMAND", ".request")
	if cfg.LookupTimeout, err = envDuration("LOOKUP_TIMEOUT", 10*time.Second); err != nil {
		return nil, err
	}

	if cfg.ReconnectInterval, err = envDuration("RECONNECT_INTERVAL", 10*time.Second); err != nil {
		return nil, err
	}
	if cfg.ShutdownGrace, err = envDuration("SHUTDOWN_GRACE", 5*time.Second); err != nil {
		return nil, err
	}

	// HTTP_ADDR="" explicitly disables the status server, so LookupEnv rather than envOr
	if v, ok := os.LookupEnv("HTTP_ADDR"); ok {
		cfg.HTTPAddr = v
	} else {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// Validate checks the fields the relay cannot run without.
func (c *Config) Validate() error {
	if c.IRCServer == "" || c.IRCNick == "" {
		return fmt.Errorf("missing irc env: require IRC_SERVER and IRC_NICK")
	}
	if c.IRCPort < 1 || c.IRCPort > 65535 {
		return fmt.Errorf("invalid IRC_PORT %d: must be within 1-65535", c.IRCPort)
	}
	if len(c.IRCChannels) == 0 {
		return fmt.Errorf("IRC_CHANNELS resolved to an empty channel list")
	}
	if c.IRCReadTimeout <= 0 || c.ReconnectInterval <= 0 || c.LookupTimeout <= 0 {
		return fmt.Errorf("IRC_READ_TIMEOUT, RECONNECT_INTERVAL and LOOKUP_TIMEOUT must be positive")
	}
	if c.IRCMaxLineBytes < 0 {
		return fmt.Errorf("IRC_MAX_LINE_BYTES must not be negative")
	}
	if c.IRCSendRate < 0 || (c.IRCSendRate > 0 && c.IRCSendBurst < 1) {
		return fmt.Errorf("IRC_SEND_RATE must not be negative and IRC_SEND_BURST must be at least 1 when it is set")
	}
	if strings.TrimSpace(c.RequestCommand) == "" {
		return fmt.Errorf("REQUEST_COMMAND must not be blank")
	}
	if c.WebSocketURL == "" || c.APIURL == "" {
		return fmt.Errorf("missing web env: require WEBSOCKET_URL and API_URL")
	}
	return nil
}

// Address returns the host:port pair for the IRC server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.IRCServer, c.IRCPort)
}

func splitChannels(raw string) []string {
	var out []string
	for _, ch := range strings.Split(raw, ",") {
		if ch = strings.TrimSpace(ch); ch != "" {
			out = append(out, ch)
		}
	}
	return out
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (integer): %w", key, err)
	}
	return n, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (duration): %w", key, err)
	}
	return d, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s (number): %w", key, err)
	}
	return f, nil
}
