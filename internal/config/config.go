// Package config binds the proxy's command-line surface and its environment
// variable fallbacks, following the flag-plus-env pattern used throughout the
// rest of the fleet.
package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// TransportMode names one of the two wire transports the proxy understands
// on a given side of the bridge.
type TransportMode string

const (
	ModeSSE        TransportMode = "sse"
	ModeStreamable TransportMode = "streamable"
)

func (m TransportMode) valid() bool {
	return m == ModeSSE || m == ModeStreamable
}

// Config holds every flag and environment-derived setting the proxy needs to
// start serving traffic.
type Config struct {
	InputMode  TransportMode
	OutputMode TransportMode

	Port int

	// Endpoint is the upstream MCP server URL. Its default is derived from
	// OutputMode once flags are parsed (see Finalize).
	Endpoint string

	SSEEndpoint  string
	HTTPEndpoint string

	// MessagePath is the base path the SSE frontend advertises in its
	// endpoint event and binds its message-POST route under. It is not an
	// independent flag; it is fixed relative to the listen root.
	MessagePath string

	LogLevel       string
	MetricsAddr    string
	AllowedOrigins []string

	StateRedisAddr string

	ShutdownGrace     time.Duration
	ConnectTimeout    time.Duration
	HeartbeatInterval time.Duration

	ConfigFile string

	allowedOriginsRaw *string
}

// BindFlags populates defaults from the environment, then binds flags on top
// of those defaults so command-line arguments take precedence over the
// environment. A --config file, loaded later by Finalize, overlays both.
func (c *Config) BindFlags(fs *flag.FlagSet) {
	c.InputMode = TransportMode(getEnv("INPUT_MODE", string(ModeSSE)))
	c.OutputMode = TransportMode(getEnv("OUTPUT_MODE", string(ModeStreamable)))
	c.Port, _ = strconv.Atoi(getEnv("PORT", "3000"))
	c.Endpoint = getEnv("ENDPOINT", "")
	c.SSEEndpoint = getEnv("SSE_ENDPOINT", "/sse")
	c.HTTPEndpoint = getEnv("HTTP_ENDPOINT", "/mcp")
	c.LogLevel = getEnv("LOG_LEVEL", "info")
	c.MetricsAddr = getEnv("METRICS_ADDR", "")
	c.StateRedisAddr = getEnv("STATE_REDIS_ADDR", "")
	c.ConfigFile = getEnv("CONFIG_FILE", "")

	c.ShutdownGrace = parseDuration(getEnv("SHUTDOWN_GRACE", "2s"), 2*time.Second)
	c.ConnectTimeout = parseDuration(getEnv("CONNECT_TIMEOUT", "10s"), 10*time.Second)
	c.HeartbeatInterval = parseDuration(getEnv("HEARTBEAT_INTERVAL", "30s"), 30*time.Second)

	var origins string
	if v, ok := os.LookupEnv("ALLOWED_ORIGINS"); ok {
		origins = v
	}

	fs.Var((*modeFlag)(&c.InputMode), "input-mode", "downstream transport: sse or streamable")
	fs.Var((*modeFlag)(&c.OutputMode), "output-mode", "upstream transport: sse or streamable")
	fs.IntVar(&c.Port, "port", c.Port, "HTTP listen port for the frontend listener")
	fs.StringVar(&c.Endpoint, "endpoint", c.Endpoint, "upstream MCP server URL; defaults derived from --output-mode")
	fs.StringVar(&c.SSEEndpoint, "sse-endpoint", c.SSEEndpoint, "path the SSE frontend listens on")
	fs.StringVar(&c.HTTPEndpoint, "http-endpoint", c.HTTPEndpoint, "path the streamable-HTTP frontend listens on")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "log level: trace, debug, info, warn, error, fatal, none")
	fs.StringVar(&c.MetricsAddr, "metrics-addr", c.MetricsAddr, "separate listen address for /metrics; empty serves it on --port")
	fs.StringVar(&origins, "allowed-origins", origins, "comma-separated list of allowed CORS origins; empty disables CORS")
	fs.StringVar(&c.StateRedisAddr, "state-redis-addr", c.StateRedisAddr, "optional Redis address backing shared /health state across replicas")
	fs.DurationVar(&c.ShutdownGrace, "shutdown-grace", c.ShutdownGrace, "grace period for in-flight writes to finish during shutdown")
	fs.DurationVar(&c.ConnectTimeout, "connect-timeout", c.ConnectTimeout, "timeout for the upstream connect phase")
	fs.DurationVar(&c.HeartbeatInterval, "heartbeat-interval", c.HeartbeatInterval, "interval between SSE heartbeat comments; not read by the SSE listener, which always uses 30s")
	fs.StringVar(&c.ConfigFile, "config", c.ConfigFile, "optional YAML file overlaying these settings")

	c.allowedOriginsRaw = &origins
}

// Finalize applies defaults that depend on other flags (the endpoint default
// depends on OutputMode), loads an optional YAML overlay, and validates the
// result.
func (c *Config) Finalize() error {
	if c.ConfigFile != "" {
		if err := c.loadFile(c.ConfigFile); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("load config file: %w", err)
		}
	}
	if !c.InputMode.valid() {
		return fmt.Errorf("invalid --input-mode %q", c.InputMode)
	}
	if !c.OutputMode.valid() {
		return fmt.Errorf("invalid --output-mode %q", c.OutputMode)
	}
	if c.Endpoint == "" {
		c.Endpoint = defaultEndpoint(c.OutputMode, c.Port)
	}
	if c.MetricsAddr == "" {
		c.MetricsAddr = fmt.Sprintf(":%d", c.Port)
	}
	c.MessagePath = "/messages"
	if c.allowedOriginsRaw != nil {
		c.AllowedOrigins = splitCSV(*c.allowedOriginsRaw)
	}
	return nil
}

func defaultEndpoint(mode TransportMode, port int) string {
	switch mode {
	case ModeSSE:
		return fmt.Sprintf("http://localhost:%d/sse", port)
	default:
		return fmt.Sprintf("http://localhost:%d/mcp", port)
	}
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, c)
}

type modeFlag TransportMode

func (m *modeFlag) String() string { return string(*m) }
func (m *modeFlag) Set(v string) error {
	mode := TransportMode(v)
	if !mode.valid() {
		return fmt.Errorf("must be %q or %q", ModeSSE, ModeStreamable)
	}
	*m = modeFlag(mode)
	return nil
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	start := 0
	for i := 0; i <= len(s); i++ {
		if i == len(s) || s[i] == ',' {
			if tok := trimSpace(s[start:i]); tok != "" {
				out = append(out, tok)
			}
			start = i + 1
		}
	}
	return out
}

func trimSpace(s string) string {
	for len(s) > 0 && (s[0] == ' ' || s[0] == '\t') {
		s = s[1:]
	}
	for len(s) > 0 && (s[len(s)-1] == ' ' || s[len(s)-1] == '\t') {
		s = s[:len(s)-1]
	}
	return s
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
