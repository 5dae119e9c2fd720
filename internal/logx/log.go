// Package logx configures the process-wide logger and a handful of
// redaction helpers shared by every component that logs a URL or token.
package logx

import (
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Log is the shared logger used throughout the project.
var Log = log.Logger

// Configure sets the global log level and output format.
// The level string is tolerant of case and common synonyms.
func Configure(level string) {
	zerolog.SetGlobalLevel(parseLevel(level))
	Log = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
}

// parseLevel converts a string to a zerolog level.
// Accepts: all, debug, info, warn, warning, error, fatal, none.
// Unknown values default to info.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "all", "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info", "":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "none", "off", "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// MaskSecret returns a masked representation of a secret string, safe to
// place in a log field. Short secrets are fully masked; longer ones keep a
// few boundary characters visible so two distinct values remain distinguishable
// in logs without revealing them.
func MaskSecret(s string) string {
	n := len(s)
	switch {
	case n == 0:
		return ""
	case n <= 5:
		return strings.Repeat("*", n)
	case n <= 20:
		return s[:1] + strings.Repeat("*", n-2) + s[n-1:]
	default:
		return s[:3] + strings.Repeat("*", n-4) + s[n-1:]
	}
}

// MaskURL masks any userinfo or query-string credentials embedded in a URL
// before it is logged, leaving the scheme, host, and path intact.
func MaskURL(raw string) string {
	schemeSplit := strings.SplitN(raw, "://", 2)
	if len(schemeSplit) != 2 {
		return raw
	}
	rest := schemeSplit[1]
	if at := strings.Index(rest, "@"); at >= 0 {
		rest = MaskSecret(rest[:at]) + "@" + rest[at+1:]
	}
	if q := strings.Index(rest, "?"); q >= 0 {
		rest = rest[:q] + "?" + MaskSecret(rest[q+1:])
	}
	return schemeSplit[0] + "://" + rest
}

func init() {
	Configure(os.Getenv("LOG_LEVEL"))
}
