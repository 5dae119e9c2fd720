package config

import (
	"flag"
	"testing"
)

func TestDefaults(t *testing.T) {
	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.BindFlags(fs)
	if err := fs.Parse(nil); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := c.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if c.InputMode != ModeSSE {
		t.Fatalf("input mode = %s, want sse", c.InputMode)
	}
	if c.OutputMode != ModeStreamable {
		t.Fatalf("output mode = %s, want streamable", c.OutputMode)
	}
	if c.Port != 3000 {
		t.Fatalf("port = %d, want 3000", c.Port)
	}
	if c.Endpoint == "" {
		t.Fatalf("endpoint should have a derived default")
	}
	if c.MetricsAddr != ":3000" {
		t.Fatalf("metrics addr = %s, want :3000", c.MetricsAddr)
	}
}

func TestInvalidMode(t *testing.T) {
	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.BindFlags(fs)
	if err := fs.Parse([]string{"-input-mode", "carrier-pigeon"}); err == nil {
		t.Fatalf("expected flag parse error for invalid mode")
	}
}

func TestAllowedOriginsSplit(t *testing.T) {
	var c Config
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	c.BindFlags(fs)
	if err := fs.Parse([]string{"-allowed-origins", "https://a.example, https://b.example"}); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if err := c.Finalize(); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if len(c.AllowedOrigins) != 2 || c.AllowedOrigins[0] != "https://a.example" || c.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", c.AllowedOrigins)
	}
}
