package main

import (
	"log/slog"
	"testing"
)

func TestConfigValue(t *testing.T) {
	t.Setenv("GEOSIEVE_TEST_VALUE", "from-env")

	if got := configValue("from-flag", "GEOSIEVE_TEST_VALUE", "default"); got != "from-flag" {
		t.Errorf("flag should win, got %q", got)
	}
	if got := configValue("", "GEOSIEVE_TEST_VALUE", "default"); got != "from-env" {
		t.Errorf("env should win over default, got %q", got)
	}
	if got := configValue("", "GEOSIEVE_TEST_UNSET", "default"); got != "default" {
		t.Errorf("default expected, got %q", got)
	}
}

func TestIntConfigValue(t *testing.T) {
	t.Setenv("GEOSIEVE_TEST_WORKERS", "4")

	if got := intConfigValue("", "GEOSIEVE_TEST_WORKERS", 0); got != 4 {
		t.Errorf("intConfigValue = %d, want 4", got)
	}
	if got := intConfigValue("x", "GEOSIEVE_TEST_WORKERS", 0); got != 0 {
		t.Errorf("unparsable value: got %d, want default 0", got)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRunRequiresInputs(t *testing.T) {
	err := run(options{out: "out.geo.json"}, slog.Default())
	if err == nil {
		t.Fatal("run without inputs succeeded")
	}
}
