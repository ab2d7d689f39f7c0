package logger

import (
	"bytes"
	"strings"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"

	"github.com/SmitUplenchwar2687/ServerEye/internal/config"
)

func TestSetup_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	Setup(config.LogConfig{Level: "debug", Service: "servereye", Instance: "test-1"}, &buf)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	zlog.Debug().Str("trigger", "poll").Msg("refresh")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %q", buf.String())
	}
	for k, want := range map[string]string{"service": "servereye", "instance": "test-1", "trigger": "poll", "level": "debug"} {
		if entry[k] != want {
			t.Errorf("%s = %v, want %s", k, entry[k], want)
		}
	}
}

func TestSetup_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	Setup(config.LogConfig{Level: "warn"}, &buf)
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	zlog.Info().Msg("hidden")
	zlog.Warn().Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") || !strings.Contains(out, "shown") {
		t.Errorf("output = %q", out)
	}
}

func TestSetup_BadLevelDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	l := Setup(config.LogConfig{Level: "loud"}, &buf)
	if l.GetLevel() != zerolog.InfoLevel {
		t.Errorf("level = %v, want info", l.GetLevel())
	}
}

func TestSetup_Pretty(t *testing.T) {
	var buf bytes.Buffer
	Setup(config.LogConfig{Level: "info", Pretty: true}, &buf)

	zlog.Info().Msg("hello")
	if strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), "hello") {
		t.Errorf("pretty output = %q", buf.String())
	}
}
