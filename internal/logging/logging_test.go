package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"INFO":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestSetupWithWritersFansOut(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Info("import started", "file", "flocks.csv", "rows", 42)

	if !strings.Contains(stderr.String(), "import started") {
		t.Fatalf("stderr missing message: %q", stderr.String())
	}

	var entry map[string]any
	if err := json.Unmarshal(file.Bytes(), &entry); err != nil {
		t.Fatalf("file output is not JSON: %v (%q)", err, file.String())
	}
	if entry["msg"] != "import started" || entry["file"] != "flocks.csv" {
		t.Fatalf("unexpected JSON entry: %v", entry)
	}

	logger.Debug("hidden")
	if strings.Contains(stderr.String(), "hidden") {
		t.Fatalf("debug should be filtered at info level")
	}
}
