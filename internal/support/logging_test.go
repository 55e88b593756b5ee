package support

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
)

func TestConfigureLoggingWritesRotatingFile(t *testing.T) {
	t.Cleanup(func() {
		log.SetOutput(os.Stderr)
		log.SetFormatter(log.TextFormatter)
		log.SetLevel(log.InfoLevel)
	})

	path := filepath.Join(t.TempDir(), "blockwatch.log")
	closer, err := ConfigureLogging(LogOptions{Level: "debug", Format: "json", File: path})
	if err != nil {
		t.Fatalf("ConfigureLogging returned error: %v", err)
	}

	if log.GetLevel() != log.DebugLevel {
		t.Fatalf("level = %v, want debug", log.GetLevel())
	}

	log.Debug("probe", "feed", "sshclient")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(data), `"feed":"sshclient"`) {
		t.Fatalf("log file = %q, want JSON entry with feed key", data)
	}
}

func TestConfigureLoggingRejectsBadInput(t *testing.T) {
	t.Cleanup(func() { log.SetLevel(log.InfoLevel) })

	if _, err := ConfigureLogging(LogOptions{Level: "loud"}); err == nil {
		t.Fatal("expected error for unknown level, got nil")
	}
	if _, err := ConfigureLogging(LogOptions{Format: "xml"}); err == nil {
		t.Fatal("expected error for unknown format, got nil")
	}
}
