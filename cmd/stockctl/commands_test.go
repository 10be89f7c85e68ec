package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSweepCmd_RequiresRedis(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("mode = \"full\"\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("BOOKSTOCK_REDIS_ENABLED", "")
	t.Setenv("BOOKSTOCK_MODE", "")
	old := configPath
	configPath = path
	t.Cleanup(func() { configPath = old })

	cmd := sweepCmd()
	err := cmd.RunE(cmd, nil)
	if err == nil || !strings.Contains(err.Error(), "redis.enabled is required") {
		t.Errorf("expected redis requirement error, got %v", err)
	}
}
