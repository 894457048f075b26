package ttsdconfig_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/haivivi/ttsd/pkg/ttsdconfig"
)

func TestLoadDefaultsWhenNoFile(t *testing.T) {
	cfg, err := ttsdconfig.Load([]string{t.TempDir()})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":7443" {
		t.Fatalf("ListenAddr = %q, want %q", cfg.ListenAddr, ":7443")
	}
	if cfg.DefaultEngine != "refengine" {
		t.Fatalf("DefaultEngine = %q, want %q", cfg.DefaultEngine, "refengine")
	}
	if cfg.CleanupDeadline != 5*time.Second {
		t.Fatalf("CleanupDeadline = %v, want 5s", cfg.CleanupDeadline)
	}
}

func TestLoadConfigFileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := "listen_addr: \":9000\"\ndefault_engine: \"doubao\"\ndoubao:\n  app_id: \"abc\"\n"
	if err := os.WriteFile(filepath.Join(dir, "ttsd.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := ttsdconfig.Load([]string{dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9000" {
		t.Fatalf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9000")
	}
	if cfg.DefaultEngine != "doubao" {
		t.Fatalf("DefaultEngine = %q, want %q", cfg.DefaultEngine, "doubao")
	}
	if cfg.Doubao.AppID != "abc" {
		t.Fatalf("Doubao.AppID = %q, want %q", cfg.Doubao.AppID, "abc")
	}
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("TTSD_LISTEN_ADDR", ":9100")

	cfg, err := ttsdconfig.Load([]string{dir})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ListenAddr != ":9100" {
		t.Fatalf("ListenAddr = %q, want %q", cfg.ListenAddr, ":9100")
	}
}
