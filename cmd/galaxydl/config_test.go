package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml"), false)
	if err != nil {
		t.Fatalf("missing default config should be fine: %v", err)
	}
	if cfg.Root != "galaxy-archive" || cfg.Workers != 4 {
		t.Fatalf("defaults: %+v", cfg)
	}
	if len(cfg.Platforms) != 2 {
		t.Fatalf("platform defaults: %v", cfg.Platforms)
	}
}

func TestLoadConfigExplicitMissingFails(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "absent.toml"), true); err == nil {
		t.Fatal("explicitly named missing config must error")
	}
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "galaxydl.toml")
	content := `
root = "/srv/archive"
workers = 8
platforms = ["windows"]

[endpoints]
content_system = "https://mirror.example"
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := loadConfig(path, true)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Root != "/srv/archive" || cfg.Workers != 8 {
		t.Fatalf("parsed: %+v", cfg)
	}
	e := cfg.endpoints()
	if e.ContentSystem != "https://mirror.example" {
		t.Fatalf("endpoint override: %+v", e)
	}
	if e.CDN == "" {
		t.Fatal("unset endpoints should keep their defaults")
	}
}

func TestRootFlagsOverrideConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "galaxydl.toml")
	if err := os.WriteFile(path, []byte(`root = "/from/file"`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	f := &rootFlags{configPath: path, root: "/from/flag", workers: 16}
	cfg, err := f.resolve()
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if cfg.Root != "/from/flag" || cfg.Workers != 16 {
		t.Fatalf("flags should win: %+v", cfg)
	}
}

func TestHumanBytes(t *testing.T) {
	cases := map[int64]string{
		512:            "512 B",
		2048:           "2.0 KiB",
		5 << 20:        "5.0 MiB",
		3 << 30:        "3.0 GiB",
		1536 * 1 << 20: "1.5 GiB",
	}
	for in, want := range cases {
		if got := humanBytes(in); got != want {
			t.Errorf("humanBytes(%d) = %q, want %q", in, got, want)
		}
	}
}
