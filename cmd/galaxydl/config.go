package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/Dimensional/GalaxyDL/pkg/archive"
	"github.com/Dimensional/GalaxyDL/pkg/gog"
	"github.com/Dimensional/GalaxyDL/pkg/store"
)

// Config is the TOML configuration file. Every field has a flag
// counterpart; flags win over file values.
type Config struct {
	// Root is the archive directory.
	Root string `toml:"root"`
	// Workers bounds parallel chunk fetches.
	Workers int `toml:"workers"`
	// Platforms queried when none are given on the command line.
	Platforms []string `toml:"platforms"`
	// Token is a pre-issued bearer token. TokenFile points at a file
	// holding one instead, so the token itself can stay out of the config.
	Token     string `toml:"token"`
	TokenFile string `toml:"token_file"`

	Endpoints EndpointConfig `toml:"endpoints"`
}

// EndpointConfig overrides the upstream hosts, mainly for mirrors and
// tests.
type EndpointConfig struct {
	ContentSystem      string `toml:"content_system"`
	CDN                string `toml:"cdn"`
	ManifestsCollector string `toml:"manifests_collector"`
}

func defaultConfig() Config {
	return Config{
		Root:      "galaxy-archive",
		Workers:   4,
		Platforms: []string{"windows", "osx"},
	}
}

// loadConfig reads path when it exists; a missing file at the default
// location is fine, an explicitly named missing file is not.
func loadConfig(path string, explicit bool) (Config, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

func (c Config) endpoints() gog.Endpoints {
	e := gog.DefaultEndpoints()
	if c.Endpoints.ContentSystem != "" {
		e.ContentSystem = c.Endpoints.ContentSystem
	}
	if c.Endpoints.CDN != "" {
		e.CDN = c.Endpoints.CDN
	}
	if c.Endpoints.ManifestsCollector != "" {
		e.ManifestsCollector = c.Endpoints.ManifestsCollector
	}
	return e
}

func (c Config) token() (string, error) {
	if c.Token != "" {
		return c.Token, nil
	}
	if c.TokenFile != "" {
		data, err := os.ReadFile(c.TokenFile)
		if err != nil {
			return "", fmt.Errorf("read token file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return "", nil
}

// rootFlags are the persistent flags shared by every subcommand.
type rootFlags struct {
	configPath string
	root       string
	workers    int
	token      string
	verbose    bool
}

// resolve merges the config file with flag overrides.
func (f *rootFlags) resolve() (Config, error) {
	explicit := f.configPath != ""
	path := f.configPath
	if path == "" {
		path = "galaxydl.toml"
	}
	cfg, err := loadConfig(path, explicit)
	if err != nil {
		return cfg, err
	}
	if f.root != "" {
		cfg.Root = f.root
	}
	if f.workers > 0 {
		cfg.Workers = f.workers
	}
	if f.token != "" {
		cfg.Token = f.token
	}
	return cfg, nil
}

func (f *rootFlags) logger() *slog.Logger {
	level := slog.LevelInfo
	if f.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openArchiver wires an Archiver from the resolved configuration.
func (f *rootFlags) openArchiver() (*archive.Archiver, error) {
	cfg, err := f.resolve()
	if err != nil {
		return nil, err
	}
	logger := f.logger()
	endpoints := cfg.endpoints()

	client := gog.NewClient(&http.Client{Timeout: 5 * time.Minute})
	client.Logger = logger

	token, err := cfg.token()
	if err != nil {
		return nil, err
	}
	session := &gog.StaticSession{Token: token, Client: client, Endpoints: endpoints}
	if token != "" {
		client.Authorization = session.AccessToken
	}

	return archive.New(store.New(cfg.Root), client, session, archive.Options{
		Workers:   cfg.Workers,
		Endpoints: endpoints,
		Logger:    logger,
	})
}

func (f *rootFlags) platforms(override []string) ([]string, error) {
	if len(override) > 0 {
		return override, nil
	}
	cfg, err := f.resolve()
	if err != nil {
		return nil, err
	}
	return cfg.Platforms, nil
}
