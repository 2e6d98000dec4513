// Package config manages the signet CLI configuration and the .signet
// directory that holds the registry database and the index snapshot.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

const (
	SignetDir    = ".signet"
	ConfigFile   = "config"
	DatabaseFile = "signet.sqlite3"
	IndexFile    = "index.gob"
)

// Config is the TOML-backed CLI configuration.
type Config struct {
	Threshold   int    `toml:"threshold"`
	Capacity    int    `toml:"capacity"`
	TempDir     string `toml:"temp_dir"`
	FFmpegPath  string `toml:"ffmpeg_path"`
	FFprobePath string `toml:"ffprobe_path"`

	path string // path to the .signet directory
}

// FindRoot finds the .signet directory by walking up from the current
// directory.
func FindRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		signetPath := filepath.Join(dir, SignetDir)
		if info, err := os.Stat(signetPath); err == nil && info.IsDir() {
			return signetPath, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("not a signet registry (or any parent up to root)")
		}
		dir = parent
	}
}

// Load reads the configuration from the .signet directory.
func Load() (*Config, error) {
	signetPath, err := FindRoot()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(signetPath, ConfigFile))
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.path = signetPath
	return &cfg, nil
}

// Save writes the configuration back to disk.
func (c *Config) Save() error {
	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(filepath.Join(c.path, ConfigFile), data, 0o644)
}

// SignetPath returns the path to the .signet directory.
func (c *Config) SignetPath() string {
	return c.path
}

// DatabasePath returns the path to the registry database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.path, DatabaseFile)
}

// IndexBackupPath returns the path to the index warm-start snapshot.
func (c *Config) IndexBackupPath() string {
	return filepath.Join(c.path, IndexFile)
}

// Initialize creates a new .signet directory with the default
// configuration.
func Initialize(threshold, capacity int) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	signetPath := filepath.Join(cwd, SignetDir)
	if _, err := os.Stat(signetPath); err == nil {
		return nil, fmt.Errorf("signet registry already exists")
	}

	if err := os.MkdirAll(signetPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create .signet directory: %w", err)
	}

	cfg := &Config{
		Threshold: threshold,
		Capacity:  capacity,
		TempDir:   os.TempDir(),
		path:      signetPath,
	}

	if err := cfg.Save(); err != nil {
		os.RemoveAll(signetPath)
		return nil, err
	}

	return cfg, nil
}
