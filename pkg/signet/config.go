package signet

import "time"

// DefaultThreshold is the maximum Hamming distance (out of 768) at
// which content counts as VERIFIED.
const DefaultThreshold = 25

type Config struct {
	DBPath          string
	IndexBackupPath string
	TempDir         string
	Threshold       int
	Capacity        int
	DriftWindow     time.Duration
	DisableIndex    bool
	FFmpegPath      string
	FFprobePath     string
	Logger          Logger
	Store           RecordStore
}

type Option func(*Config)

func WithDBPath(path string) Option {
	return func(c *Config) {
		c.DBPath = path
	}
}

// WithIndexBackupPath enables the warm-start snapshot file. The
// snapshot is never authoritative.
func WithIndexBackupPath(path string) Option {
	return func(c *Config) {
		c.IndexBackupPath = path
	}
}

func WithTempDir(dir string) Option {
	return func(c *Config) {
		c.TempDir = dir
	}
}

func WithThreshold(threshold int) Option {
	return func(c *Config) {
		c.Threshold = threshold
	}
}

// WithCapacity bounds the similarity index element count.
func WithCapacity(capacity int) Option {
	return func(c *Config) {
		c.Capacity = capacity
	}
}

// WithDriftWindow sets how often at most the index checks the store
// for drift. Negative disables rate limiting.
func WithDriftWindow(window time.Duration) Option {
	return func(c *Config) {
		c.DriftWindow = window
	}
}

// WithoutIndex disables the ANN index entirely; every verification
// runs the exact linear scan.
func WithoutIndex() Option {
	return func(c *Config) {
		c.DisableIndex = true
	}
}

func WithFFmpegPath(ffmpeg, ffprobe string) Option {
	return func(c *Config) {
		c.FFmpegPath = ffmpeg
		c.FFprobePath = ffprobe
	}
}

func WithLogger(log Logger) Option {
	return func(c *Config) {
		c.Logger = log
	}
}

// WithStore injects a RecordStore, bypassing the sqlite client.
func WithStore(store RecordStore) Option {
	return func(c *Config) {
		c.Store = store
	}
}

func defaultConfig() *Config {
	return &Config{
		DBPath:    "signet.sqlite3",
		TempDir:   "/tmp",
		Threshold: DefaultThreshold,
	}
}
