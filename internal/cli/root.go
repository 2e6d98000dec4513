// Package cli implements the command-line interface for signet.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/signetlabs/signet/internal/config"
	"github.com/signetlabs/signet/pkg/signet"
)

// cmdContext holds common resources for CLI commands
type cmdContext struct {
	Config  *config.Config
	Service signet.Service
}

// Close releases resources held by cmdContext
func (c *cmdContext) Close() {
	if c.Service != nil {
		c.Service.Close()
	}
}

// initContext loads the config and opens the verification service
func initContext() *cmdContext {
	return initContextExact(false)
}

// initContextExact optionally disables the ANN index so every
// verification runs the exact linear scan
func initContextExact(exact bool) *cmdContext {
	cfg, err := config.Load()
	if err != nil {
		exitError("%v", err)
	}

	opts := []signet.Option{
		signet.WithDBPath(cfg.DatabasePath()),
		signet.WithIndexBackupPath(cfg.IndexBackupPath()),
	}
	if exact {
		opts = append(opts, signet.WithoutIndex())
	}
	if cfg.Threshold > 0 {
		opts = append(opts, signet.WithThreshold(cfg.Threshold))
	}
	if cfg.Capacity > 0 {
		opts = append(opts, signet.WithCapacity(cfg.Capacity))
	}
	if cfg.TempDir != "" {
		opts = append(opts, signet.WithTempDir(cfg.TempDir))
	}
	if cfg.FFmpegPath != "" || cfg.FFprobePath != "" {
		opts = append(opts, signet.WithFFmpegPath(cfg.FFmpegPath, cfg.FFprobePath))
	}

	svc, err := signet.NewService(opts...)
	if err != nil {
		exitError("failed to open verification service: %v", err)
	}

	return &cmdContext{Config: cfg, Service: svc}
}

var rootCmd = &cobra.Command{
	Use:   "signet",
	Short: "Perceptual content registry",
	Long: `Signet registers perceptual fingerprints of images and videos and
verifies whether a submitted copy matches registered content, even when
the copy has been re-encoded, cropped, letterboxed or resized.`,
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(rebuildCmd)
}

// exitError prints an error and exits
func exitError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

// shortFP returns a display-friendly prefix of a fingerprint
func shortFP(fp string) string {
	if len(fp) > 16 {
		return fp[:16] + "..."
	}
	return fp
}
