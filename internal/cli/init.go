package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/signetlabs/signet/internal/config"
	"github.com/signetlabs/signet/pkg/signet"
	"github.com/signetlabs/signet/pkg/signet/index"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new signet registry",
	Long: `Initialize a new signet registry in the current directory.
This creates a .signet directory holding the registry database, the
index snapshot and the configuration file.`,
	Run: runInit,
}

var (
	initThreshold int
	initCapacity  int
)

func init() {
	initCmd.Flags().IntVar(&initThreshold, "threshold", signet.DefaultThreshold, "Maximum Hamming distance for a VERIFIED verdict")
	initCmd.Flags().IntVar(&initCapacity, "capacity", index.DefaultCapacity, "Similarity index capacity")
}

func runInit(cmd *cobra.Command, args []string) {
	if _, err := config.FindRoot(); err == nil {
		exitError("signet registry already exists")
	}

	cfg, err := config.Initialize(initThreshold, initCapacity)
	if err != nil {
		exitError("%v", err)
	}

	fmt.Printf("Initialized empty signet registry in %s\n", cfg.SignetPath())
	fmt.Printf("Threshold: %d, capacity: %d\n", initThreshold, initCapacity)
}
