package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Force a full rebuild of the similarity index",
	Long: `Discard the in-memory similarity index and rebuild it from the
authoritative registry, reassigning sequential labels in store order.`,
	Run: runRebuild,
}

func runRebuild(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	if err := c.Service.RebuildIndex(); err != nil {
		exitError("rebuild failed: %v", err)
	}

	fmt.Printf("Index rebuilt with %d entries\n", c.Service.IndexSize())
}
