package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show registry and index status",
	Run:   runStatus,
}

func runStatus(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	records, err := c.Service.ListRecords()
	if err != nil {
		exitError("failed to read registry: %v", err)
	}

	fmt.Printf("Registry:   %s\n", c.Config.DatabasePath())
	fmt.Printf("Records:    %d\n", len(records))

	size := c.Service.IndexSize()
	if size < 0 {
		fmt.Println("Index:      disabled")
		return
	}
	fmt.Printf("Index size: %d\n", size)

	if size == len(records) {
		color.New(color.FgGreen).Println("Index is consistent with the registry")
	} else {
		color.New(color.FgYellow).Printf("Drift: index holds %d entries, registry %d (next query reconciles)\n", size, len(records))
	}
}
