package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/signetlabs/signet/pkg/models"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered records",
	Run:   runList,
}

var listPublisher string

func init() {
	listCmd.Flags().StringVar(&listPublisher, "publisher", "", "Only show records from this publisher")
}

func runList(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	var records []models.Record
	var err error
	if listPublisher != "" {
		records, err = c.Service.RecordsByPublisher(listPublisher)
	} else {
		records, err = c.Service.ListRecords()
	}
	if err != nil {
		exitError("failed to list records: %v", err)
	}

	if len(records) == 0 {
		fmt.Println("No records registered")
		return
	}

	cyan := color.New(color.FgCyan)
	for _, rec := range records {
		cyan.Printf("%s", rec.ID)
		fmt.Printf("  %s  %s", shortFP(rec.Fingerprint), rec.Publisher)
		if rec.Title != "" {
			fmt.Printf("  %q", rec.Title)
		}
		fmt.Println()
	}
	fmt.Printf("\n%d record(s)\n", len(records))
}
