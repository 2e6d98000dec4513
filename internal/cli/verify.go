package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/signetlabs/signet/pkg/models"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <file>",
	Short: "Verify a media file against the registry",
	Long: `Extract the perceptual fingerprint of an image or video file and
check whether it matches a registered record within the configured
distance threshold.`,
	Args: cobra.ExactArgs(1),
	Run:  runVerify,
}

var verifyExact bool

func init() {
	verifyCmd.Flags().BoolVar(&verifyExact, "exact", false, "Skip the ANN index and scan every record")
}

func runVerify(cmd *cobra.Command, args []string) {
	c := initContextExact(verifyExact)
	defer c.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		exitError("failed to read %s: %v", args[0], err)
	}

	res, err := c.Service.Verify(context.Background(), data, models.KindUnknown)
	if err != nil {
		exitError("verification failed: %v", err)
	}

	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	switch {
	case res.Verdict == models.Verified:
		green.Println("VERIFIED")
	case res.Reason == models.ReasonNoRecords:
		red.Println("UNVERIFIED")
		fmt.Println("The registry has no entries.")
		return
	default:
		red.Println("UNVERIFIED")
	}

	fmt.Printf("Query fingerprint: %s\n", shortFP(res.Fingerprint))
	fmt.Printf("Distance:          %d\n", res.Distance)
	if res.Match != nil {
		fmt.Printf("Closest record:    %s\n", res.Match.ID)
		fmt.Printf("Publisher:         %s\n", res.Match.Publisher)
		if res.Match.Title != "" {
			fmt.Printf("Title:             %s\n", res.Match.Title)
		}
		if res.Match.TxHash != "" {
			fmt.Printf("Transaction:       %s\n", res.Match.TxHash)
		}
	}
}
