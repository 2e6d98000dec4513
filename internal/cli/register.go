package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/signetlabs/signet/pkg/models"
)

var registerCmd = &cobra.Command{
	Use:   "register <file>",
	Short: "Register a media file in the registry",
	Long: `Extract the perceptual fingerprint of an image or video file and
register it as authentic content under the given publisher.`,
	Args: cobra.ExactArgs(1),
	Run:  runRegister,
}

var (
	registerPublisher   string
	registerTitle       string
	registerDescription string
	registerTxHash      string
)

func init() {
	registerCmd.Flags().StringVar(&registerPublisher, "publisher", "", "Publisher identity (required)")
	registerCmd.Flags().StringVar(&registerTitle, "title", "", "Content title")
	registerCmd.Flags().StringVar(&registerDescription, "description", "", "Content description")
	registerCmd.Flags().StringVar(&registerTxHash, "txhash", "", "External transaction reference")
	registerCmd.MarkFlagRequired("publisher")
}

func runRegister(cmd *cobra.Command, args []string) {
	c := initContext()
	defer c.Close()

	data, err := os.ReadFile(args[0])
	if err != nil {
		exitError("failed to read %s: %v", args[0], err)
	}

	rec, err := c.Service.Register(context.Background(), data, models.KindUnknown, models.RecordMeta{
		Publisher:   registerPublisher,
		Title:       registerTitle,
		Description: registerDescription,
		Timestamp:   time.Now().Unix(),
		TxHash:      registerTxHash,
	})
	if err != nil {
		exitError("registration failed: %v", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("Registered %s\n", rec.ID)
	fmt.Printf("Fingerprint: %s\n", shortFP(rec.Fingerprint))
	fmt.Printf("Publisher:   %s\n", rec.Publisher)
	if rec.Title != "" {
		fmt.Printf("Title:       %s\n", rec.Title)
	}
}
