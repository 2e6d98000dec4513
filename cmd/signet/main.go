package main

import (
	"os"

	"github.com/signetlabs/signet/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
