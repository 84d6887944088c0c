package main

import (
	"fmt"
	"os"

	"github.com/kl-higa/public-mtg-monitor2/cmd/mtg-monitor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
