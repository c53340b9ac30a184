package main

import (
	"fmt"
	"os"

	"github.com/infblueocean/sitrep/internal/cli"
	"github.com/infblueocean/sitrep/internal/logging"
)

func main() {
	defer logging.Close()

	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
