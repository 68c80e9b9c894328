package main

import (
	"os"

	"github.com/medlake/medlake/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
