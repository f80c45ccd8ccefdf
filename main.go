package main

import (
	"os"

	"github.com/dkarayel/starcrier/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
