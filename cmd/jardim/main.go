package main

import (
	"os"

	"github.com/BradenHooton/jardim/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
