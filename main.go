package main

import (
	"os"

	"github.com/crypto-pulse/internal/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
