package main

import (
	"os"

	"github.com/borgmon/alert-keeper/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
