package main

import (
	"os"

	"github.com/nhle/inbox-sweep/internal/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
