package main

import (
	"os"

	"github.com/bcdannyboy/mcprice/cmd/mcprice/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
