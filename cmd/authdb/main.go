package main

import (
	"os"

	"github.com/MrEthical07/authdb/cmd/authdb/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
