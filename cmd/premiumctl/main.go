// Package main is the entry point for the premiumctl operator CLI.
package main

import (
	"os"

	"github.com/segyhp/premium-engine/cmd/premiumctl/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
