// Package main is the entry point for the facegear device CLI.
//
// Usage:
//
//	facegear [flags] <command> [args]
//
// Commands:
//
//	run        - Run the device control plane (provisioning + face protocol)
//	version    - Show version information
package main

import (
	"fmt"
	"os"

	"github.com/littleai/facegear/cmd/facegear/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
