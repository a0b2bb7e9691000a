// Package main provides the entry point for fetchsim.
// Fetchsim is a cycle-level model of a speculative instruction-fetch
// front-end.
//
// For the full CLI, use: go run ./cmd/fetchsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("fetchsim - Instruction Fetch Front-End Simulator")
	fmt.Println("")
	fmt.Println("Usage: fetchsim [options] <program.elf>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config    Path to front-end configuration JSON file")
	fmt.Println("  -cycles    Number of cycles to simulate")
	fmt.Println("  -queue     Instruction queue depth in bundles")
	fmt.Println("  -v         Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/fetchsim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/fetchsim' instead.")
	}
}
