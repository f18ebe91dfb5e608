// Package main provides the entry point for chip8sim.
// chip8sim is a CHIP-8 virtual machine core with a headless runner.
//
// For the full CLI, use: go run ./cmd/chip8sim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("chip8sim - CHIP-8 Virtual Machine")
	fmt.Println("")
	fmt.Println("Usage: chip8sim [options] <program.ch8>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config        Path to TOML configuration file")
	fmt.Println("  -frames        Number of frames to run (0 = real time)")
	fmt.Println("  -cycles        Instructions per frame")
	fmt.Println("  -seed          Random seed")
	fmt.Println("  -v             Log verbosity")
	fmt.Println("  -dump          Print the display when the run ends")
	fmt.Println("  -save-db       Save state database")
	fmt.Println("  -save-slot     Save the final state to a slot")
	fmt.Println("  -restore-slot  Restore a slot before running")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/chip8sim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/chip8sim' instead.")
	}
}
