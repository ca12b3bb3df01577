// Package cli provides the command-line interface for placing signature
// images on PDF documents.
package cli

import (
	"fmt"
	"os"
)

// Version information
var (
	Version   = "dev"
	BuildTime = "unknown"
)

// osExit is a variable for os.Exit to allow testing
var osExit = os.Exit

// Run executes the CLI with the given arguments.
// This is the main entry point for the CLI.
func Run(args []string) {
	if len(args) < 2 {
		Usage()
		return
	}

	command := args[1]

	switch command {
	case "apply":
		ApplyCommand(args)
	case "pages":
		PagesCommand(args)
	case "clean":
		CleanCommand(args)
	case "version":
		VersionCommand()
	case "help", "-h", "--help":
		Usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		Usage()
	}
}

// Usage prints the CLI usage information.
func Usage() {
	fmt.Printf("inksign - place signature images on PDF documents\n\n")
	fmt.Printf("Usage: %s <command> [options] <args>\n\n", os.Args[0])
	fmt.Println("Commands:")
	fmt.Println("  apply    Stamp signature images onto a PDF at placed positions")
	fmt.Println("  pages    List the pages of a PDF with their dimensions")
	fmt.Println("  clean    Remove the background from a signature image")
	fmt.Println("  version  Show version information")
	fmt.Println("  help     Show this help message")
	fmt.Println("")
	fmt.Printf("Use '%s <command> -h' for command-specific help\n", os.Args[0])
	fmt.Println("")
	fmt.Println("Examples:")
	fmt.Printf("  %s apply contract.pdf placements.yaml\n", os.Args[0])
	fmt.Printf("  %s pages contract.pdf\n", os.Args[0])
	fmt.Printf("  %s clean scan.jpg signature.png\n", os.Args[0])
}

// VersionCommand prints version information.
func VersionCommand() {
	fmt.Printf("inksign version %s\n", Version)
	fmt.Printf("Build time: %s\n", BuildTime)
}
