// Command inksign is a CLI tool for placing signature images on PDF
// documents.
//
// Usage:
//
//	inksign <command> [options] <args>
//
// Commands:
//
//	apply    Stamp signature images onto a PDF at placed positions
//	pages    List the pages of a PDF with their dimensions
//	clean    Remove the background from a signature image
//	version  Show version information
//	help     Show help message
//
// Examples:
//
//	# Stamp placements onto a PDF
//	inksign apply contract.pdf placements.yaml
//
//	# Inspect a document
//	inksign pages contract.pdf
//
//	# Clean a scanned signature
//	inksign clean scan.jpg signature.png
package main

import (
	"os"

	"inksign/cli"
)

// These variables are set at build time using ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.buildTime=$(date -u +%Y-%m-%dT%H:%M:%SZ)" ./cmd/inksign
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// Set version info
	cli.Version = version
	cli.BuildTime = buildTime

	// Run the CLI
	cli.Run(os.Args)
}
