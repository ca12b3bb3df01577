package cli

import (
	"flag"
	"fmt"
	"os"

	"inksign/signature"
)

// CleanOptions contains options for the 'clean' command.
type CleanOptions struct {
	Tolerance  float64
	Brightness float64
	MaxDim     int
}

// CleanCommand implements the 'clean' command.
func CleanCommand(args []string) {
	cleanFlags := flag.NewFlagSet("clean", flag.ExitOnError)

	defaults := signature.DefaultRemoveOptions()

	var opts CleanOptions
	cleanFlags.Float64Var(&opts.Tolerance, "tolerance", defaults.ColorTolerance, "Color distance from the background treated as background")
	cleanFlags.Float64Var(&opts.Brightness, "brightness", defaults.BrightnessThreshold, "Luma above which a pixel is treated as background")
	cleanFlags.IntVar(&opts.MaxDim, "max-dim", defaults.MaxDimension, "Downscale images whose longest side exceeds this many pixels")

	cleanFlags.Usage = func() {
		fmt.Printf("Usage: %s clean [options] <input-image> <output.png>\n\n", os.Args[0])
		fmt.Println("Remove the background from a scanned or photographed signature image")
		fmt.Println("and write the result as a PNG with transparency.")
		fmt.Println("")
		fmt.Println("Arguments:")
		fmt.Println("  input-image  Signature image (PNG or JPEG)")
		fmt.Println("  output.png   Output file for the cleaned PNG")
		fmt.Println("")
		fmt.Println("Options:")
		cleanFlags.PrintDefaults()
		fmt.Println("")
		fmt.Println("Examples:")
		fmt.Printf("  %s clean scan.jpg signature.png\n", os.Args[0])
		fmt.Printf("  %s clean -tolerance 64 scan.jpg signature.png\n", os.Args[0])
	}

	if err := cleanFlags.Parse(args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		osExit(1)
	}

	if len(cleanFlags.Args()) < 2 {
		cleanFlags.Usage()
		osExit(1)
	}

	if err := cleanImage(cleanFlags.Arg(0), cleanFlags.Arg(1), &opts); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}

	fmt.Printf("Successfully wrote cleaned signature: %s\n", cleanFlags.Arg(1))
}

// cleanImage performs the actual background removal.
func cleanImage(inputPath, outputPath string, opts *CleanOptions) error {
	payload, err := os.ReadFile(inputPath)
	if err != nil {
		return fmt.Errorf("failed to read input image: %w", err)
	}

	format, err := signature.Sniff(payload)
	if err != nil {
		return err
	}

	removeOpts := signature.DefaultRemoveOptions()
	removeOpts.ColorTolerance = opts.Tolerance
	removeOpts.BrightnessThreshold = opts.Brightness
	removeOpts.MaxDimension = opts.MaxDim

	cleaned, err := signature.Process(signature.ToDataURL(format.MIMEType(), payload), signature.DefaultSourcePolicy(), removeOpts)
	if err != nil {
		return err
	}

	_, data, err := signature.ParseDataURL(cleaned)
	if err != nil {
		return err
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	return nil
}
