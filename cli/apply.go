package cli

import (
	"flag"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"inksign/config"
	"inksign/export"
	"inksign/placement"
	"inksign/session"
	"inksign/signature"
)

// ApplyOptions contains options for the 'apply' command.
type ApplyOptions struct {
	Output     string
	ConfigPath string
	Clean      bool
}

// placementEntry is one stamped signature in the placements file. Positions
// are percentages of the page with the origin at the top-left corner.
type placementEntry struct {
	Page  int                      `yaml:"page"`
	Rect  placement.NormalizedRect `yaml:",inline"`
	Image string                   `yaml:"image"`
}

// placementFile is the YAML document read by the 'apply' command.
type placementFile struct {
	Placements []placementEntry `yaml:"placements"`
}

// ApplyCommand implements the 'apply' command.
func ApplyCommand(args []string) {
	applyFlags := flag.NewFlagSet("apply", flag.ExitOnError)

	var opts ApplyOptions

	applyFlags.StringVar(&opts.Output, "out", "", "Output path (default: <input>-signed.pdf)")
	applyFlags.StringVar(&opts.ConfigPath, "config", "", "Path to a YAML configuration file")
	applyFlags.BoolVar(&opts.Clean, "clean", false, "Remove the background from each signature image before stamping")

	applyFlags.Usage = func() {
		fmt.Printf("Usage: %s apply [options] <input.pdf> <placements.yaml>\n\n", os.Args[0])
		fmt.Println("Stamp signature images onto a PDF at the positions listed in the")
		fmt.Println("placements file and write the result as a new document.")
		fmt.Println("")
		fmt.Println("Arguments:")
		fmt.Println("  input.pdf        Input PDF file")
		fmt.Println("  placements.yaml  Placement list: page, x/y/w/h percentages, image path")
		fmt.Println("")
		fmt.Println("Options:")
		applyFlags.PrintDefaults()
		fmt.Println("")
		fmt.Println("Examples:")
		fmt.Printf("  %s apply contract.pdf placements.yaml\n", os.Args[0])
		fmt.Printf("  %s apply -clean -out signed.pdf contract.pdf placements.yaml\n", os.Args[0])
	}

	if err := applyFlags.Parse(args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		osExit(1)
	}

	if len(applyFlags.Args()) < 2 {
		applyFlags.Usage()
		osExit(1)
	}

	inputPath := applyFlags.Arg(0)
	placementsPath := applyFlags.Arg(1)

	outputPath, err := applyPlacements(inputPath, placementsPath, &opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}

	fmt.Printf("Successfully wrote signed PDF: %s\n", outputPath)
}

// applyPlacements performs the actual stamping.
func applyPlacements(inputPath, placementsPath string, opts *ApplyOptions) (string, error) {
	cfg, err := loadConfig(opts.ConfigPath)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to read input file: %w", err)
	}

	sess := session.New(cfg, nil)
	if err := sess.LoadDocument(inputPath, data); err != nil {
		return "", fmt.Errorf("failed to load PDF: %w", err)
	}

	entries, err := readPlacementFile(placementsPath)
	if err != nil {
		return "", err
	}

	store, err := sess.Store()
	if err != nil {
		return "", err
	}

	for i, entry := range entries {
		payload, err := os.ReadFile(entry.Image)
		if err != nil {
			return "", fmt.Errorf("placement %d: failed to read image: %w", i, err)
		}
		if opts.Clean {
			format, err := signature.Sniff(payload)
			if err != nil {
				return "", fmt.Errorf("placement %d: %w", i, err)
			}
			cleaned, err := signature.Process(signature.ToDataURL(format.MIMEType(), payload), sess.SignaturePolicy(), signature.DefaultRemoveOptions())
			if err != nil {
				return "", fmt.Errorf("placement %d: background removal failed: %w", i, err)
			}
			payload = []byte(cleaned)
		}
		if _, err := store.Add(entry.Page, entry.Rect, payload); err != nil {
			return "", fmt.Errorf("placement %d: %w", i, err)
		}
	}

	result, err := sess.Export()
	if err != nil {
		return "", fmt.Errorf("export failed: %w", err)
	}

	outputPath := opts.Output
	if outputPath == "" {
		outputPath = export.OutputName(inputPath)
	}
	if err := os.WriteFile(outputPath, result.Data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write output file: %w", err)
	}
	return outputPath, nil
}

// readPlacementFile parses the YAML placement list.
func readPlacementFile(path string) ([]placementEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read placements file: %w", err)
	}
	var file placementFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse placements file: %w", err)
	}
	if len(file.Placements) == 0 {
		return nil, fmt.Errorf("placements file %s lists no placements", path)
	}
	return file.Placements, nil
}

// loadConfig loads the configuration file if one was given.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
