package cli

import (
	"flag"
	"fmt"
	"os"

	"inksign/pdfdoc"
)

// PagesCommand implements the 'pages' command.
func PagesCommand(args []string) {
	pagesFlags := flag.NewFlagSet("pages", flag.ExitOnError)

	pagesFlags.Usage = func() {
		fmt.Printf("Usage: %s pages <input.pdf>\n\n", os.Args[0])
		fmt.Println("List the pages of a PDF with their native dimensions in points.")
	}

	if err := pagesFlags.Parse(args[2:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing flags: %v\n", err)
		osExit(1)
	}

	if len(pagesFlags.Args()) < 1 {
		pagesFlags.Usage()
		osExit(1)
	}

	if err := listPages(pagesFlags.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		osExit(1)
	}
}

// listPages prints the page inventory of a document.
func listPages(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}

	doc, err := pdfdoc.Load(data)
	if err != nil {
		return fmt.Errorf("failed to load PDF: %w", err)
	}

	fmt.Printf("File:    %s\n", path)
	fmt.Printf("Version: %s\n", doc.Version())
	fmt.Printf("Pages:   %d\n", doc.PageCount())
	fmt.Println("")
	for i := 0; i < doc.PageCount(); i++ {
		w, h, err := doc.PageSize(i)
		if err != nil {
			return err
		}
		fmt.Printf("  Page %d: %.2f x %.2f pt\n", i+1, w, h)
	}
	return nil
}
