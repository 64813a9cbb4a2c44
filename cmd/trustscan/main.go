package main

import (
	"fmt"
	"os"

	"github.com/averix/trustscan/internal/tui"
)

var version = "dev"

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "scrape":
			os.Exit(runScrape(os.Args[2:]))
		case "export":
			if err := runExport(os.Args[2:]); err != nil {
				fmt.Fprintf(os.Stderr, "error: %v\n", err)
				os.Exit(1)
			}
			return
		case "version":
			fmt.Println("trustscan " + version)
			return
		case "help", "--help", "-h":
			printUsage()
			return
		}
	}

	// No subcommand → launch TUI
	if err := tui.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `trustscan - Trustpilot business profile scraper

Usage:
  trustscan                 Launch interactive TUI
  trustscan scrape [flags]  Run headless scrape
  trustscan export [flags]  Export .db to CSV
  trustscan version         Show version

Run 'trustscan scrape --help' or 'trustscan export --help' for flags.
`)
}
