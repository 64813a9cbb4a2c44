package main

import (
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/averix/trustscan/internal/engine/storage"
)

func runExport(args []string) error {
	var dbPath, outputPath, format string

	fs := flag.NewFlagSet("export", flag.ExitOnError)
	fs.StringVar(&dbPath, "db", "", "Path to .db file (required)")
	fs.StringVar(&outputPath, "output", "", "Output file path (default: same dir as db)")
	fs.StringVar(&format, "format", "csv", "Export format: csv")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: trustscan export [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  trustscan export -db ./results/trustscan_20260828.db\n")
		fmt.Fprintf(os.Stderr, "  trustscan export -db data.db -output businesses.csv\n")
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	if dbPath == "" {
		return fmt.Errorf("-db is required")
	}

	if format != "csv" {
		return fmt.Errorf("unsupported format: %s (only csv supported)", format)
	}

	if outputPath == "" {
		dir := filepath.Dir(dbPath)
		base := strings.TrimSuffix(filepath.Base(dbPath), ".db")
		outputPath = filepath.Join(dir, base+".csv")
	}

	store, err := storage.NewStore(dbPath)
	if err != nil {
		return fmt.Errorf("opening db: %w", err)
	}
	defer store.Close()

	businesses, err := store.LoadAll()
	if err != nil {
		return fmt.Errorf("loading db: %w", err)
	}

	if len(businesses) == 0 {
		return fmt.Errorf("no businesses found in database")
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("creating output: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	w.Write([]string{
		"id", "domain", "name", "rating_value", "review_count",
		"country", "address", "city", "zip_code",
		"website", "email", "phone", "categories", "categories_id",
		"description",
	})

	for _, b := range businesses {
		w.Write([]string{
			b.ID,
			b.Domain,
			b.Name,
			b.RatingValue,
			strconv.Itoa(b.ReviewCount),
			b.Country,
			b.Address,
			b.City,
			b.ZipCode,
			b.Website,
			b.Email,
			b.Phone,
			strings.Join(b.Categories, ", "),
			strings.Join(b.CategoriesID, ", "),
			b.Description,
		})
	}

	fmt.Fprintf(os.Stderr, "Exported %d businesses to %s\n", len(businesses), outputPath)
	return nil
}
