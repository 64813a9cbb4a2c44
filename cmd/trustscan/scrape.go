package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/averix/trustscan/internal/config"
	"github.com/averix/trustscan/internal/engine/output"
	"github.com/averix/trustscan/internal/engine/scraper"
	"github.com/averix/trustscan/internal/engine/storage"
	"github.com/averix/trustscan/internal/logger"
	"github.com/averix/trustscan/internal/model"
)

// runScrape executes a headless run. Exit codes: 0 complete, 1 setup
// failure, 2 partial results (run stopped early but kept what it had).
func runScrape(args []string) int {
	var (
		params     model.SearchParams
		searchType string
		configPath string
		outputDir  string
	)

	fs := flag.NewFlagSet("scrape", flag.ExitOnError)
	fs.StringVar(&searchType, "type", "category", "Search type: category, keyword or detail")
	fs.StringVar(&params.CategoryID, "category", "", "Category id (type=category)")
	fs.StringVar(&params.Keyword, "keyword", "", "Search keyword (type=keyword)")
	fs.StringVar(&params.Domain, "domain", "", "Business domain (type=detail)")
	fs.StringVar(&params.Country, "country", "", "Country code filter, also fed into the request")
	fs.StringVar(&params.Language, "language", "", "Review language code")
	fs.Float64Var(&params.Filters.MinTrustScore, "min-trustscore", 0, "Minimum trust score 0-10")
	fs.BoolVar(&params.Filters.VerifiedOnly, "verified-only", false, "Require verified-consumer reviews")
	fs.IntVar(&params.Filters.MinReviews, "min-reviews", 0, "Minimum review count")
	fs.BoolVar(&params.AllPages, "all-pages", false, "Fetch all available pages (capped by config)")
	fs.IntVar(&params.MaxPages, "max-pages", 1, "Max pages when -all-pages is off")
	fs.BoolVar(&params.IncludeReviews, "include-reviews", false, "Attach detailed reviews per business")
	fs.IntVar(&params.MaxReviews, "max-reviews", 0, "Cap reviews per business (0 = no cap)")
	fs.IntVar(&params.Concurrency, "concurrency", 0, "Enrichment worker pool size")
	fs.StringVar(&params.ProxyURL, "proxy", "", "HTTP/SOCKS5 proxy URL")
	fs.StringVar(&outputDir, "output", "./results", "Output directory for run files")
	fs.StringVar(&configPath, "config", "", "Path to YAML settings file")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: trustscan scrape [flags]\n\nFlags:\n")
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  trustscan scrape -type category -category electronics_technology -max-pages 2\n")
		fmt.Fprintf(os.Stderr, "  trustscan scrape -type keyword -keyword bank -country US -min-trustscore 4\n")
		fmt.Fprintf(os.Stderr, "  trustscan scrape -type detail -domain example.com -include-reviews\n")
	}

	if err := fs.Parse(args); err != nil {
		return 1
	}

	params.SearchType = model.SearchType(searchType)
	if err := validateParams(&params); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	if params.ProxyURL == "" {
		params.ProxyURL = cfg.ProxyURL
	}
	if params.Language == "" {
		params.Language = cfg.DefaultLanguage
	}
	if params.Concurrency <= 0 {
		params.Concurrency = cfg.Concurrency
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "error: creating output dir: %v\n", err)
		return 1
	}

	ts := time.Now().Format("20060102_150405")
	baseName := fmt.Sprintf("trustscan_%s", ts)
	jsonPath := filepath.Join(outputDir, baseName+".json")
	dbPath := filepath.Join(outputDir, baseName+".db")
	logPath := filepath.Join(outputDir, baseName+".log")
	params.OutputDir = outputDir
	params.DBPath = dbPath

	log, closeLog, err := logger.NewFileLogger(logPath, cfg.Logging.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer closeLog()

	log.Info("session start",
		zap.String("type", string(params.SearchType)),
		zap.String("target", params.Target()),
		zap.String("country", params.Country),
		zap.Bool("all_pages", params.AllPages),
		zap.Int("max_pages", params.MaxPages),
		zap.Bool("include_reviews", params.IncludeReviews))

	fmt.Fprintf(os.Stderr, "Log: %s\n", logPath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nShutting down gracefully...")
		cancel()
	}()

	client := scraper.NewClient(scraper.ClientOptions{
		ProxyURL:   params.ProxyURL,
		Timeout:    cfg.Timeout(),
		MaxRetries: cfg.MaxRetries,
		Headers:    cfg.Headers,
	})
	urls := scraper.NewURLBuilder(cfg.BaseURL)
	enricher := scraper.NewEnricher(client, urls, log, params.Language, params.MaxReviews, params.Concurrency)
	driver := scraper.NewDriver(client, urls, enricher, log, cfg.MaxPages, nil)

	startTime := time.Now()
	done := make(chan struct{})
	go reportProgress(driver.Stats(), startTime, done)

	rs, runErr := driver.Run(ctx, &params)
	close(done)

	if err := output.WriteJSON(jsonPath, rs); err != nil {
		log.Error("writing result json", zap.Error(err))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
	}

	stored := 0
	if store, err := storage.NewStore(dbPath); err != nil {
		log.Error("opening store", zap.Error(err))
	} else {
		stored, err = store.InsertBatch(rs.Businesses)
		if err != nil {
			log.Error("storing businesses", zap.Error(err))
		}
		store.Close()
	}

	duration := time.Since(startTime).Truncate(time.Second)
	stats := driver.Stats()
	log.Info("session done",
		zap.Int64("found", stats.Found.Load()),
		zap.Int64("kept", stats.Kept.Load()),
		zap.Int64("duplicates", stats.Duplicates.Load()),
		zap.Int64("warnings", stats.Warnings.Load()),
		zap.Int("pages", rs.Pages),
		zap.String("status", string(rs.Status)))

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  trustscan %s\n", rs.Status)
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Target:     %s (%s)\n", params.Target(), params.SearchType)
	fmt.Fprintf(os.Stderr, "  Pages:      %d\n", rs.Pages)
	fmt.Fprintf(os.Stderr, "  Found:      %d\n", stats.Found.Load())
	fmt.Fprintf(os.Stderr, "  Kept:       %d (unique, filtered)\n", len(rs.Businesses))
	fmt.Fprintf(os.Stderr, "  Stored:     %d\n", stored)
	fmt.Fprintf(os.Stderr, "  Warnings:   %d\n", rs.Warnings)
	fmt.Fprintf(os.Stderr, "  Duration:   %s\n", duration)
	fmt.Fprintf(os.Stderr, "  Output:     %s\n", jsonPath)
	fmt.Fprintf(os.Stderr, "  Database:   %s\n", dbPath)
	fmt.Fprintf(os.Stderr, "  Log:        %s\n", logPath)
	fmt.Fprintf(os.Stderr, "══════════════════════════════\n")

	if runErr != nil {
		var re *scraper.RunError
		if errors.As(runErr, &re) {
			fmt.Fprintf(os.Stderr, "run stopped early: %v (partial results kept)\n", re)
		} else {
			fmt.Fprintf(os.Stderr, "run failed: %v\n", runErr)
		}
		return 2
	}
	return 0
}

func validateParams(p *model.SearchParams) error {
	switch p.SearchType {
	case model.SearchCategory:
		if p.CategoryID == "" {
			return fmt.Errorf("-category is required for type=category")
		}
	case model.SearchKeyword:
		if p.Keyword == "" {
			return fmt.Errorf("-keyword is required for type=keyword")
		}
	case model.SearchDetail:
		if p.Domain == "" {
			return fmt.Errorf("-domain is required for type=detail")
		}
	default:
		return fmt.Errorf("unsupported type %q", p.SearchType)
	}
	if p.Filters.MinTrustScore < 0 || p.Filters.MinTrustScore > 10 {
		return fmt.Errorf("-min-trustscore must be between 0 and 10")
	}
	return nil
}

func reportProgress(stats *scraper.Stats, startTime time.Time, done <-chan struct{}) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			elapsed := time.Since(startTime).Truncate(time.Second)
			fmt.Fprintf(os.Stderr, "\r[page %d/%d] %d found | %d kept | %d warnings | %s",
				stats.PagesFetched.Load(), stats.PagesTotal.Load(),
				stats.Found.Load(), stats.Kept.Load(),
				stats.Warnings.Load(), elapsed)
		case <-done:
			fmt.Fprintln(os.Stderr)
			return
		}
	}
}
