// Command scraper is the flag-driven variant of the batch entry point:
// the same crawl pipeline, configured from the command line instead of the
// environment.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"

	"github.com/muteekhan06/olx-scraper-auto/config"
	"github.com/muteekhan06/olx-scraper-auto/models"
	"github.com/muteekhan06/olx-scraper-auto/services"
	"github.com/muteekhan06/olx-scraper-auto/storage"
	"github.com/muteekhan06/olx-scraper-auto/utils"
)

func main() {
	locationsFlag := flag.String("locations", "all",
		"Comma-separated location keys (lahore,karachi) or 'all'")
	pages := flag.Int("pages", 0,
		"Search-result pages per location (0 = default)")
	listings := flag.Int("listings", 0,
		"Cap on listings per location (0 = default)")
	workers := flag.Int("workers", 0,
		"Concurrent detail-page workers (0 = default)")
	headless := flag.Bool("headless", true,
		"Run Chrome headless (false = visible window)")
	contacts := flag.Bool("contacts", false,
		"Fetch seller contact info (requires a manual login)")
	outFile := flag.String("out", "",
		"Output JSON filename (empty = default)")
	logLevel := flag.String("log-level", "",
		"Log level: debug, info, warn, error (empty = default)")
	flag.Parse()

	cfg := config.Default()
	cfg.Headless = *headless
	if *pages > 0 {
		cfg.MaxPages = *pages
	}
	if *listings > 0 {
		cfg.MaxListings = *listings
	}
	if *workers > 0 {
		cfg.DetailWorkers = *workers
	}
	if *outFile != "" {
		cfg.OutFile = *outFile
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := utils.NewLogger(cfg)
	defer logger.Sync()

	locations := config.SelectLocations(*locationsFlag)
	if len(locations) == 0 {
		log.Fatalf("✗ No locations matched -locations=%q", *locationsFlag)
	}
	names := make([]string, 0, len(locations))
	for _, loc := range locations {
		names = append(names, loc.Name)
	}

	log.Printf("Locations : %s", strings.Join(names, ", "))
	log.Printf("Pages     : %d per location, cap %d listings", cfg.MaxPages, cfg.MaxListings)
	log.Printf("Workers   : %d", cfg.DetailWorkers)
	log.Printf("Contacts  : %v", *contacts)
	log.Printf("Output    : %s", cfg.OutFile)

	rootCtx, cancelRoot := context.WithTimeout(context.Background(), cfg.GlobalTimeout)
	defer cancelRoot()

	pool := utils.NewSessionPool(cfg, logger)
	defer pool.CloseAll()

	progress := models.ProgressFunc(func(msg string) { log.Print(msg) })

	runner := services.NewRunner(cfg, pool, logger)
	results, err := runner.Run(rootCtx, locations, progress)
	if err != nil {
		log.Printf("✗ Crawl aborted early: %v", err)
	}

	all := models.FlattenResults(results)
	if len(all) == 0 {
		log.Fatalf("✗ No listings scraped, nothing to export")
	}

	if *contacts {
		store := storage.NewCookieStore(cfg.CookieFile, cfg.CookieTTL, logger)
		client := services.NewContactClient(cfg, pool, store, logger)
		enriched, err := client.Enrich(rootCtx, all, progress)
		switch {
		case errors.Is(err, services.ErrLoginTimeout):
			log.Printf("✗ Login window expired, exporting without contact info")
		case err != nil:
			log.Printf("✗ Contact enrichment failed: %v", err)
		default:
			all = enriched
		}
	}

	total, err := utils.WriteJSON(cfg.OutFile, all)
	if err != nil {
		log.Fatalf("✗ Failed to write JSON: %v", err)
	}

	log.Printf("═══════════════════════════════════════════════════")
	log.Printf("  DONE — %d total listings → %s", total, cfg.OutFile)
	for _, r := range results {
		status := fmt.Sprintf("%d listings", len(r.Listings))
		if r.Err != nil {
			status = "ERROR: " + r.Err.Error()
		}
		log.Printf("    %-12s %s", r.Name+":", status)
	}
	log.Printf("═══════════════════════════════════════════════════")
}
