package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/muteekhan06/olx-scraper-auto/config"
	"github.com/muteekhan06/olx-scraper-auto/models"
	"github.com/muteekhan06/olx-scraper-auto/services"
	"github.com/muteekhan06/olx-scraper-auto/storage"
	"github.com/muteekhan06/olx-scraper-auto/utils"
)

func main() {
	cfg := config.Default()

	logger := utils.NewLogger(cfg)
	defer logger.Sync()

	locations := config.SelectLocations(os.Getenv("LOCATIONS"))
	if len(locations) == 0 {
		log.Fatalf("✗ No locations matched LOCATIONS=%q", os.Getenv("LOCATIONS"))
	}
	names := make([]string, 0, len(locations))
	for _, loc := range locations {
		names = append(names, loc.Name)
	}

	enrich := boolEnv("ENRICH_CONTACTS")

	log.Printf("╔═══════════════════════════════════════════════════╗")
	log.Printf("║        OLX Classified-Ads Scraper (Batch)         ║")
	log.Printf("╚═══════════════════════════════════════════════════╝")
	log.Printf("Locations : %s", strings.Join(names, ", "))
	log.Printf("Workers   : %d (detail pages per location)", cfg.DetailWorkers)
	log.Printf("Pages     : %d per location, cap %d listings", cfg.MaxPages, cfg.MaxListings)
	log.Printf("Contacts  : %v", enrich)
	log.Printf("Output    : %s", cfg.OutFile)
	log.Printf("Postgres  : %s:%d/%s", cfg.DBHost, cfg.DBPort, cfg.DBName)

	rootCtx, cancelRoot := context.WithTimeout(context.Background(), cfg.GlobalTimeout)
	defer cancelRoot()

	pool := utils.NewSessionPool(cfg, logger)
	defer pool.CloseAll()

	progress := models.ProgressFunc(func(msg string) { log.Print(msg) })

	runner := services.NewRunner(cfg, pool, logger)
	results, err := runner.Run(rootCtx, locations, progress)
	if err != nil {
		// Fatal crawl errors (no browser runtime) leave nothing worth
		// keeping for the locations that never started.
		log.Printf("✗ Crawl aborted early: %v", err)
	}

	all := models.FlattenResults(results)
	if len(all) == 0 {
		log.Fatalf("✗ No listings scraped, nothing to export")
	}

	if enrich {
		store := storage.NewCookieStore(cfg.CookieFile, cfg.CookieTTL, logger)
		contacts := services.NewContactClient(cfg, pool, store, logger)
		enriched, err := contacts.Enrich(rootCtx, all, progress)
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

	if store, err := storage.NewPostgresStore(cfg); err != nil {
		log.Printf("✗ PostgreSQL unavailable, skipping persistence: %v", err)
	} else {
		dbCtx, cancelDB := context.WithTimeout(context.Background(), 30*time.Second)
		saved, err := store.SaveListings(dbCtx, all)
		cancelDB()
		if err != nil {
			log.Printf("✗ Failed to store listings in PostgreSQL: %v", err)
		} else {
			log.Printf("  DB   — %d listings upserted → listings table", saved)
		}
		store.Close()
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

	stats := utils.BuildSummaryStats(all)
	log.Printf("  STATS")
	log.Printf("    Total Listings Scraped : %d", stats.TotalListings)
	log.Printf("    Priced Listings        : %d", stats.PricedListings)
	log.Printf("    Average Price          : %.0f", stats.AveragePrice)
	log.Printf("    Minimum Price          : %.0f", stats.MinimumPrice)
	log.Printf("    Maximum Price          : %.0f", stats.MaximumPrice)
	if stats.PricedListings > 0 {
		log.Printf("    Most Expensive Listing : %s | %s",
			stats.MostExpensiveListing.Title,
			stats.MostExpensiveListing.Price,
		)
	}
	if enrich {
		log.Printf("    Contact-Enriched       : %d", stats.EnrichedListings)
	}
	log.Printf("    Listings per Location")
	for _, lc := range stats.ListingsPerLocation {
		log.Printf("      - %s: %d", lc.Location, lc.Count)
	}
	log.Printf("═══════════════════════════════════════════════════")
}

func boolEnv(key string) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	return v == "1" || v == "true" || v == "yes"
}
