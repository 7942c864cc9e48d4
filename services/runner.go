package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/muteekhan06/olx-scraper-auto/config"
	"github.com/muteekhan06/olx-scraper-auto/models"
	"github.com/muteekhan06/olx-scraper-auto/scraper"
	"github.com/muteekhan06/olx-scraper-auto/utils"
)

// Runner drives the two-phase crawl: list-page discovery per location, then
// detail extraction across a bounded worker pool. Locations are processed one
// at a time; detail extraction within a location is the sole concurrency
// point.
type Runner struct {
	cfg  config.Config
	pool *utils.SessionPool
	log  *zap.Logger

	// Seams for tests; production wiring points at the session pool and the
	// scraper package.
	newSession func(ctx context.Context, headless bool) (*utils.Session, error)
	discover   func(s *utils.Session, url string, maxItems int, progress models.ProgressFunc) ([]models.ListingBasic, error)
	extract    func(s *utils.Session, url string) (models.ListingDetail, error)
}

// NewRunner builds a Runner bound to the given session pool.
func NewRunner(cfg config.Config, pool *utils.SessionPool, logger *zap.Logger) *Runner {
	r := &Runner{
		cfg:  cfg,
		pool: pool,
		log:  logger.Named("runner"),
	}
	r.newSession = pool.NewSession
	r.discover = func(s *utils.Session, url string, maxItems int, progress models.ProgressFunc) ([]models.ListingBasic, error) {
		return scraper.DiscoverListPage(s, cfg, url, maxItems, progress)
	}
	r.extract = func(s *utils.Session, url string) (models.ListingDetail, error) {
		return scraper.ExtractDetail(s, cfg, url)
	}
	return r
}

// Run crawls every given location sequentially and returns per-location
// results in location order. Detail records within a location arrive in
// completion order and are not re-sorted.
func (r *Runner) Run(ctx context.Context, locations []config.LocationConfig, progress models.ProgressFunc) ([]models.LocationResult, error) {
	results := make([]models.LocationResult, 0, len(locations))

	for i, loc := range locations {
		if !loc.Enabled {
			continue
		}

		res := models.LocationResult{Key: loc.Key, Name: loc.Name, Index: i}
		progress.Emit("[%s] starting discovery", loc.Name)

		basics, err := r.discoverLocation(ctx, loc, progress)
		if err != nil {
			res.Err = err
			results = append(results, res)
			progress.Emit("[%s] discovery failed: %v", loc.Name, err)
			if isPhaseFatal(err) {
				return results, err
			}
			continue
		}

		if len(basics) == 0 {
			progress.Emit("[%s] no listings found", loc.Name)
			results = append(results, res)
			continue
		}

		progress.Emit("[%s] collected %d listings, fetching details...", loc.Name, len(basics))
		res.Listings = r.extractDetails(ctx, loc, basics, progress)
		progress.Emit("[%s] done: %d detail records", loc.Name, len(res.Listings))
		results = append(results, res)
	}

	return results, nil
}

// discoverLocation pages through one location's search results on a single
// session, stopping on an empty page or the listing cap.
func (r *Runner) discoverLocation(ctx context.Context, loc config.LocationConfig, progress models.ProgressFunc) ([]models.ListingBasic, error) {
	s, err := r.newSession(ctx, r.cfg.Headless)
	if err != nil {
		return nil, fmt.Errorf("discovery session for %s: %w", loc.Key, err)
	}
	defer s.Close()

	var all []models.ListingBasic
	for page := 1; page <= r.cfg.MaxPages; page++ {
		pageURL := loc.SeedURL
		if page > 1 {
			pageURL = fmt.Sprintf("%s?page=%d", loc.SeedURL, page)
		}
		progress.Emit("[%s] page %d/%d", loc.Name, page, r.cfg.MaxPages)

		basics, err := r.discover(s, pageURL, r.cfg.MaxItemsPerPage, progress)
		if err != nil {
			// A broken page stops pagination but keeps what was found.
			r.log.Warn("list page failed",
				zap.String("location", loc.Key),
				zap.Int("page", page),
				zap.Error(err))
			progress.Emit("[%s] page %d failed: %v", loc.Name, page, err)
			break
		}
		if len(basics) == 0 {
			progress.Emit("[%s] no items on page %d, stopping", loc.Name, page)
			break
		}

		all = append(all, basics...)
		if len(all) >= r.cfg.MaxListings {
			all = all[:r.cfg.MaxListings]
			break
		}

		if page < r.cfg.MaxPages {
			time.Sleep(r.cfg.RequestDelay())
		}
	}

	return all, nil
}

type detailJob struct {
	index int
	basic models.ListingBasic
}

// extractDetails fans the basic records out over a bounded pool of workers.
// Each worker lazily creates one browser session on first use and owns it
// exclusively until its jobs run out. Results are collected in completion
// order.
func (r *Runner) extractDetails(ctx context.Context, loc config.LocationConfig, basics []models.ListingBasic, progress models.ProgressFunc) []models.ListingDetail {
	workers := r.cfg.DetailWorkers
	if workers <= 0 {
		workers = 1
	}
	if workers > len(basics) {
		workers = len(basics)
	}

	jobs := make(chan detailJob)
	results := make(chan models.ListingDetail, len(basics))
	var failures atomic.Int64

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			var s *utils.Session
			defer func() {
				if s != nil {
					s.Close()
				}
			}()

			for job := range jobs {
				if s == nil {
					var err error
					s, err = r.newSession(ctx, r.cfg.Headless)
					if err != nil {
						// This worker cannot extract; emit link-only
						// records so the batch keeps its shape.
						r.log.Warn("worker session creation failed", zap.Error(err))
						failures.Add(1)
						results <- r.tag(loc, models.Merge(job.basic, models.ListingDetail{Link: job.basic.Link}))
						continue
					}
				}

				detail, err := r.extract(s, job.basic.Link)
				if err != nil {
					r.log.Warn("detail extraction failed",
						zap.String("link", job.basic.Link),
						zap.Error(err))
					progress.Emit("[%s] detail failed: %s", loc.Name, job.basic.Link)
					failures.Add(1)
					detail = models.ListingDetail{Link: job.basic.Link}
				}

				results <- r.tag(loc, models.Merge(job.basic, detail))

				// Human pacing: a short pause normally, a longer rest
				// every Nth item.
				if r.cfg.LongPauseEvery > 0 && (job.index+1)%r.cfg.LongPauseEvery == 0 {
					time.Sleep(r.cfg.LongPause())
				} else {
					time.Sleep(r.cfg.RequestDelay())
				}
			}
		}()
	}

	go func() {
		for i, basic := range basics {
			jobs <- detailJob{index: i, basic: basic}
		}
		close(jobs)
		wg.Wait()
		close(results)
	}()

	out := make([]models.ListingDetail, 0, len(basics))
	for detail := range results {
		out = append(out, detail)
		if len(out)%5 == 0 {
			progress.Emit("[%s] processed %d/%d listings...", loc.Name, len(out), len(basics))
		}
	}

	if n := failures.Load(); n > 0 {
		progress.Emit("[%s] %d listings failed detail extraction", loc.Name, n)
	}
	return out
}

func (r *Runner) tag(loc config.LocationConfig, d models.ListingDetail) models.ListingDetail {
	d.LocationKey = loc.Key
	d.LocationName = loc.Name
	return d
}

func isPhaseFatal(err error) bool {
	return errors.Is(err, utils.ErrSessionCreation)
}
