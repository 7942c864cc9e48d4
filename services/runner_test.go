package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/muteekhan06/olx-scraper-auto/config"
	"github.com/muteekhan06/olx-scraper-auto/models"
	"github.com/muteekhan06/olx-scraper-auto/utils"
)

func testConfig() config.Config {
	cfg := config.Default()
	cfg.MaxPages = 2
	cfg.MaxListings = 3
	cfg.MaxItemsPerPage = 2
	cfg.DetailWorkers = 1
	cfg.MinDelay = 0
	cfg.MaxDelay = 0
	cfg.LongPauseMin = 0
	cfg.LongPauseMax = 0
	cfg.RetryPause = 0
	return cfg
}

func testLocations() []config.LocationConfig {
	return []config.LocationConfig{
		{Key: "lahore", Name: "Lahore", SeedURL: "https://example.test/lahore/cars", Enabled: true},
		{Key: "karachi", Name: "Karachi", SeedURL: "https://example.test/karachi/cars", Enabled: true},
	}
}

func fakeBasics(seed string, page, n int) []models.ListingBasic {
	out := make([]models.ListingBasic, n)
	for i := range out {
		out[i] = models.ListingBasic{
			Title: fmt.Sprintf("Car p%d-%d", page, i),
			Link:  fmt.Sprintf("%s/item/car-iid-%d%d", seed, page, i),
			Price: "PKR 100",
		}
	}
	return out
}

func newTestRunner(cfg config.Config) *Runner {
	r := &Runner{cfg: cfg, log: zap.NewNop()}
	r.newSession = func(ctx context.Context, headless bool) (*utils.Session, error) {
		return &utils.Session{}, nil
	}
	return r
}

func TestRunnerCrawlsEveryLocationAndCapsListings(t *testing.T) {
	cfg := testConfig()
	r := newTestRunner(cfg)
	r.discover = func(s *utils.Session, url string, maxItems int, progress models.ProgressFunc) ([]models.ListingBasic, error) {
		page := 1
		if strings.Contains(url, "?page=2") {
			page = 2
		}
		seed := strings.SplitN(url, "?", 2)[0]
		return fakeBasics(seed, page, maxItems), nil
	}
	r.extract = func(s *utils.Session, url string) (models.ListingDetail, error) {
		return models.ListingDetail{Link: url, Description: "from detail page"}, nil
	}

	results, err := r.Run(context.Background(), testLocations(), nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, res := range results {
		require.NoError(t, res.Err)
		assert.Len(t, res.Listings, cfg.MaxListings, "two pages of two capped at three")
		for _, l := range res.Listings {
			assert.Equal(t, res.Key, l.LocationKey)
			assert.Equal(t, res.Name, l.LocationName)
			assert.Equal(t, "from detail page", l.Description)
			assert.Equal(t, "PKR 100", l.Price, "card data fills detail gaps")
			assert.NotEmpty(t, l.Title)
		}
	}
}

func TestRunnerSkipsDisabledLocations(t *testing.T) {
	r := newTestRunner(testConfig())
	r.discover = func(s *utils.Session, url string, maxItems int, progress models.ProgressFunc) ([]models.ListingBasic, error) {
		return nil, nil
	}

	locs := testLocations()
	locs[1].Enabled = false

	results, err := r.Run(context.Background(), locs, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "lahore", results[0].Key)
}

func TestRunnerEmptyPageStopsPagination(t *testing.T) {
	var calls int
	r := newTestRunner(testConfig())
	r.discover = func(s *utils.Session, url string, maxItems int, progress models.ProgressFunc) ([]models.ListingBasic, error) {
		calls++
		if strings.Contains(url, "?page=") {
			return nil, nil
		}
		return fakeBasics("https://example.test", 1, 1), nil
	}
	r.extract = func(s *utils.Session, url string) (models.ListingDetail, error) {
		return models.ListingDetail{Link: url}, nil
	}

	locs := testLocations()[:1]
	results, err := r.Run(context.Background(), locs, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Listings, 1)
	assert.Equal(t, 2, calls, "page 2 came back empty, page 3 never requested")
}

func TestRunnerExtractFailureYieldsLinkOnlyRecord(t *testing.T) {
	r := newTestRunner(testConfig())
	r.discover = func(s *utils.Session, url string, maxItems int, progress models.ProgressFunc) ([]models.ListingBasic, error) {
		if strings.Contains(url, "?page=") {
			return nil, nil
		}
		return []models.ListingBasic{
			{Title: "Good", Link: "https://example.test/item/good-iid-1"},
			{Title: "Bad", Link: "https://example.test/item/bad-iid-2"},
		}, nil
	}
	r.extract = func(s *utils.Session, url string) (models.ListingDetail, error) {
		if strings.Contains(url, "bad") {
			return models.ListingDetail{}, errors.New("render timeout")
		}
		return models.ListingDetail{Link: url, Description: "ok"}, nil
	}

	results, err := r.Run(context.Background(), testLocations()[:1], nil)
	require.NoError(t, err)
	require.Len(t, results[0].Listings, 2, "a failed detail page still produces a record")

	byLink := make(map[string]models.ListingDetail)
	for _, l := range results[0].Listings {
		byLink[l.Link] = l
	}
	bad := byLink["https://example.test/item/bad-iid-2"]
	assert.Empty(t, bad.Description)
	assert.Equal(t, "Bad", bad.Title, "card fields survive the failure")
}

func TestRunnerSessionFailureIsFatal(t *testing.T) {
	r := newTestRunner(testConfig())
	r.newSession = func(ctx context.Context, headless bool) (*utils.Session, error) {
		return nil, fmt.Errorf("%w: no chrome binary", utils.ErrSessionCreation)
	}

	results, err := r.Run(context.Background(), testLocations(), nil)
	require.ErrorIs(t, err, utils.ErrSessionCreation)
	require.Len(t, results, 1, "the run aborts at the first location")
	assert.Error(t, results[0].Err)
}

func TestRunnerDiscoveryErrorIsRecordedNotFatal(t *testing.T) {
	r := newTestRunner(testConfig())
	r.discover = func(s *utils.Session, url string, maxItems int, progress models.ProgressFunc) ([]models.ListingBasic, error) {
		return nil, errors.New("selector drift")
	}

	results, err := r.Run(context.Background(), testLocations(), nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.NoError(t, res.Err)
		assert.Empty(t, res.Listings)
	}
}
