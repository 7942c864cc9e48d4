package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/muteekhan06/olx-scraper-auto/config"
	"github.com/muteekhan06/olx-scraper-auto/models"
	"github.com/muteekhan06/olx-scraper-auto/scraper"
	"github.com/muteekhan06/olx-scraper-auto/storage"
	"github.com/muteekhan06/olx-scraper-auto/utils"
)

var contactJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrLoginTimeout means no authenticated session appeared within the login
// window. The enrichment phase cannot proceed without one.
var ErrLoginTimeout = errors.New("login not detected before the timeout")

const (
	contactRetries     = 3
	contactBackoffStep = 1200 * time.Millisecond
)

// ContactClient fetches seller contact details from the site's internal API
// using the auth cookies of a logged-in browser session. Requests run
// sequentially through a rate limiter; the browser session, when one exists,
// is kept alive for cookie refresh and occasional light browsing.
type ContactClient struct {
	cfg   config.Config
	pool  *utils.SessionPool
	store *storage.CookieStore
	log   *zap.Logger

	apiBase string
	httpc   *http.Client
	limiter *rate.Limiter

	browser *utils.Session

	// Seams for tests.
	sleep          func(time.Duration)
	refreshCookies func() error
}

// NewContactClient builds a client bound to the given session pool and cookie
// store. The HTTP client is created lazily when a session is established.
func NewContactClient(cfg config.Config, pool *utils.SessionPool, store *storage.CookieStore, logger *zap.Logger) *ContactClient {
	c := &ContactClient{
		cfg:     cfg,
		pool:    pool,
		store:   store,
		log:     logger.Named("contacts"),
		apiBase: strings.TrimRight(cfg.ContactAPIBase, "/"),
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
		sleep:   time.Sleep,
	}
	c.refreshCookies = c.refreshFromBrowser
	return c
}

// Enrich fetches contact info for every listing with a resolvable ad id and
// merges the API fields into a copy of the input. Scraped fields always win
// over contact fields; excluded keys are never merged. The input slice is not
// modified.
func (c *ContactClient) Enrich(ctx context.Context, listings []models.ListingDetail, progress models.ProgressFunc) ([]models.ListingDetail, error) {
	out := make([]models.ListingDetail, len(listings))
	copy(out, listings)

	// One fetch per distinct ad id; the first listing carrying the id
	// receives the merge.
	var ids []string
	target := make(map[string]int)
	for i, d := range out {
		id := resolveAdID(d)
		if id == "" {
			continue
		}
		if _, seen := target[id]; !seen {
			target[id] = i
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		progress.Emit("no ad ids to enrich, skipping contact phase")
		return out, nil
	}

	if c.httpc == nil {
		if err := c.ensureSession(ctx, progress); err != nil {
			return out, err
		}
	}
	defer func() {
		if c.browser != nil {
			c.browser.Close()
			c.browser = nil
		}
	}()

	progress.Emit("fetching contact info for %d listings...", len(ids))

	var enriched, failed int
	nextBrowse := browseInterval()
	for n, id := range ids {
		if err := c.limiter.Wait(ctx); err != nil {
			return out, err
		}

		payload, err := c.fetchWithRetry(ctx, id)
		if err != nil {
			c.log.Warn("contact fetch failed", zap.String("ad_id", id), zap.Error(err))
			failed++
		} else if merged := c.merge(&out[target[id]], payload); merged > 0 {
			enriched++
		}

		if (n+1)%10 == 0 {
			progress.Emit("contacts: %d/%d fetched", n+1, len(ids))
		}

		if n+1 == len(ids) {
			break
		}
		if c.browser != nil && n+1 >= nextBrowse {
			c.lightBrowse()
			nextBrowse = n + 1 + browseInterval()
		}
		if c.cfg.LongPauseEvery > 0 && (n+1)%c.cfg.LongPauseEvery == 0 {
			c.sleep(c.cfg.LongPause())
		} else {
			c.sleep(c.cfg.RequestDelay())
		}
	}

	progress.Emit("contact phase done: %d enriched, %d failed", enriched, failed)
	return out, nil
}

// resolveAdID prefers the explicit id and falls back to deriving one from the
// listing URL.
func resolveAdID(d models.ListingDetail) string {
	if d.AdID != "" {
		return d.AdID
	}
	return scraper.AdIDFromLink(d.Link)
}

// ensureSession establishes an authenticated HTTP client: first from
// persisted cookies, then via an interactive browser login.
func (c *ContactClient) ensureSession(ctx context.Context, progress models.ProgressFunc) error {
	if sess := c.store.Load(); sess.HasAuthCookies() {
		jar, err := c.jarFromStored(sess.Cookies)
		if err == nil {
			httpc := &http.Client{Jar: jar, Timeout: 20 * time.Second}
			if c.probe(ctx, httpc) == nil {
				progress.Emit("reusing saved login session")
				c.httpc = httpc
				return nil
			}
			c.log.Info("saved cookies rejected by the API, deleting")
		}
		c.store.Delete()
	}

	return c.interactiveLogin(ctx, progress)
}

// interactiveLogin opens a visible browser on the site and polls its cookies
// until the auth tokens appear or the login window closes. On success the
// browser stays open for the enrichment phase.
func (c *ContactClient) interactiveLogin(ctx context.Context, progress models.ProgressFunc) error {
	s, err := c.pool.NewSession(ctx, false)
	if err != nil {
		return fmt.Errorf("login browser: %w", err)
	}

	if err := s.Run(chromedp.Navigate(c.cfg.SiteURL)); err != nil {
		s.Close()
		return fmt.Errorf("open %s for login: %w", c.cfg.SiteURL, err)
	}
	progress.Emit("please log in within %s...", c.cfg.LoginTimeout)

	deadline := time.Now().Add(c.cfg.LoginTimeout)
	for poll := 0; ; poll++ {
		cookies, err := s.Cookies()
		if err == nil {
			stored := storedFromBrowser(cookies)
			sess := storage.CookieSession{Cookies: stored}
			if sess.HasAuthCookies() {
				if err := c.store.Save(stored); err != nil {
					c.log.Warn("failed to persist cookies", zap.Error(err))
				}
				jar, err := c.jarFromStored(stored)
				if err != nil {
					s.Close()
					return fmt.Errorf("build cookie jar: %w", err)
				}
				c.httpc = &http.Client{Jar: jar, Timeout: 20 * time.Second}
				c.browser = s
				progress.Emit("login detected, cookies saved")
				return nil
			}
		}

		if time.Now().After(deadline) {
			s.Close()
			return ErrLoginTimeout
		}

		// Poke around a little so the session looks alive while waiting.
		if poll > 0 && poll%10 == 0 {
			c.browseSession(s)
		}
		c.sleep(2 * time.Second)
	}
}

// probe checks whether the jar's cookies are still accepted by the API.
func (c *ContactClient) probe(ctx context.Context, httpc *http.Client) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiBase+"/api/user/", nil)
	if err != nil {
		return err
	}
	c.setHeaders(req, c.apiBase)

	resp, err := httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusNotModified {
		return nil
	}
	return fmt.Errorf("session probe rejected: %s", resp.Status)
}

// fetchWithRetry requests one ad's contact info with up to contactRetries
// attempts. 304 counts as success with nothing new; 401/403 triggers a cookie
// refresh (or cache invalidation when no browser is live); 429 adds an extra
// fixed pause. Backoff between attempts grows linearly.
func (c *ContactClient) fetchWithRetry(ctx context.Context, adID string) (map[string]any, error) {
	var lastErr error
	for attempt := 1; attempt <= contactRetries; attempt++ {
		payload, status, err := c.fetchContact(ctx, adID)
		switch {
		case err != nil:
			lastErr = err
		case status == http.StatusOK:
			return payload, nil
		case status == http.StatusNotModified:
			return nil, nil
		case status == http.StatusUnauthorized || status == http.StatusForbidden:
			lastErr = fmt.Errorf("contact API auth rejected: %d", status)
			if c.browser != nil {
				if err := c.refreshCookies(); err != nil {
					c.log.Warn("cookie refresh failed", zap.Error(err))
				}
			} else {
				c.store.Delete()
			}
		case status == http.StatusTooManyRequests:
			lastErr = fmt.Errorf("contact API throttled: %d", status)
			c.sleep(c.cfg.RetryPause)
		default:
			lastErr = fmt.Errorf("contact API status %d", status)
		}

		if attempt < contactRetries {
			c.sleep(time.Duration(attempt) * contactBackoffStep)
		}
	}
	return nil, fmt.Errorf("ad %s: %w", adID, lastErr)
}

// fetchContact performs one API request. A non-2xx status is not a transport
// error; the caller decides what each status means.
func (c *ContactClient) fetchContact(ctx context.Context, adID string) (map[string]any, int, error) {
	reqURL := fmt.Sprintf("%s/api/listing/%s/contactInfo/", c.apiBase, adID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, err
	}
	c.setHeaders(req, fmt.Sprintf("%s/item/iid-%s", c.apiBase, adID))

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, resp.StatusCode, nil
	}

	var payload map[string]any
	if err := contactJSON.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, resp.StatusCode, fmt.Errorf("decode contact payload: %w", err)
	}
	return payload, resp.StatusCode, nil
}

func (c *ContactClient) setHeaders(req *http.Request, referer string) {
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", referer)
}

// merge copies payload fields into the listing, skipping excluded keys and
// anything the listing already carries. Returns the number of fields added.
func (c *ContactClient) merge(d *models.ListingDetail, payload map[string]any) int {
	var added int
	for key, value := range payload {
		if c.cfg.IsExcluded(key) || d.HasField(key) {
			continue
		}
		if s := contactValue(value); s != "" {
			d.SetContact(key, s)
			added++
		}
	}
	return added
}

// contactValue renders an API value as a flat string. Lists join their string
// elements; nested objects are kept as compact JSON.
func contactValue(v any) string {
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val)
	case bool:
		return strconv.FormatBool(val)
	case float64:
		b, err := contactJSON.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	case []any:
		var parts []string
		for _, item := range val {
			if s := contactValue(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		b, err := contactJSON.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
	return ""
}

// refreshFromBrowser re-reads cookies from the live browser, persists them,
// and swaps a fresh jar into the HTTP client.
func (c *ContactClient) refreshFromBrowser() error {
	if c.browser == nil {
		return errors.New("no live browser session")
	}
	cookies, err := c.browser.Cookies()
	if err != nil {
		return err
	}
	stored := storedFromBrowser(cookies)
	if err := c.store.Save(stored); err != nil {
		c.log.Warn("failed to persist refreshed cookies", zap.Error(err))
	}
	jar, err := c.jarFromStored(stored)
	if err != nil {
		return err
	}
	c.httpc.Jar = jar
	return nil
}

// lightBrowse scrolls around the open page so the session does not sit
// perfectly idle between API bursts. Errors are ignored.
func (c *ContactClient) lightBrowse() {
	if c.browser == nil {
		return
	}
	c.browseSession(c.browser)
}

func (c *ContactClient) browseSession(s *utils.Session) {
	_ = s.Run(
		chromedp.Evaluate(`window.scrollBy(0, 400 + Math.random()*800)`, nil),
		chromedp.Sleep(c.cfg.Jitter()),
		chromedp.Evaluate(`window.scrollTo(0, 0)`, nil),
	)
}

// browseInterval returns how many API requests to make before the next round
// of light browsing.
func browseInterval() int {
	return 8 + rand.Intn(5)
}

func (c *ContactClient) jarFromStored(cookies []storage.Cookie) (http.CookieJar, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(c.apiBase)
	if err != nil {
		return nil, err
	}
	hc := make([]*http.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		if ck.Name == "" {
			continue
		}
		path := ck.Path
		if path == "" {
			path = "/"
		}
		hc = append(hc, &http.Cookie{Name: ck.Name, Value: ck.Value, Path: path})
	}
	jar.SetCookies(u, hc)
	return jar, nil
}

func storedFromBrowser(cookies []*network.Cookie) []storage.Cookie {
	out := make([]storage.Cookie, 0, len(cookies))
	for _, ck := range cookies {
		out = append(out, storage.Cookie{
			Name:   ck.Name,
			Value:  ck.Value,
			Domain: ck.Domain,
			Path:   ck.Path,
		})
	}
	return out
}
