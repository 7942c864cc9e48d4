package storage

import (
	"encoding/json"
	"os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

var cookieJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// AuthCookieNames are the token cookies whose presence marks a session as
// authenticated.
var AuthCookieNames = []string{
	"kc_access_token",
	"kc_refresh_token",
	"kc_id_token",
	"hb-session-id",
}

// Cookie is one persisted browser cookie. Fields beyond the four known ones
// are opaque: they survive a load/save round trip unchanged.
type Cookie struct {
	Name   string
	Value  string
	Domain string
	Path   string

	raw map[string]json.RawMessage
}

func (c *Cookie) UnmarshalJSON(data []byte) error {
	var m map[string]json.RawMessage
	if err := cookieJSON.Unmarshal(data, &m); err != nil {
		return err
	}
	c.raw = m
	getString := func(key string) string {
		var s string
		if v, ok := m[key]; ok {
			_ = cookieJSON.Unmarshal(v, &s)
		}
		return s
	}
	c.Name = getString("name")
	c.Value = getString("value")
	c.Domain = getString("domain")
	c.Path = getString("path")
	return nil
}

func (c Cookie) MarshalJSON() ([]byte, error) {
	m := make(map[string]json.RawMessage, len(c.raw)+4)
	for k, v := range c.raw {
		m[k] = v
	}
	setString := func(key, val string) error {
		b, err := cookieJSON.Marshal(val)
		if err != nil {
			return err
		}
		m[key] = b
		return nil
	}
	for key, val := range map[string]string{
		"name": c.Name, "value": c.Value, "domain": c.Domain, "path": c.Path,
	} {
		if err := setString(key, val); err != nil {
			return nil, err
		}
	}
	return cookieJSON.Marshal(m)
}

// CookieSession is the persisted cookie set plus the time it was captured.
type CookieSession struct {
	SavedAt time.Time `json:"saved_at"`
	Cookies []Cookie  `json:"cookies"`
}

// HasAuthCookies reports whether at least one authentication-token cookie
// with a non-empty value is present.
func (s *CookieSession) HasAuthCookies() bool {
	if s == nil {
		return false
	}
	for _, c := range s.Cookies {
		if c.Value == "" {
			continue
		}
		for _, name := range AuthCookieNames {
			if c.Name == name {
				return true
			}
		}
	}
	return false
}

// CookieStore persists one cookie session to a JSON file with a fixed TTL.
// Reads and writes happen at most once per enrichment run from a single
// coordinating goroutine, so no locking is needed.
type CookieStore struct {
	Path string
	TTL  time.Duration

	log *zap.Logger
	now func() time.Time
}

// NewCookieStore builds a store over the given file path.
func NewCookieStore(path string, ttl time.Duration, logger *zap.Logger) *CookieStore {
	return &CookieStore{
		Path: path,
		TTL:  ttl,
		log:  logger.Named("cookies"),
		now:  time.Now,
	}
}

// Save writes the cookie set with the current timestamp.
func (s *CookieStore) Save(cookies []Cookie) error {
	data, err := cookieJSON.MarshalIndent(CookieSession{
		SavedAt: s.now(),
		Cookies: cookies,
	}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.Path, data, 0o600)
}

// Load returns the persisted session, or nil when the file is missing,
// unreadable, corrupt, or older than the TTL. Expired and corrupt files are
// deleted; corruption is absence, never a fatal error.
func (s *CookieStore) Load() *CookieSession {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil
	}

	var sess CookieSession
	if err := cookieJSON.Unmarshal(data, &sess); err != nil {
		s.log.Debug("cookie file unreadable, deleting", zap.Error(err))
		s.Delete()
		return nil
	}

	if s.now().Sub(sess.SavedAt) > s.TTL {
		s.log.Debug("cookie file expired, deleting",
			zap.Time("saved_at", sess.SavedAt))
		s.Delete()
		return nil
	}

	if len(sess.Cookies) == 0 {
		return nil
	}
	return &sess
}

// Delete removes the persisted cookie file if present.
func (s *CookieStore) Delete() {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		s.log.Warn("failed to delete cookie file", zap.Error(err))
	}
}
