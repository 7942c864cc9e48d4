package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/muteekhan06/olx-scraper-auto/config"
	"github.com/muteekhan06/olx-scraper-auto/models"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(cfg config.Config) (*PostgresStore, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.DBHost,
		cfg.DBPort,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBSSLMode,
	)

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}

	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	store := &PostgresStore{db: db}
	schemaCtx, schemaCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer schemaCancel()
	if err := store.ensureSchema(schemaCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// SaveListings upserts the final record set keyed by link. Returns the
// number of rows written.
func (s *PostgresStore) SaveListings(ctx context.Context, listings []models.ListingDetail) (int, error) {
	if len(listings) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO listings (
			ad_id, title, price, location, description, link, images,
			seller_name, seller_since, seller_profile, specs, contact,
			location_key, location_name
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (link) DO UPDATE
		SET
			ad_id = EXCLUDED.ad_id,
			title = EXCLUDED.title,
			price = EXCLUDED.price,
			location = EXCLUDED.location,
			description = EXCLUDED.description,
			images = EXCLUDED.images,
			seller_name = EXCLUDED.seller_name,
			seller_since = EXCLUDED.seller_since,
			seller_profile = EXCLUDED.seller_profile,
			specs = EXCLUDED.specs,
			contact = EXCLUDED.contact,
			location_key = EXCLUDED.location_key,
			location_name = EXCLUDED.location_name,
			updated_at = NOW()`)
	if err != nil {
		return 0, fmt.Errorf("prepare insert statement: %w", err)
	}
	defer stmt.Close()

	total := 0
	for _, l := range listings {
		if l.Link == "" {
			continue
		}

		specs, merr := json.Marshal(orEmptyMap(l.Specs))
		if merr != nil {
			err = fmt.Errorf("marshal specs for %q: %w", l.Link, merr)
			return 0, err
		}
		contact, merr := json.Marshal(orEmptyMap(l.Contact))
		if merr != nil {
			err = fmt.Errorf("marshal contact for %q: %w", l.Link, merr)
			return 0, err
		}

		if _, err = stmt.ExecContext(
			ctx,
			l.AdID,
			l.Title,
			l.Price,
			l.Location,
			l.Description,
			l.Link,
			pgTextArray(l.Images),
			l.SellerName,
			l.SellerSince,
			l.SellerProfile,
			specs,
			contact,
			l.LocationKey,
			l.LocationName,
		); err != nil {
			return 0, fmt.Errorf("insert listing %q: %w", l.Link, err)
		}
		total++
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	return total, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS listings (
			id BIGSERIAL PRIMARY KEY,
			ad_id TEXT NOT NULL DEFAULT '',
			title TEXT NOT NULL DEFAULT '',
			price TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			link TEXT NOT NULL UNIQUE,
			images TEXT[] NOT NULL DEFAULT '{}',
			seller_name TEXT NOT NULL DEFAULT '',
			seller_since TEXT NOT NULL DEFAULT '',
			seller_profile TEXT NOT NULL DEFAULT '',
			specs JSONB NOT NULL DEFAULT '{}',
			contact JSONB NOT NULL DEFAULT '{}',
			location_key TEXT NOT NULL DEFAULT '',
			location_name TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_listings_location_key ON listings(location_key);
		CREATE INDEX IF NOT EXISTS idx_listings_ad_id ON listings(ad_id);
	`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func orEmptyMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

// pgTextArray renders a []string as a postgres text[] literal, quoting each
// element. Image URLs never contain the characters that need escaping beyond
// backslash and double quote.
func pgTextArray(items []string) string {
	if len(items) == 0 {
		return "{}"
	}
	out := "{"
	for i, item := range items {
		if i > 0 {
			out += ","
		}
		escaped := ""
		for _, r := range item {
			if r == '\\' || r == '"' {
				escaped += "\\"
			}
			escaped += string(r)
		}
		out += `"` + escaped + `"`
	}
	return out + "}"
}
