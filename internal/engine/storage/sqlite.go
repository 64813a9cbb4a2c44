package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/averix/trustscan/internal/model"
)

// Store persists one run's unique businesses to a SQLite file so they can
// be re-exported later. It is per-run output, not a cross-run cache.
type Store struct {
	db *sql.DB
	mu sync.Mutex
}

func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	if err := createSchema(db); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

func createSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS businesses (
		id TEXT PRIMARY KEY,
		domain TEXT,
		name TEXT,
		rating_value TEXT,
		review_count INTEGER,
		description TEXT,
		image TEXT,
		country TEXT,
		address TEXT,
		city TEXT,
		zip_code TEXT,
		website TEXT,
		email TEXT,
		phone TEXT,
		categories TEXT,
		categories_id TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_businesses_domain ON businesses(domain);
	CREATE INDEX IF NOT EXISTS idx_businesses_country ON businesses(country);
	CREATE INDEX IF NOT EXISTS idx_businesses_rating ON businesses(rating_value);
	`
	_, err := db.Exec(schema)
	if err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return nil
}

// InsertBatch writes businesses in one transaction, ignoring ids already
// present. Returns how many rows were actually inserted.
func (s *Store) InsertBatch(businesses []model.Business) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("beginning tx: %w", err)
	}

	stmt, err := tx.Prepare(`
		INSERT OR IGNORE INTO businesses
		(id, domain, name, rating_value, review_count, description, image,
		 country, address, city, zip_code, website, email, phone,
		 categories, categories_id)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
	`)
	if err != nil {
		tx.Rollback()
		return 0, fmt.Errorf("preparing stmt: %w", err)
	}
	defer stmt.Close()

	inserted := 0
	for _, b := range businesses {
		res, err := stmt.Exec(
			b.ID, b.Domain, b.Name, b.RatingValue, b.ReviewCount,
			b.Description, b.Image, b.Country, b.Address, b.City,
			b.ZipCode, b.Website, b.Email, b.Phone,
			strings.Join(b.Categories, ","), strings.Join(b.CategoriesID, ","),
		)
		if err != nil {
			continue
		}
		n, _ := res.RowsAffected()
		inserted += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("committing tx: %w", err)
	}

	return inserted, nil
}

// LoadAll returns every stored business ordered by name, for export.
func (s *Store) LoadAll() ([]model.Business, error) {
	rows, err := s.db.Query(`
		SELECT id, domain, name, rating_value, review_count, description,
		       image, country, address, city, zip_code, website, email,
		       phone, categories, categories_id
		FROM businesses ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var businesses []model.Business
	for rows.Next() {
		var b model.Business
		var cats, catIDs string
		err := rows.Scan(
			&b.ID, &b.Domain, &b.Name, &b.RatingValue, &b.ReviewCount,
			&b.Description, &b.Image, &b.Country, &b.Address, &b.City,
			&b.ZipCode, &b.Website, &b.Email, &b.Phone, &cats, &catIDs,
		)
		if err != nil {
			continue
		}
		if cats != "" {
			b.Categories = strings.Split(cats, ",")
		}
		if catIDs != "" {
			b.CategoriesID = strings.Split(catIDs, ",")
		}
		businesses = append(businesses, b)
	}
	return businesses, rows.Err()
}

func (s *Store) Count() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM businesses").Scan(&count)
	return count, err
}

func (s *Store) Close() error {
	return s.db.Close()
}
