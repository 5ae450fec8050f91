package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"voyago/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
)

// DB wraps the sqlite handle together with the in-memory resource catalog.
// Resources are static configuration; everything else lives in tables.
type DB struct {
	*sql.DB
	logger *zerolog.Logger

	mu        sync.RWMutex
	resources map[int64]models.Resource
}

func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("path", path).Msg("database initialized")
	return &DB{DB: db, logger: logger, resources: make(map[int64]models.Resource)}, nil
}

func createTables(db *sql.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            requester_id INTEGER NOT NULL,
            requester_name TEXT NOT NULL,
            phone TEXT,
            resource_id INTEGER NOT NULL,
            resource_type TEXT NOT NULL,
            resource_name TEXT NOT NULL,
            date TEXT,
            check_in TEXT,
            check_out TEXT,
            quantity INTEGER NOT NULL,
            seats TEXT,
            original_amount REAL NOT NULL DEFAULT 0,
            discount_amount REAL NOT NULL DEFAULT 0,
            final_amount REAL NOT NULL DEFAULT 0,
            refund_amount REAL NOT NULL DEFAULT 0,
            coupon_code TEXT,
            coupon_id INTEGER,
            reservation_id TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            payment_status TEXT NOT NULL DEFAULT 'unpaid',
            comment TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            version INTEGER NOT NULL DEFAULT 1
        )`,
		`CREATE TABLE IF NOT EXISTS reservations (
            id TEXT PRIMARY KEY,
            resource_id INTEGER NOT NULL,
            resource_type TEXT NOT NULL,
            date TEXT,
            check_in TEXT,
            check_out TEXT,
            quantity INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'active',
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            released_at DATETIME
        )`,
		`CREATE TABLE IF NOT EXISTS reservation_seats (
            reservation_id TEXT NOT NULL,
            resource_id INTEGER NOT NULL,
            date TEXT NOT NULL,
            seat TEXT NOT NULL,
            UNIQUE(resource_id, date, seat)
        )`,
		`CREATE TABLE IF NOT EXISTS coupons (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            code TEXT UNIQUE NOT NULL,
            discount_type TEXT NOT NULL,
            value REAL NOT NULL,
            max_discount_amount REAL NOT NULL DEFAULT 0,
            min_order_amount REAL NOT NULL DEFAULT 0,
            service_types TEXT NOT NULL,
            valid_from DATETIME NOT NULL,
            valid_to DATETIME NOT NULL,
            usage_limit INTEGER NOT NULL DEFAULT 0,
            used_count INTEGER NOT NULL DEFAULT 0,
            is_active BOOLEAN NOT NULL DEFAULT 1,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS coupon_redemptions (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            coupon_id INTEGER NOT NULL,
            user_id INTEGER NOT NULL,
            booking_id INTEGER NOT NULL,
            redeemed_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            UNIQUE(coupon_id, user_id)
        )`,
		`CREATE TABLE IF NOT EXISTS memberships (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            tour_id INTEGER NOT NULL,
            user_id INTEGER NOT NULL,
            status TEXT NOT NULL DEFAULT 'pending',
            message TEXT,
            requested_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            decided_at DATETIME,
            UNIQUE(tour_id, user_id)
        )`,
		`CREATE TABLE IF NOT EXISTS sync_queue (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            task_type TEXT NOT NULL,
            booking_id INTEGER NOT NULL,
            payload TEXT,
            status TEXT NOT NULL DEFAULT 'pending',
            retry_count INTEGER NOT NULL DEFAULT 0,
            last_error TEXT,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
            processed_at DATETIME,
            next_retry_at DATETIME
        )`,

		`CREATE INDEX IF NOT EXISTS idx_bookings_requester ON bookings(requester_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_resource ON bookings(resource_id)`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_status ON bookings(status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_resource ON reservations(resource_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_reservations_date ON reservations(date)`,
		`CREATE INDEX IF NOT EXISTS idx_redemptions_coupon ON coupon_redemptions(coupon_id)`,
		`CREATE INDEX IF NOT EXISTS idx_memberships_tour ON memberships(tour_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_sync_queue_status ON sync_queue(status)`,
	}

	for _, query := range queries {
		if _, err := db.Exec(query); err != nil {
			return fmt.Errorf("error executing query %s: %w", query, err)
		}
	}
	return nil
}

// SetResources replaces the in-memory resource catalog.
func (db *DB) SetResources(resources []models.Resource) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.resources = make(map[int64]models.Resource, len(resources))
	for _, r := range resources {
		db.resources[r.ID] = r
	}
}

// GetResource returns a catalog entry by id.
func (db *DB) GetResource(id int64) (*models.Resource, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	r, ok := db.resources[id]
	if !ok {
		return nil, ErrResourceNotFound
	}
	return &r, nil
}

// GetResources returns all catalog entries sorted by sort order.
func (db *DB) GetResources() []models.Resource {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]models.Resource, 0, len(db.resources))
	for _, r := range db.resources {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SortOrder == out[j].SortOrder {
			return out[i].ID < out[j].ID
		}
		return out[i].SortOrder < out[j].SortOrder
	})
	return out
}

// GetActiveResources returns active catalog entries, optionally filtered by type.
func (db *DB) GetActiveResources(resourceType string) []models.Resource {
	all := db.GetResources()
	out := make([]models.Resource, 0, len(all))
	for _, r := range all {
		if !r.IsActive {
			continue
		}
		if resourceType != "" && r.Type != resourceType {
			continue
		}
		out = append(out, r)
	}
	return out
}
