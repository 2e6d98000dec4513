// Package storage implements the authoritative fingerprint record
// store on SQLite. The store is the single source of truth; the
// similarity index reconciles against it and may be discarded at any
// time. Records are append-only: registration writes them once and
// nothing in this core ever mutates them.
package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/signetlabs/signet/pkg/models"
)

const DefaultDBFile = "signet.sqlite3"

var (
	errClientNil = errors.New("db client is nil")

	// ErrDuplicateFingerprint means the fingerprint is already
	// registered; uniqueness is enforced by the store.
	ErrDuplicateFingerprint = errors.New("fingerprint already registered")

	// ErrNotFound means no record matches the lookup.
	ErrNotFound = errors.New("record not found")
)

// Content is the persisted registry row.
type Content struct {
	ID          string `gorm:"primaryKey;type:varchar(36)"`
	Phash       string `gorm:"uniqueIndex:idx_phash;type:varchar(192);not null"`
	Publisher   string `gorm:"index:idx_publisher;not null"`
	Title       string
	Description string
	Timestamp   int64
	TxHash      string
	BlockNumber int64
	CreatedAt   time.Time
}

// Client wraps the gorm connection to the registry database.
type Client struct {
	DB *gorm.DB
	db *sql.DB
}

// NewClient opens the database at SIGNET_DB_PATH, or the default file.
func NewClient() (*Client, error) {
	dbPath := os.Getenv("SIGNET_DB_PATH")
	if dbPath == "" {
		dbPath = DefaultDBFile
	}
	return NewClientWithPath(dbPath)
}

func NewClientWithPath(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(dbPath+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}

	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&Content{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &Client{DB: db, db: sqlDB}, nil
}

func (c *Client) Close() error {
	if c == nil || c.db == nil {
		return nil
	}
	return c.db.Close()
}

// CreateContent persists a new registry record and returns it. A
// fingerprint collision returns ErrDuplicateFingerprint.
func (c *Client) CreateContent(fingerprint string, meta models.RecordMeta) (*models.Record, error) {
	if c == nil || c.DB == nil {
		return nil, errClientNil
	}

	row := Content{
		ID:          uuid.NewString(),
		Phash:       fingerprint,
		Publisher:   meta.Publisher,
		Title:       meta.Title,
		Description: meta.Description,
		Timestamp:   meta.Timestamp,
		TxHash:      meta.TxHash,
		BlockNumber: meta.BlockNumber,
	}

	if err := c.DB.Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) ||
			strings.Contains(err.Error(), "UNIQUE constraint failed") ||
			strings.Contains(err.Error(), "constraint failed") {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateFingerprint, shorten(fingerprint))
		}
		return nil, fmt.Errorf("creating record: %w", err)
	}

	rec := toRecord(row)
	return &rec, nil
}

// GetByFingerprint looks up the record registered under fingerprint.
func (c *Client) GetByFingerprint(fingerprint string) (*models.Record, error) {
	if c == nil || c.DB == nil {
		return nil, errClientNil
	}
	var row Content
	err := c.DB.Where("phash = ?", fingerprint).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, shorten(fingerprint))
	}
	if err != nil {
		return nil, fmt.Errorf("querying record: %w", err)
	}
	rec := toRecord(row)
	return &rec, nil
}

// ListAll returns every record in primary-key order. That order is the
// index's rebuild order, so it must be stable.
func (c *Client) ListAll() ([]models.Record, error) {
	if c == nil || c.DB == nil {
		return nil, errClientNil
	}
	var rows []Content
	if err := c.DB.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing records: %w", err)
	}
	out := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRecord(row))
	}
	return out, nil
}

// ListByPublisher returns the records registered by one publisher.
func (c *Client) ListByPublisher(publisher string) ([]models.Record, error) {
	if c == nil || c.DB == nil {
		return nil, errClientNil
	}
	var rows []Content
	if err := c.DB.Where("publisher = ?", publisher).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("listing records for %s: %w", publisher, err)
	}
	out := make([]models.Record, 0, len(rows))
	for _, row := range rows {
		out = append(out, toRecord(row))
	}
	return out, nil
}

// Count returns the total record count. The similarity index uses this
// as its drift signal.
func (c *Client) Count() (int64, error) {
	if c == nil || c.DB == nil {
		return 0, errClientNil
	}
	var n int64
	if err := c.DB.Model(&Content{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

func toRecord(row Content) models.Record {
	return models.Record{
		ID:          row.ID,
		Fingerprint: row.Phash,
		Publisher:   row.Publisher,
		Title:       row.Title,
		Description: row.Description,
		Timestamp:   row.Timestamp,
		TxHash:      row.TxHash,
		BlockNumber: row.BlockNumber,
		CreatedAt:   row.CreatedAt,
	}
}

func shorten(fp string) string {
	if len(fp) > 16 {
		return fp[:16] + "..."
	}
	return fp
}
