package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/stockwise/stockwizard/internal/storage/models"
	"github.com/stockwise/stockwizard/pkg/logger"
)

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		question TEXT NOT NULL,
		answer TEXT NOT NULL,
		company_id TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_company ON chat(company_id, seq);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// Save appends a record. ID and CreatedAt are assigned when empty.
func (c *Client) Save(ctx context.Context, record *models.ChatRecord) error {
	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO chat (id, question, answer, company_id, created_at) VALUES (?, ?, ?, ?, ?)`

	_, err := c.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.Question,
		record.Answer,
		record.CompanyID,
		record.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert chat record: %w", err)
	}

	logger.Debug("Chat record saved",
		zap.String("id", record.ID),
		zap.String("company_id", record.CompanyID),
	)

	return nil
}

// ListByCompany returns every record of a tenant in insertion order. No
// records is an empty slice, not an error.
func (c *Client) ListByCompany(ctx context.Context, companyID string) ([]models.ChatRecord, error) {
	query := `
		SELECT id, question, answer, company_id, created_at
		FROM chat
		WHERE company_id = ?
		ORDER BY seq ASC
	`

	rows, err := c.db.QueryContext(ctx, query, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat records: %w", err)
	}
	defer rows.Close()

	records := make([]models.ChatRecord, 0)
	for rows.Next() {
		var r models.ChatRecord
		var createdAt int64

		if err := rows.Scan(&r.ID, &r.Question, &r.Answer, &r.CompanyID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chat records: %w", err)
	}

	return records, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}
