package supabase

import (
	"context"
	"encoding/json"
	"fmt"

	supa "github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"github.com/stockwise/stockwizard/internal/storage/models"
	"github.com/stockwise/stockwizard/pkg/logger"
)

// Client persists chat records in a Supabase (PostgREST) table with the
// columns question, answer and companyId.
type Client struct {
	client *supa.Client
	table  string
}

type row struct {
	Question  string `json:"question"`
	Answer    string `json:"answer"`
	CompanyID string `json:"companyId"`
}

func NewClient(url, key, table string) (*Client, error) {
	if url == "" || key == "" {
		return nil, fmt.Errorf("supabase url and key are required")
	}
	if table == "" {
		table = "chat"
	}

	client, err := supa.NewClient(url, key, &supa.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	logger.Info("Supabase client initialized", zap.String("url", url), zap.String("table", table))

	return &Client{client: client, table: table}, nil
}

// Save inserts one row. PostgREST calls are not context aware; ctx is only
// checked before the request is sent.
func (c *Client) Save(ctx context.Context, record *models.ChatRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	_, _, err := c.client.From(c.table).
		Insert(row{Question: record.Question, Answer: record.Answer, CompanyID: record.CompanyID}, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert chat record: %w", err)
	}

	logger.Debug("Chat record saved to supabase", zap.String("company_id", record.CompanyID))
	return nil
}

func (c *Client) ListByCompany(ctx context.Context, companyID string) ([]models.ChatRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, _, err := c.client.From(c.table).
		Select("question,answer,companyId", "", false).
		Eq("companyId", companyID).
		Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to query chat records: %w", err)
	}

	var rows []row
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, fmt.Errorf("failed to decode chat records: %w", err)
	}

	records := make([]models.ChatRecord, 0, len(rows))
	for _, r := range rows {
		records = append(records, models.ChatRecord{
			Question:  r.Question,
			Answer:    r.Answer,
			CompanyID: r.CompanyID,
		})
	}
	return records, nil
}

func (c *Client) Close() error {
	return nil
}
