package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/stockwise/stockwizard/internal/metrics"
	"github.com/stockwise/stockwizard/pkg/circuitbreaker"
	"github.com/stockwise/stockwizard/pkg/logger"
	"github.com/stockwise/stockwizard/pkg/utils"
	"github.com/stockwise/stockwizard/pkg/workerpool"
)

const (
	DefaultEndpoint   = "https://serpapi.com/search.json"
	DefaultMaxResults = 7

	NoTitle   = "Sem título"
	NoLink    = "Sem link"
	NoSnippet = "Sem snippet"

	NoResultsTitle = "Nenhum resultado encontrado"
	ErrorTitle     = "Erro ao realizar pesquisa"
)

var errMissingAPIKey = errors.New("serpapi key is not configured")

type SearchResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Cache stores successful result lists. The redis client satisfies it.
type Cache interface {
	GetSearch(ctx context.Context, queryHash string, results interface{}) (bool, error)
	SetSearch(ctx context.Context, queryHash string, results interface{}, ttl time.Duration) error
}

type Config struct {
	APIKey     string
	Endpoint   string
	Engine     string
	MaxResults int
	Timeout    time.Duration

	FailureThreshold int
	OpenTimeout      time.Duration
}

type Client struct {
	serpAPIKey string
	endpoint   string
	engine     string
	maxResults int
	httpClient *http.Client
	breaker    *circuitbreaker.Breaker
	pool       *workerpool.Pool

	cache    Cache
	cacheTTL time.Duration
}

func NewClient(cfg Config, pool *workerpool.Pool) *Client {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Engine == "" {
		cfg.Engine = "google"
	}
	if cfg.MaxResults <= 0 || cfg.MaxResults > DefaultMaxResults {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	breaker := circuitbreaker.New("serpapi", circuitbreaker.Config{
		FailureThreshold: cfg.FailureThreshold,
		OpenTimeout:      cfg.OpenTimeout,
		Logger:           logger.GetLogger(),
	})

	return &Client{
		serpAPIKey: cfg.APIKey,
		endpoint:   cfg.Endpoint,
		engine:     cfg.Engine,
		maxResults: cfg.MaxResults,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		breaker:    breaker,
		pool:       pool,
	}
}

// WithCache enables caching of successful result lists for ttl.
func (c *Client) WithCache(cache Cache, ttl time.Duration) *Client {
	if cache != nil && ttl > 0 {
		c.cache = cache
		c.cacheTTL = ttl
	}
	return c
}

// Search never fails: an empty answer becomes a single "no results" record
// and any failure becomes a single error record carrying the message.
func (c *Client) Search(ctx context.Context, query string) []SearchResult {
	logger.Info("Performing web search", zap.String("query", query))

	queryHash := utils.HashString(query)
	if c.cache != nil {
		var cached []SearchResult
		found, err := c.cache.GetSearch(ctx, queryHash, &cached)
		if err != nil {
			logger.Warn("Search cache lookup failed", zap.Error(err))
		}
		if found && len(cached) > 0 {
			metrics.CacheHits.WithLabelValues("search").Inc()
			return cached
		}
		metrics.CacheMisses.WithLabelValues("search").Inc()
	}

	results, err := workerpool.Do(ctx, c.pool, func(ctx context.Context) ([]SearchResult, error) {
		var out []SearchResult
		err := c.breaker.Execute(ctx, func() error {
			var err error
			out, err = c.searchWithSerpAPI(ctx, query)
			return err
		})
		return out, err
	})
	if err != nil {
		logger.Error("Web search failed", zap.String("query", query), zap.Error(err))
		metrics.SearchFailures.Inc()
		return []SearchResult{{Title: ErrorTitle, Link: "", Snippet: err.Error()}}
	}

	metrics.SearchResults.Observe(float64(len(results)))
	if len(results) == 0 {
		logger.Info("Web search returned no results", zap.String("query", query))
		return []SearchResult{{Title: NoResultsTitle, Link: "", Snippet: ""}}
	}

	if c.cache != nil {
		if err := c.cache.SetSearch(ctx, queryHash, results, c.cacheTTL); err != nil {
			logger.Warn("Failed to cache search results", zap.Error(err))
		}
	}

	logger.Info("Web search completed", zap.Int("results", len(results)))
	return results
}

func (c *Client) searchWithSerpAPI(ctx context.Context, query string) ([]SearchResult, error) {
	if c.serpAPIKey == "" {
		return nil, errMissingAPIKey
	}

	params := url.Values{}
	params.Add("q", query)
	params.Add("api_key", c.serpAPIKey)
	params.Add("engine", c.engine)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s?%s", c.endpoint, params.Encode()), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var searchResp struct {
		Error          string `json:"error"`
		OrganicResults []struct {
			Title   string `json:"title"`
			Link    string `json:"link"`
			Snippet string `json:"snippet"`
		} `json:"organic_results"`
	}

	if err := json.Unmarshal(body, &searchResp); err != nil {
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if searchResp.Error != "" {
		return nil, fmt.Errorf("search provider error: %s", searchResp.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search returned status %d", resp.StatusCode)
	}

	n := len(searchResp.OrganicResults)
	if n > c.maxResults {
		n = c.maxResults
	}

	results := make([]SearchResult, 0, n)
	for _, r := range searchResp.OrganicResults[:n] {
		results = append(results, SearchResult{
			Title:   orPlaceholder(r.Title, NoTitle),
			Link:    orPlaceholder(r.Link, NoLink),
			Snippet: orPlaceholder(r.Snippet, NoSnippet),
		})
	}

	return results, nil
}

func orPlaceholder(value, placeholder string) string {
	if strings.TrimSpace(value) == "" {
		return placeholder
	}
	return value
}
