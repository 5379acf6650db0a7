package web

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockwise/stockwizard/pkg/workerpool"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewClient(Config{
		APIKey:           "serp-key",
		Endpoint:         srv.URL + "/search.json",
		Timeout:          5 * time.Second,
		FailureThreshold: 3,
		OpenTimeout:      time.Minute,
	}, workerpool.New("search-test", 4, nil))
}

func organic(n int) string {
	items := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		items = append(items, fmt.Sprintf(`{"title":"T%d","link":"https://example.com/%d","snippet":"S%d"}`, i, i, i))
	}
	return `{"organic_results":[` + strings.Join(items, ",") + `]}`
}

func TestSearch_SendsQueryParameters(t *testing.T) {
	var got map[string]string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		got = map[string]string{"q": q.Get("q"), "api_key": q.Get("api_key"), "engine": q.Get("engine")}
		_, _ = w.Write([]byte(organic(1)))
	})

	c.Search(context.Background(), "Pesquise preços de prateleiras")

	assert.Equal(t, map[string]string{
		"q":       "Pesquise preços de prateleiras",
		"api_key": "serp-key",
		"engine":  "google",
	}, got)
}

func TestSearch_ReturnsAtMostSevenResults(t *testing.T) {
	for _, n := range []int{1, 3, 7, 8, 20} {
		t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(organic(n)))
			})

			results := c.Search(context.Background(), "q")

			want := n
			if want > 7 {
				want = 7
			}
			require.Len(t, results, want)
			assert.Equal(t, SearchResult{Title: "T1", Link: "https://example.com/1", Snippet: "S1"}, results[0])
			for _, r := range results {
				assert.NotEmpty(t, r.Title)
				assert.NotEmpty(t, r.Link)
				assert.NotEmpty(t, r.Snippet)
			}
		})
	}
}

func TestSearch_MissingFieldsGetPlaceholders(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"organic_results":[{"link":"https://a"},{"title":"  ","snippet":"s"}]}`))
	})

	results := c.Search(context.Background(), "q")

	require.Len(t, results, 2)
	assert.Equal(t, SearchResult{Title: NoTitle, Link: "https://a", Snippet: NoSnippet}, results[0])
	assert.Equal(t, SearchResult{Title: NoTitle, Link: NoLink, Snippet: "s"}, results[1])
}

func TestSearch_EmptyResponseYieldsSinglePlaceholder(t *testing.T) {
	for name, body := range map[string]string{
		"no key":     `{"search_metadata":{"status":"Success"}}`,
		"empty list": `{"organic_results":[]}`,
	} {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(body))
			})

			results := c.Search(context.Background(), "q")

			assert.Equal(t, []SearchResult{{Title: NoResultsTitle}}, results)
		})
	}
}

func TestSearch_FailuresYieldSingleErrorPlaceholder(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"malformed json": func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"organic_results":`))
		},
		"provider error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"Invalid API key."}`))
		},
		"non-json 500": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`oops`))
		},
	}
	for name, handler := range cases {
		t.Run(name, func(t *testing.T) {
			c := newTestClient(t, handler)

			results := c.Search(context.Background(), "q")

			require.Len(t, results, 1)
			assert.Equal(t, ErrorTitle, results[0].Title)
			assert.Empty(t, results[0].Link)
			assert.NotEmpty(t, results[0].Snippet)
		})
	}
}

func TestSearch_MissingAPIKey(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL}, workerpool.New("search-test", 1, nil))
	results := c.Search(context.Background(), "q")

	require.Len(t, results, 1)
	assert.Equal(t, ErrorTitle, results[0].Title)
	assert.Equal(t, errMissingAPIKey.Error(), results[0].Snippet)
	assert.Zero(t, atomic.LoadInt32(&calls))
}

func TestSearch_BreakerOpensAfterRepeatedFailures(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		results := c.Search(context.Background(), "q")
		require.Len(t, results, 1)
		assert.Equal(t, ErrorTitle, results[0].Title)
	}

	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Contains(t, c.Search(context.Background(), "q")[0].Snippet, "circuit breaker is open")
}

type memoryCache struct {
	mu      sync.Mutex
	entries map[string][]SearchResult
	sets    int
}

func (m *memoryCache) GetSearch(_ context.Context, queryHash string, results interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.entries[queryHash]
	if !ok {
		return false, nil
	}
	*(results.(*[]SearchResult)) = v
	return true, nil
}

func (m *memoryCache) SetSearch(_ context.Context, queryHash string, results interface{}, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[queryHash] = results.([]SearchResult)
	m.sets++
	return nil
}

func TestSearch_CachesSuccessfulResults(t *testing.T) {
	var calls int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(organic(2)))
	})
	cache := &memoryCache{entries: map[string][]SearchResult{}}
	c.WithCache(cache, time.Minute)

	first := c.Search(context.Background(), "Pesquise prateleiras")
	second := c.Search(context.Background(), "pesquise prateleiras ")

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Equal(t, 1, cache.sets)
}

func TestSearch_PlaceholdersAreNotCached(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"organic_results":[]}`))
	})
	cache := &memoryCache{entries: map[string][]SearchResult{}}
	c.WithCache(cache, time.Minute)

	c.Search(context.Background(), "q")

	assert.Zero(t, cache.sets)
}

func TestSearch_CancelledContextIsErrorPlaceholder(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(organic(1)))
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := c.Search(ctx, "q")

	require.Len(t, results, 1)
	assert.Equal(t, ErrorTitle, results[0].Title)
}
