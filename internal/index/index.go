// Package index builds the read-only semantic index over the StockWise
// reference document.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/stockwise/stockwizard/pkg/logger"
)

var (
	ErrEmptyDocument     = errors.New("no content extracted from document")
	ErrUnsupportedFormat = errors.New("unsupported document format")

	whitespace = regexp.MustCompile(`\s+`)
)

type Options struct {
	Path           string
	CollectionName string
	ChunkSize      int
	ChunkOverlap   int
	Embedding      chromem.EmbeddingFunc
	Concurrency    int
}

type Passage struct {
	ID         string
	Text       string
	Similarity float32
}

// Index is built once by Load and only read afterwards; chromem collections
// are safe for concurrent queries.
type Index struct {
	collection *chromem.Collection
	source     string
}

func Load(ctx context.Context, opts Options) (*Index, error) {
	if opts.Embedding == nil {
		return nil, fmt.Errorf("embedding function is required")
	}
	if opts.CollectionName == "" {
		opts.CollectionName = "stockwise"
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = runtime.NumCPU()
	}

	logger.Info("Loading reference document", zap.String("path", opts.Path))

	text, err := readDocument(opts.Path)
	if err != nil {
		return nil, err
	}

	chunks := chunkSentences(splitSentences(text), opts.ChunkSize, opts.ChunkOverlap)
	if len(chunks) == 0 {
		return nil, ErrEmptyDocument
	}
	logger.Info("Document chunked", zap.Int("chunks", len(chunks)))

	base := strings.TrimSuffix(filepath.Base(opts.Path), filepath.Ext(opts.Path))
	docs := make([]chromem.Document, 0, len(chunks))
	for i, chunk := range chunks {
		docs = append(docs, chromem.Document{
			ID:      fmt.Sprintf("%s_chunk_%d", base, i),
			Content: chunk,
			Metadata: map[string]string{
				"source":      opts.Path,
				"chunk_index": strconv.Itoa(i),
			},
		})
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection(opts.CollectionName, nil, opts.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to create collection: %w", err)
	}
	if err := collection.AddDocuments(ctx, docs, opts.Concurrency); err != nil {
		return nil, fmt.Errorf("failed to embed document chunks: %w", err)
	}

	logger.Info("Reference document indexed",
		zap.String("collection", opts.CollectionName),
		zap.Int("chunks", collection.Count()),
	)

	return &Index{collection: collection, source: opts.Path}, nil
}

func (i *Index) Len() int {
	return i.collection.Count()
}

func (i *Index) Source() string {
	return i.source
}

// Query returns up to k passages, most similar first.
func (i *Index) Query(ctx context.Context, text string, k int) ([]Passage, error) {
	if strings.TrimSpace(text) == "" || k <= 0 {
		return nil, nil
	}
	if n := i.collection.Count(); k > n {
		k = n
	}
	if k == 0 {
		return nil, nil
	}

	results, err := i.collection.Query(ctx, text, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}

	passages := make([]Passage, 0, len(results))
	for _, r := range results {
		passages = append(passages, Passage{ID: r.ID, Text: r.Content, Similarity: r.Similarity})
	}
	sort.SliceStable(passages, func(a, b int) bool {
		return passages[a].Similarity > passages[b].Similarity
	})

	return passages, nil
}

func readDocument(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}

	var text string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".txt", ".md", ".markdown":
		text = whitespace.ReplaceAllString(string(raw), " ")
	case ".html", ".htm":
		text, err = cleanHTML(string(raw))
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, filepath.Ext(path))
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyDocument
	}
	return text, nil
}

func cleanHTML(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("failed to parse HTML: %w", err)
	}

	doc.Find("script, style, nav, footer, header, aside").Remove()

	text := doc.Find("body").Text()
	return strings.TrimSpace(whitespace.ReplaceAllString(text, " ")), nil
}
