// Package chat routes a question to web search, document-grounded completion
// or direct completion, and records the answer per tenant.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/stockwise/stockwizard/internal/metrics"
	"github.com/stockwise/stockwizard/internal/search/web"
	"github.com/stockwise/stockwizard/internal/storage/models"
	"github.com/stockwise/stockwizard/pkg/logger"
)

const FallbackAnswer = "Desculpe, não consegui responder à sua pergunta."

var (
	ErrInvalidRequest   = errors.New("invalid chat request")
	ErrMissingCompanyID = errors.New("company_id is required")
	ErrNoRecords        = errors.New("no chat records found")
)

type Searcher interface {
	Search(ctx context.Context, query string) []web.SearchResult
}

type Completer interface {
	Invoke(ctx context.Context, prompt string) (string, error)
}

type Store interface {
	Save(ctx context.Context, record *models.ChatRecord) error
	ListByCompany(ctx context.Context, companyID string) ([]models.ChatRecord, error)
}

type ChatRequest struct {
	Question  string `json:"question"`
	CompanyID string `json:"company_id"`
}

func (r ChatRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return fmt.Errorf("%w: question is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.CompanyID) == "" {
		return fmt.Errorf("%w: company_id is required", ErrInvalidRequest)
	}
	return nil
}

// Reply carries either search results or a completion answer, depending on
// Route.
type Reply struct {
	Route    Route
	Answer   string
	Results  []web.SearchResult
	Fallback bool
}

// Payload is the value sent back as "response".
func (r Reply) Payload() interface{} {
	if r.Route == RouteSearch {
		return r.Results
	}
	return r.Answer
}

type Service struct {
	searcher  Searcher
	completer Completer
	store     Store
	retriever *Retriever
	keywords  Keywords

	pending sync.WaitGroup
}

func NewService(searcher Searcher, completer Completer, store Store, retriever *Retriever, keywords Keywords) *Service {
	if retriever == nil {
		retriever = NewRetriever(nil, DefaultContextPassages)
	}
	return &Service{
		searcher:  searcher,
		completer: completer,
		store:     store,
		retriever: retriever,
		keywords:  keywords,
	}
}

func (s *Service) DocumentContextAvailable() bool {
	return s.retriever.Available()
}

func (s *Service) Handle(ctx context.Context, req ChatRequest) (Reply, error) {
	if err := req.Validate(); err != nil {
		metrics.ChatRequests.WithLabelValues("invalid", "rejected").Inc()
		return Reply{}, err
	}

	route := Classify(req.Question, s.keywords)
	logger.Info("Chat request classified",
		zap.String("company_id", req.CompanyID),
		zap.String("route", route.String()),
	)

	if route == RouteSearch {
		results := s.searcher.Search(ctx, req.Question)
		s.persistAsync(models.ChatRecord{
			Question:  req.Question,
			Answer:    Flatten(results),
			CompanyID: req.CompanyID,
		})
		metrics.ChatRequests.WithLabelValues(route.String(), "ok").Inc()
		return Reply{Route: route, Results: results}, nil
	}

	var docContext string
	if route == RouteDocumentContext {
		docContext = s.retriever.Retrieve(ctx, req.Question)
	}

	answer, err := s.completer.Invoke(ctx, BuildPrompt(req.Question, docContext))
	if err != nil {
		metrics.ChatRequests.WithLabelValues(route.String(), "error").Inc()
		return Reply{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	if strings.TrimSpace(answer) == "" {
		logger.Warn("Completion engine returned no answer", zap.String("route", route.String()))
		metrics.FallbackAnswers.Inc()
		metrics.ChatRequests.WithLabelValues(route.String(), "fallback").Inc()
		return Reply{Route: route, Answer: FallbackAnswer, Fallback: true}, nil
	}

	record := &models.ChatRecord{Question: req.Question, Answer: answer, CompanyID: req.CompanyID}
	if err := s.store.Save(context.WithoutCancel(ctx), record); err != nil {
		metrics.PersistenceFailures.Inc()
		logger.Error("Failed to persist chat record",
			zap.String("company_id", req.CompanyID),
			zap.Error(err),
		)
	}

	metrics.ChatRequests.WithLabelValues(route.String(), "ok").Inc()
	return Reply{Route: route, Answer: answer}, nil
}

// persistAsync writes the record off the request path. Wait blocks until all
// such writes have finished.
func (s *Service) persistAsync(record models.ChatRecord) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.store.Save(context.Background(), &record); err != nil {
			metrics.PersistenceFailures.Inc()
			logger.Error("Failed to persist search result",
				zap.String("company_id", record.CompanyID),
				zap.Error(err),
			)
		}
	}()
}

// Wait blocks until background writes finish or ctx ends.
func (s *Service) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.pending.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// History returns a tenant's records in storage order.
func (s *Service) History(ctx context.Context, companyID string) ([]models.ChatRecord, error) {
	if strings.TrimSpace(companyID) == "" {
		return nil, ErrMissingCompanyID
	}

	records, err := s.store.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat records: %w", err)
	}
	if len(records) == 0 {
		return nil, ErrNoRecords
	}
	return records, nil
}
