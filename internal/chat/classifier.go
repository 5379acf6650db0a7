package chat

import "strings"

type Route int

const (
	RouteDirect Route = iota
	RouteDocumentContext
	RouteSearch
)

func (r Route) String() string {
	switch r {
	case RouteSearch:
		return "search"
	case RouteDocumentContext:
		return "document_context"
	default:
		return "direct"
	}
}

// Keywords are the trigger substrings matched case-insensitively anywhere in
// the question.
type Keywords struct {
	Search  string
	Context string
	// DocumentContext turns context routing off entirely when false.
	DocumentContext bool
}

func DefaultKeywords() Keywords {
	return Keywords{Search: "pesquise", Context: "stockwise", DocumentContext: true}
}

// Classify picks the route for a question. The search keyword wins over
// everything else.
func Classify(question string, kw Keywords) Route {
	q := strings.ToLower(question)

	if kw.Search != "" && strings.Contains(q, strings.ToLower(kw.Search)) {
		return RouteSearch
	}
	if kw.DocumentContext && kw.Context != "" && strings.Contains(q, strings.ToLower(kw.Context)) {
		return RouteDocumentContext
	}
	return RouteDirect
}
