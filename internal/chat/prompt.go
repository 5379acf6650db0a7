package chat

import (
	"fmt"
	"strings"

	"github.com/stockwise/stockwizard/internal/search/web"
)

const persona = "Você é o StockWizard, um assistente de IA especializado em controle de estoque do sistema StockWise. " +
	"Sua missão é responder de maneira concisa e objetiva sobre controle de estoque, gerenciamento de inventário e estratégias de otimização."

// BuildPrompt renders the persona template. The context block appears only
// for non-empty context and always before the question.
func BuildPrompt(question, context string) string {
	var b strings.Builder
	b.WriteString(persona)
	b.WriteString("\n\n")
	if context != "" {
		b.WriteString("Contexto:\n")
		b.WriteString(context)
		b.WriteString("\n\n")
	}
	b.WriteString("Pergunta: ")
	b.WriteString(question)
	b.WriteString("\n\nResposta:")
	return b.String()
}

// Flatten renders search results as "title - link: snippet" lines, the form
// stored as the answer of a search request.
func Flatten(results []web.SearchResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("%s - %s: %s", r.Title, r.Link, r.Snippet))
	}
	return strings.Join(lines, "\n")
}
