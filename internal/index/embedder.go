package index

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/philippgille/chromem-go"
)

const localDimensions = 512

type EmbedderConfig struct {
	// Kind is one of "ollama", "openai" or "local".
	Kind    string
	Model   string
	BaseURL string
	APIKey  string
}

func NewEmbeddingFunc(cfg EmbedderConfig) (chromem.EmbeddingFunc, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", "ollama":
		return chromem.NewEmbeddingFuncOllama(cfg.Model, cfg.BaseURL), nil
	case "openai":
		if cfg.BaseURL == "" {
			return nil, fmt.Errorf("openai embedder requires a base url")
		}
		return chromem.NewEmbeddingFuncOpenAICompat(cfg.BaseURL, cfg.APIKey, cfg.Model, nil), nil
	case "local":
		return LocalEmbedding, nil
	default:
		return nil, fmt.Errorf("unknown embedder %q", cfg.Kind)
	}
}

// LocalEmbedding hashes lowercased word tokens into a fixed-size,
// L2-normalized vector. Deterministic and offline; the vector is never zero.
func LocalEmbedding(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, localDimensions)

	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	for _, tok := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(tok))
		vec[h.Sum32()%localDimensions]++
	}
	if len(tokens) == 0 {
		vec[0] = 1
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}

	return vec, nil
}
