package evaluate

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sashabaranov/go-openai"

	"github.com/sprite-ai/smartcommit/internal/tokenize"
)

// SimilarityProvider scores semantic overlap of two messages in [0,1].
type SimilarityProvider interface {
	Name() string
	Similarity(ctx context.Context, candidate, reference string) (float64, error)
}

// JaccardSimilarity compares stopword-filtered token sets. It never fails.
type JaccardSimilarity struct{}

func (JaccardSimilarity) Name() string { return "jaccard" }

func (JaccardSimilarity) Similarity(_ context.Context, candidate, reference string) (float64, error) {
	return Jaccard(candidate, reference), nil
}

// Jaccard returns |A∩B| / |A∪B| over the content-token sets of a and b,
// or 0 when either set is empty.
func Jaccard(a, b string) float64 {
	setA := toSet(tokenize.ContentTokens(a))
	setB := toSet(tokenize.ContentTokens(b))
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}
	var inter int
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	return float64(inter) / float64(union)
}

func toSet(tokens []string) map[string]struct{} {
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

// EmbeddingCreator is the part of *openai.Client used for embeddings.
type EmbeddingCreator interface {
	CreateEmbeddings(ctx context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error)
}

// EmbeddingSimilarity is the cosine similarity of OpenAI embeddings,
// clamped to [0,1].
type EmbeddingSimilarity struct {
	client EmbeddingCreator
	model  openai.EmbeddingModel
}

// NewEmbeddingSimilarity builds a provider over client. An empty model
// selects text-embedding-3-small.
func NewEmbeddingSimilarity(client EmbeddingCreator, model string) *EmbeddingSimilarity {
	m := openai.SmallEmbedding3
	if model != "" {
		m = openai.EmbeddingModel(model)
	}
	return &EmbeddingSimilarity{client: client, model: m}
}

func (e *EmbeddingSimilarity) Name() string { return "openai:" + string(e.model) }

func (e *EmbeddingSimilarity) Similarity(ctx context.Context, candidate, reference string) (float64, error) {
	if candidate == "" || reference == "" {
		return 0, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{candidate, reference},
		Model: e.model,
	})
	if err != nil {
		return 0, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != 2 {
		return 0, errors.New("create embeddings: expected 2 vectors")
	}
	cos := cosine(resp.Data[0].Embedding, resp.Data[1].Embedding)
	return math.Max(0, math.Min(1, cos)), nil
}

func cosine(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
