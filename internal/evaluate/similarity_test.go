package evaluate

import (
	"context"
	"errors"
	"testing"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJaccard(t *testing.T) {
	assert.Equal(t, 0.5, Jaccard("add retry logic", "add retry to client"))
	assert.Equal(t, 1.0, Jaccard("Fix parser", "fix the parser"))
	assert.Equal(t, 0.0, Jaccard("", "fix parser"))
	assert.Equal(t, 0.0, Jaccard("the a an", "fix parser"))
}

type fakeEmbedder struct {
	vectors [][]float32
	err     error
	got     openai.EmbeddingRequest
}

func (f *fakeEmbedder) CreateEmbeddings(_ context.Context, conv openai.EmbeddingRequestConverter) (openai.EmbeddingResponse, error) {
	f.got = conv.Convert()
	if f.err != nil {
		return openai.EmbeddingResponse{}, f.err
	}
	var resp openai.EmbeddingResponse
	for i, v := range f.vectors {
		resp.Data = append(resp.Data, openai.Embedding{Index: i, Embedding: v})
	}
	return resp, nil
}

func TestEmbeddingSimilarity(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		name    string
		vectors [][]float32
		want    float64
	}{
		{"identical", [][]float32{{1, 0}, {1, 0}}, 1},
		{"orthogonal", [][]float32{{1, 0}, {0, 1}}, 0},
		{"opposite clamps to zero", [][]float32{{1, 0}, {-1, 0}}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fe := &fakeEmbedder{vectors: tt.vectors}
			p := NewEmbeddingSimilarity(fe, "")
			got, err := p.Similarity(ctx, "a", "b")
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.Equal(t, openai.SmallEmbedding3, fe.got.Model)
		})
	}
}

func TestEmbeddingSimilarityErrors(t *testing.T) {
	ctx := context.Background()

	p := NewEmbeddingSimilarity(&fakeEmbedder{err: errors.New("boom")}, "text-embedding-3-large")
	_, err := p.Similarity(ctx, "a", "b")
	assert.ErrorContains(t, err, "boom")
	assert.Equal(t, "openai:text-embedding-3-large", p.Name())

	p = NewEmbeddingSimilarity(&fakeEmbedder{vectors: [][]float32{{1}}}, "")
	_, err = p.Similarity(ctx, "a", "b")
	assert.Error(t, err)

	got, err := p.Similarity(ctx, "", "b")
	require.NoError(t, err)
	assert.Equal(t, 0.0, got)
}
