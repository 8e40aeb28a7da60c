package hashing_test

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-rag/internal/embedding/hashing"
)

func cosine(a, b []float32) float64 {
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

func TestEmbed_DeterministicAndNormalized(t *testing.T) {
	e := hashing.NewEmbedder(64)
	ctx := context.Background()

	a, err := e.Embed(ctx, "Acme builds industrial anvils")
	require.NoError(t, err)
	b, err := hashing.NewEmbedder(64).Embed(ctx, "Acme builds industrial anvils")
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.Len(t, a, 64)
	assert.InDelta(t, 1.0, cosine(a, a), 1e-6)
}

func TestEmbed_SimilarTextsScoreHigher(t *testing.T) {
	e := hashing.NewEmbedder(256)
	ctx := context.Background()

	q, _ := e.Embed(ctx, "anvils factory")
	near, _ := e.Embed(ctx, "Acme operates an anvils factory in Ohio")
	far, _ := e.Embed(ctx, "Globex trades energy futures")

	assert.Greater(t, cosine(q, near), cosine(q, far))
}

func TestEmbed_StopwordsOnlyYieldZeroVector(t *testing.T) {
	e := hashing.NewEmbedder(0)
	v, err := e.Embed(context.Background(), "the and of")
	require.NoError(t, err)
	assert.Len(t, v, hashing.DefaultDimension)
	for _, x := range v {
		assert.Zero(t, x)
	}
}

func TestEmbed_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := hashing.NewEmbedder(8).Embed(ctx, "text")
	assert.ErrorIs(t, err, context.Canceled)
}
