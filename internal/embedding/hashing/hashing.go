package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// DefaultDimension is the vector width used when none is configured.
const DefaultDimension = 512

// Embedder is a local bag-of-words embedder. Tokens are hashed into a fixed
// number of buckets, so unlike a corpus-fitted TF-IDF vocabulary the vectors
// of separately built indexes stay comparable and can be merged.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates a hashing embedder with the given dimension.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		stopwords:    defaultStopwords(),
	}
}

// Name identifies the embedder and its width; vectors of different widths
// are not comparable.
func (e *Embedder) Name() string { return "hashing:" + strconv.Itoa(e.dimension) }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed computes a log-scaled term frequency vector over hashed buckets.
// Text without any usable token yields the zero vector.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	counts := make(map[int]float64)
	for _, tok := range e.tokenize(text) {
		idx, sign := e.bucket(tok)
		counts[idx] += sign
	}
	vec := make([]float32, e.dimension)
	if len(counts) == 0 {
		return vec, nil
	}
	norm := 0.0
	weights := make(map[int]float64, len(counts))
	for idx, c := range counts {
		if c == 0 {
			continue
		}
		w := math.Copysign(1+math.Log(math.Abs(c)), c)
		weights[idx] = w
		norm += w * w
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec, nil
	}
	for idx, w := range weights {
		vec[idx] = float32(w / norm)
	}
	return vec, nil
}

// bucket maps a token to a vector position and a sign. The sign halves the
// bias introduced by colliding tokens.
func (e *Embedder) bucket(token string) (int, float64) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(token))
	sum := h.Sum64()
	sign := 1.0
	if sum>>63 == 1 {
		sign = -1.0
	}
	return int(sum % uint64(e.dimension)), sign
}

func (e *Embedder) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := e.tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"le", "la", "les", "un", "une", "des", "du", "de", "et", "ou", "en", "au", "aux", "est", "sont", "pour", "par", "sur", "dans", "avec", "que", "qui",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
