// Package vectorstore holds the embedded portfolio documents in a chromem-go
// collection and answers nearest-neighbour queries over them.
package vectorstore

import (
	"context"
	"fmt"
	"math"
	"runtime"
	"sort"
	"strconv"

	"github.com/philippgille/chromem-go"

	"portfolio-rag/internal/domain"
	"portfolio-rag/internal/errs"
)

// CollectionName identifies the layout of persisted indexes. An artifact
// without this collection is treated as corrupt.
const CollectionName = "profiles_v1"

// DefaultK is used when a search asks for k <= 0.
const DefaultK = 5

const (
	metaCompany  = "company"
	metaSource   = "source"
	metaEmbedder = "embedder"
)

type entry struct {
	doc domain.Document
	vec []float32
}

// Index is an ordered set of documents with their vectors. Chromem document
// IDs are the positions in that order.
type Index struct {
	embedder domain.Embedder
	db       *chromem.DB
	col      *chromem.Collection
	entries  []entry
}

func newIndex(embedder domain.Embedder) (*Index, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection(CollectionName, nil, embedFunc(embedder))
	if err != nil {
		return nil, fmt.Errorf("creating collection: %w", err)
	}
	return &Index{embedder: embedder, db: db, col: col}, nil
}

// embedFunc lets chromem embed through the configured provider. Documents
// are always added with precomputed vectors, so only ad-hoc queries use it.
func embedFunc(e domain.Embedder) chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return e.Embed(ctx, text)
	}
}

// Build embeds every document and returns a fresh index. Any embedding
// failure aborts the build with index.embedding.unavailable.
func Build(ctx context.Context, embedder domain.Embedder, docs []domain.Document) (*Index, error) {
	idx, err := newIndex(embedder)
	if err != nil {
		return nil, err
	}
	entries := make([]entry, 0, len(docs))
	for _, d := range docs {
		vec, err := embedder.Embed(ctx, d.Content)
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeEmbeddingUnavailable, "embedding document failed",
				errs.FieldCompany(d.Tags.Company), errs.FieldProvider(embedder.Name()))
		}
		if len(vec) == 0 {
			return nil, errs.New(errs.CodeEmbeddingUnavailable, "embedder returned an empty vector",
				errs.FieldCompany(d.Tags.Company), errs.FieldProvider(embedder.Name()))
		}
		entries = append(entries, entry{doc: d, vec: normalize(vec)})
	}
	if err := idx.add(ctx, entries); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) add(ctx context.Context, entries []entry) error {
	if len(entries) == 0 {
		return nil
	}
	if dim := idx.Dimension(); dim > 0 {
		for _, e := range entries {
			if len(e.vec) != dim {
				return fmt.Errorf("vector dimension mismatch: index has %d, got %d", dim, len(e.vec))
			}
		}
	}
	base := len(idx.entries)
	docs := make([]chromem.Document, len(entries))
	for i, e := range entries {
		docs[i] = chromem.Document{
			ID: strconv.Itoa(base + i),
			Metadata: map[string]string{
				metaCompany:  e.doc.Tags.Company,
				metaSource:   e.doc.Tags.Source,
				metaEmbedder: idx.embedder.Name(),
			},
			Embedding: e.vec,
			Content:   e.doc.Content,
		}
	}
	if err := idx.col.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	idx.entries = append(idx.entries, entries...)
	return nil
}

// Merge appends other's documents and vectors. Nothing is re-embedded or
// deduplicated.
func (idx *Index) Merge(ctx context.Context, other *Index) error {
	if other == nil {
		return nil
	}
	return idx.add(ctx, other.entries)
}

// Clone returns an independent copy.
func (idx *Index) Clone(ctx context.Context) (*Index, error) {
	cp, err := newIndex(idx.embedder)
	if err != nil {
		return nil, err
	}
	if err := cp.add(ctx, idx.entries); err != nil {
		return nil, err
	}
	return cp, nil
}

// Search embeds query and returns the k nearest documents, nearest first.
// k is clamped to the number of documents and defaults to DefaultK. A query
// with no embeddable content is ranked lexically instead.
func (idx *Index) Search(ctx context.Context, query string, k int) ([]domain.SearchResult, error) {
	if idx == nil || len(idx.entries) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = DefaultK
	}
	if k > len(idx.entries) {
		k = len(idx.entries)
	}
	vec, err := idx.embedder.Embed(ctx, query)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeEmbeddingUnavailable, "embedding query failed",
			errs.FieldProvider(idx.embedder.Name()))
	}
	if isZero(vec) {
		return idx.lexicalSearch(query, k), nil
	}
	res, err := idx.col.QueryEmbedding(ctx, normalize(vec), k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection: %w", err)
	}
	type hit struct {
		pos   int
		score float64
	}
	hits := make([]hit, 0, len(res))
	allZero := true
	for _, r := range res {
		pos, err := strconv.Atoi(r.ID)
		if err != nil || pos < 0 || pos >= len(idx.entries) {
			return nil, fmt.Errorf("unexpected document id %q", r.ID)
		}
		score := float64(r.Similarity)
		if score > 1e-9 {
			allZero = false
		}
		hits = append(hits, hit{pos, score})
	}
	if allZero {
		return idx.lexicalSearch(query, k), nil
	}
	// Equal scores keep index order so rankings are reproducible.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].score != hits[j].score {
			return hits[i].score > hits[j].score
		}
		return hits[i].pos < hits[j].pos
	})
	out := make([]domain.SearchResult, len(hits))
	for i, h := range hits {
		out[i] = domain.SearchResult{Document: idx.entries[h.pos].doc, Score: h.score}
	}
	return out, nil
}

// ListIndexedIdentities returns the company of every document in index
// order, exactly as stored.
func (idx *Index) ListIndexedIdentities() []string {
	if idx == nil {
		return nil
	}
	ids := make([]string, len(idx.entries))
	for i, e := range idx.entries {
		ids[i] = e.doc.Tags.Company
	}
	return ids
}

// Documents returns the indexed documents in order.
func (idx *Index) Documents() []domain.Document {
	if idx == nil {
		return nil
	}
	docs := make([]domain.Document, len(idx.entries))
	for i, e := range idx.entries {
		docs[i] = e.doc
	}
	return docs
}

func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// Dimension is the vector width, or 0 for an empty index.
func (idx *Index) Dimension() int {
	if idx == nil || len(idx.entries) == 0 {
		return 0
	}
	return len(idx.entries[0].vec)
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	out := make([]float32, len(vec))
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
