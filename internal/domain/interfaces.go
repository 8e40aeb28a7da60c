package domain

import (
	"context"
	"time"
)

// ProfileRecord is a single company entry of the portfolio.
type ProfileRecord struct {
	CompanyName string
	Summary     string
	// Comments is a " | " separated log of "[YYYY-MM-DD HH:MM] text" entries.
	Comments string
}

// Tags are the structured labels attached to an indexed document.
type Tags struct {
	// Company is the originating record's name exactly as stored.
	Company string
	Source  string
}

// Document is the retrievable text unit projected from a ProfileRecord.
type Document struct {
	Content string
	Tags    Tags
}

// SearchResult is a retrieved document with its similarity score.
type SearchResult struct {
	Document Document
	Score    float64
}

// QueryResult is a generated answer together with the documents it was
// grounded on, nearest first.
type QueryResult struct {
	Answer  string
	Sources []SearchResult
}

// RecordSource is the backing store of profile records.
// LastModified reports a single timestamp for the whole collection.
type RecordSource interface {
	Records(ctx context.Context) ([]ProfileRecord, error)
	LastModified(ctx context.Context) (time.Time, error)
}

// Embedder converts free text into a fixed-width vector. The same
// configuration must be used for documents and queries.
type Embedder interface {
	Name() string
	Embed(ctx context.Context, text string) ([]float32, error)
}

// LanguageModel produces a completion for a single prompt.
type LanguageModel interface {
	Name() string
	Complete(ctx context.Context, prompt string) (string, error)
}
