package projector

import (
	"strings"

	"portfolio-rag/internal/domain"
)

// DefaultSource is the provenance tag for documents projected from the
// portfolio file.
const DefaultSource = "portfolio_csv"

const commentSeparator = " | "

// Projector renders profile records into retrievable documents. Only the
// most recent comment is kept so the retrieved context stays short.
type Projector struct {
	source string
}

func New(source string) *Projector {
	if strings.TrimSpace(source) == "" {
		source = DefaultSource
	}
	return &Projector{source: source}
}

// Project renders a single record.
func (p *Projector) Project(record domain.ProfileRecord) domain.Document {
	var b strings.Builder
	b.WriteString("company: ")
	b.WriteString(record.CompanyName)
	b.WriteString("\nsummary: ")
	b.WriteString(record.Summary)
	b.WriteString("\n")
	if last := LastComment(record.Comments); last != "" {
		b.WriteString("last comment: ")
		b.WriteString(last)
	} else {
		b.WriteString("no comment")
	}
	return domain.Document{
		Content: b.String(),
		Tags: domain.Tags{
			Company: record.CompanyName,
			Source:  p.source,
		},
	}
}

// ProjectAll renders records in order.
func (p *Projector) ProjectAll(records []domain.ProfileRecord) []domain.Document {
	docs := make([]domain.Document, 0, len(records))
	for _, r := range records {
		docs = append(docs, p.Project(r))
	}
	return docs
}

// LastComment returns the newest entry of a comment log with its leading
// "[timestamp]" removed. A bracket that is never closed is left as is.
func LastComment(log string) string {
	if strings.TrimSpace(log) == "" {
		return ""
	}
	entries := strings.Split(log, commentSeparator)
	last := strings.TrimSpace(entries[len(entries)-1])
	if strings.HasPrefix(last, "[") {
		if end := strings.Index(last, "]"); end > 0 {
			last = strings.TrimSpace(last[end+1:])
		}
	}
	return last
}

// IdentityKey is the normalized form used whenever two company identities
// are compared. Record lookups are case-insensitive, so the index is too.
func IdentityKey(company string) string {
	return strings.ToLower(strings.TrimSpace(company))
}
