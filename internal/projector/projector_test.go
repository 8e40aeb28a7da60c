package projector_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"portfolio-rag/internal/domain"
	"portfolio-rag/internal/projector"
)

func TestProject_RendersLastCommentWithoutTimestamp(t *testing.T) {
	p := projector.New("")
	doc := p.Project(domain.ProfileRecord{
		CompanyName: "Acme",
		Summary:     "Makes anvils.",
		Comments:    "[2024-01-02 10:00] first call | [2024-03-04 11:30] contract signed",
	})

	assert.Equal(t, "company: Acme\nsummary: Makes anvils.\nlast comment: contract signed", doc.Content)
	assert.Equal(t, "Acme", doc.Tags.Company)
	assert.Equal(t, projector.DefaultSource, doc.Tags.Source)
}

func TestProject_NoComment(t *testing.T) {
	doc := projector.New("crm").Project(domain.ProfileRecord{CompanyName: "Globex", Summary: "Energy."})

	assert.Contains(t, doc.Content, "no comment")
	assert.NotContains(t, doc.Content, "last comment:")
	assert.Equal(t, "crm", doc.Tags.Source)
}

func TestProject_KeepsIdentityAsStored(t *testing.T) {
	doc := projector.New("").Project(domain.ProfileRecord{CompanyName: "  MiXeD Case "})
	assert.Equal(t, "  MiXeD Case ", doc.Tags.Company)
}

func TestLastComment(t *testing.T) {
	tests := []struct {
		name string
		log  string
		want string
	}{
		{"empty", "", ""},
		{"blank", "   ", ""},
		{"single without timestamp", "call back", "call back"},
		{"single with timestamp", "[2024-01-01 09:00] met CEO", "met CEO"},
		{"malformed bracket passes through", "[2024-01-01 09:00 met CEO", "[2024-01-01 09:00 met CEO"},
		{"bracket only stripped at start", "note [x] inside", "note [x] inside"},
		{"takes last entry", "a | b | [t] c", "c"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, projector.LastComment(tt.log))
		})
	}
}

func TestProjectAll_PreservesOrder(t *testing.T) {
	docs := projector.New("").ProjectAll([]domain.ProfileRecord{
		{CompanyName: "B"}, {CompanyName: "A"},
	})
	if assert.Len(t, docs, 2) {
		assert.Equal(t, "B", docs[0].Tags.Company)
		assert.Equal(t, "A", docs[1].Tags.Company)
	}
}

func TestIdentityKey(t *testing.T) {
	assert.Equal(t, "acme corp", projector.IdentityKey("  ACME Corp "))
	assert.Equal(t, projector.IdentityKey("acme"), projector.IdentityKey("Acme"))
}
