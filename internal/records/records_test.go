package records_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-rag/internal/domain"
	"portfolio-rag/internal/errs"
	"portfolio-rag/internal/records"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 14, 9, 26, 0, 0, time.UTC)
}

func newStore(t *testing.T, content string) *records.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "portfolio.csv")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return records.New(path, records.WithClock(fixedClock))
}

func TestRecords_MissingFileIsEmpty(t *testing.T) {
	s := newStore(t, "")
	ctx := context.Background()

	recs, err := s.Records(ctx)
	require.NoError(t, err)
	assert.Empty(t, recs)

	mtime, err := s.LastModified(ctx)
	require.NoError(t, err)
	assert.True(t, mtime.IsZero())
}

func TestRecords_ReadsByHeaderName(t *testing.T) {
	s := newStore(t, "comments,company_name,resume\n\"a, b\",Acme,Makes anvils\n,Globex,\n")

	recs, err := s.Records(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.ProfileRecord{
		{CompanyName: "Acme", Summary: "Makes anvils", Comments: "a, b"},
		{CompanyName: "Globex"},
	}, recs)
}

func TestAdd(t *testing.T) {
	s := newStore(t, "")
	ctx := context.Background()

	ok, err := s.Add(ctx, "Acme", "Makes anvils", "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Add(ctx, "ACME", "duplicate", "")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Add(ctx, "Globex", "Energy", "first contact")
	require.NoError(t, err)
	assert.True(t, ok)

	names, err := s.Companies(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Acme", "Globex"}, names)

	data, err := os.ReadFile(s.Path())
	require.NoError(t, err)
	assert.Equal(t, "company_name,resume,comments\nAcme,Makes anvils,\nGlobex,Energy,first contact\n", string(data))
}

func TestAdd_RequiresName(t *testing.T) {
	_, err := newStore(t, "").Add(context.Background(), "  ", "x", "")
	assert.True(t, errs.HasCode(err, errs.CodeInvalidInput))
}

func TestAddComment(t *testing.T) {
	s := newStore(t, "company_name,resume,comments\nAcme,Makes anvils,\n")
	ctx := context.Background()

	ok, err := s.AddComment(ctx, "acme", "called the CEO")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.AddComment(ctx, "Acme", "sent proposal")
	require.NoError(t, err)
	assert.True(t, ok)

	rec, found, err := s.Get(ctx, "ACME")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "[2025-03-14 09:26] called the CEO | [2025-03-14 09:26] sent proposal", rec.Comments)

	last, err := s.LastComment(ctx, "Acme")
	require.NoError(t, err)
	assert.Equal(t, "sent proposal", last)
}

func TestAddComment_UnknownCompany(t *testing.T) {
	s := newStore(t, "company_name,resume,comments\nAcme,x,\n")
	ok, err := s.AddComment(context.Background(), "Initech", "hello")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLastComment_NotFound(t *testing.T) {
	_, err := newStore(t, "").LastComment(context.Background(), "Nobody")
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
}

func TestExists_CaseInsensitive(t *testing.T) {
	s := newStore(t, "company_name,resume,comments\nAcme Corp,x,\n")
	ok, err := s.Exists(context.Background(), "  acme corp ")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLastModified_AdvancesOnWrite(t *testing.T) {
	s := newStore(t, "company_name,resume,comments\nAcme,x,\n")
	ctx := context.Background()
	old := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(s.Path(), old, old))

	before, err := s.LastModified(ctx)
	require.NoError(t, err)
	_, err = s.Add(ctx, "Globex", "y", "")
	require.NoError(t, err)
	after, err := s.LastModified(ctx)
	require.NoError(t, err)
	assert.True(t, after.After(before))
}

func TestRecords_MissingCompanyColumn(t *testing.T) {
	_, err := newStore(t, "name,resume\nAcme,x\n").Records(context.Background())
	assert.True(t, errs.HasCode(err, errs.CodeRecordsReadFailure))
}
