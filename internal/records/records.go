// Package records stores the portfolio as a CSV file keyed by company name.
package records

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"
	"time"

	"portfolio-rag/internal/domain"
	"portfolio-rag/internal/errs"
	"portfolio-rag/internal/fsutil"
	"portfolio-rag/internal/projector"
)

// Header is the column layout of the portfolio file.
var Header = []string{"company_name", "resume", "comments"}

const (
	commentSeparator = " | "
	timestampLayout  = "2006-01-02 15:04"
)

// Store reads and writes the portfolio file. A missing file is an empty
// portfolio. Company names are compared case-insensitively.
type Store struct {
	path string
	now  func() time.Time
}

type Option func(*Store)

// WithClock overrides the clock used to timestamp comments.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

func New(path string, opts ...Option) *Store {
	s := &Store{path: path, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Path() string { return s.path }

// Records returns every row in file order.
func (s *Store) Records(ctx context.Context) ([]domain.ProfileRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.readAll()
}

// LastModified returns the file modification time, or the zero time when
// the file does not exist.
func (s *Store) LastModified(ctx context.Context) (time.Time, error) {
	if err := ctx.Err(); err != nil {
		return time.Time{}, err
	}
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, errs.Wrap(err, errs.CodeRecordsReadFailure, "stat portfolio file", errs.FieldPath(s.path))
	}
	return info.ModTime(), nil
}

func (s *Store) Exists(ctx context.Context, company string) (bool, error) {
	_, ok, err := s.Get(ctx, company)
	return ok, err
}

// Get returns the record whose name matches company, ignoring case.
func (s *Store) Get(ctx context.Context, company string) (domain.ProfileRecord, bool, error) {
	recs, err := s.Records(ctx)
	if err != nil {
		return domain.ProfileRecord{}, false, err
	}
	if i := indexOf(recs, company); i >= 0 {
		return recs[i], true, nil
	}
	return domain.ProfileRecord{}, false, nil
}

// Companies lists company names in file order.
func (s *Store) Companies(ctx context.Context) ([]string, error) {
	recs, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(recs))
	for _, r := range recs {
		names = append(names, r.CompanyName)
	}
	return names, nil
}

// Add appends a new company. It reports false without writing when a
// company with the same name already exists.
func (s *Store) Add(ctx context.Context, company, summary, comment string) (bool, error) {
	company = strings.TrimSpace(company)
	if company == "" {
		return false, errs.New(errs.CodeInvalidInput, "company name is required")
	}
	recs, err := s.Records(ctx)
	if err != nil {
		return false, err
	}
	if indexOf(recs, company) >= 0 {
		return false, nil
	}
	recs = append(recs, domain.ProfileRecord{CompanyName: company, Summary: summary, Comments: comment})
	if err := s.writeAll(recs); err != nil {
		return false, err
	}
	return true, nil
}

// AddComment appends a timestamped entry to the company's comment log.
// It reports false when the company is unknown.
func (s *Store) AddComment(ctx context.Context, company, text string) (bool, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return false, errs.New(errs.CodeInvalidInput, "comment text is required")
	}
	recs, err := s.Records(ctx)
	if err != nil {
		return false, err
	}
	i := indexOf(recs, company)
	if i < 0 {
		return false, nil
	}
	entry := "[" + s.now().Format(timestampLayout) + "] " + text
	if recs[i].Comments == "" {
		recs[i].Comments = entry
	} else {
		recs[i].Comments += commentSeparator + entry
	}
	if err := s.writeAll(recs); err != nil {
		return false, err
	}
	return true, nil
}

// LastComment returns the newest comment of a company without its
// timestamp. The error carries records.company.not_found for unknown names.
func (s *Store) LastComment(ctx context.Context, company string) (string, error) {
	rec, ok, err := s.Get(ctx, company)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", errs.New(errs.CodeRecordsNotFound, "company not found", errs.FieldCompany(company))
	}
	return projector.LastComment(rec.Comments), nil
}

func indexOf(recs []domain.ProfileRecord, company string) int {
	key := projector.IdentityKey(company)
	for i, r := range recs {
		if projector.IdentityKey(r.CompanyName) == key {
			return i
		}
	}
	return -1
}

func (s *Store) readAll() ([]domain.ProfileRecord, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeRecordsReadFailure, "opening portfolio file", errs.FieldPath(s.path))
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeRecordsReadFailure, "reading portfolio header", errs.FieldPath(s.path))
	}
	cols := columnIndex(header)
	if _, ok := cols["company_name"]; !ok {
		return nil, errs.New(errs.CodeRecordsReadFailure, "portfolio file has no company_name column", errs.FieldPath(s.path))
	}

	var out []domain.ProfileRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errs.Wrap(err, errs.CodeRecordsReadFailure, "reading portfolio row", errs.FieldPath(s.path))
		}
		rec := domain.ProfileRecord{
			CompanyName: cell(row, cols, "company_name"),
			Summary:     cell(row, cols, "resume"),
			Comments:    cell(row, cols, "comments"),
		}
		if strings.TrimSpace(rec.CompanyName) == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *Store) writeAll(recs []domain.ProfileRecord) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	_ = w.Write(Header)
	for _, r := range recs {
		_ = w.Write([]string{r.CompanyName, r.Summary, r.Comments})
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errs.Wrap(err, errs.CodeRecordsWriteFailure, "encoding portfolio", errs.FieldPath(s.path))
	}
	if err := fsutil.WriteFileAtomic(s.path, buf.Bytes(), 0o644); err != nil {
		return errs.Wrap(err, errs.CodeRecordsWriteFailure, "writing portfolio file", errs.FieldPath(s.path))
	}
	return nil
}

func columnIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))] = i
	}
	return cols
}

func cell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
