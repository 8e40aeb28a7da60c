package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/philippgille/chromem-go"

	"portfolio-rag/internal/domain"
	"portfolio-rag/internal/errs"
	"portfolio-rag/internal/fsutil"
)

// ArtifactName is the index file inside the index directory.
const ArtifactName = "index.gob"

// ArtifactPath returns the index file path for dir. Compressed artifacts
// carry a .gz suffix.
func ArtifactPath(dir string, compress bool) string {
	name := ArtifactName
	if compress {
		name += ".gz"
	}
	return filepath.Join(dir, name)
}

// Exists reports whether an artifact is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Persist writes the index to path, replacing any previous artifact. The
// export goes to a temp file first so a crash never leaves half an index.
func (idx *Index) Persist(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(err, errs.CodePersistFailure, "creating index directory", errs.FieldPath(dir))
	}
	compress := strings.HasSuffix(path, ".gz")
	tmp := filepath.Join(dir, "tmp-"+filepath.Base(path))
	if err := idx.db.ExportToFile(tmp, compress, ""); err != nil {
		os.Remove(tmp)
		return errs.Wrap(err, errs.CodePersistFailure, "exporting index", errs.FieldPath(path))
	}
	if err := fsutil.Commit(tmp, path); err != nil {
		return errs.Wrap(err, errs.CodePersistFailure, "replacing index", errs.FieldPath(path))
	}
	return nil
}

// Load reads an index persisted by Persist. Every failure, including an
// artifact written by a different layout or embedder, is reported as
// index.load.corrupt.
func Load(ctx context.Context, path string, embedder domain.Embedder) (*Index, error) {
	idx, err := load(ctx, path, embedder)
	if err != nil {
		return nil, errs.Wrap(err, errs.CodeCorruptIndex, "index artifact unusable", errs.FieldPath(path))
	}
	return idx, nil
}

func load(ctx context.Context, path string, embedder domain.Embedder) (*Index, error) {
	db := chromem.NewDB()
	if err := db.ImportFromFile(path, ""); err != nil {
		return nil, fmt.Errorf("importing: %w", err)
	}
	col := db.GetCollection(CollectionName, embedFunc(embedder))
	if col == nil {
		found := make([]string, 0)
		for name := range db.ListCollections() {
			found = append(found, name)
		}
		return nil, fmt.Errorf("collection %s not found (have %v)", CollectionName, found)
	}

	n := col.Count()
	entries := make([]entry, 0, n)
	for i := 0; i < n; i++ {
		d, err := col.GetByID(ctx, strconv.Itoa(i))
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		company, ok := d.Metadata[metaCompany]
		if !ok {
			return nil, fmt.Errorf("document %d has no company", i)
		}
		if name := d.Metadata[metaEmbedder]; name != embedder.Name() {
			return nil, fmt.Errorf("document %d embedded by %q, want %q", i, name, embedder.Name())
		}
		if len(d.Embedding) == 0 || (len(entries) > 0 && len(d.Embedding) != len(entries[0].vec)) {
			return nil, errors.New("inconsistent vector dimensions")
		}
		entries = append(entries, entry{
			doc: domain.Document{
				Content: d.Content,
				Tags:    domain.Tags{Company: company, Source: d.Metadata[metaSource]},
			},
			vec: d.Embedding,
		})
	}
	return &Index{embedder: embedder, db: db, col: col, entries: entries}, nil
}
