// Package metadata persists what the vector index was last built from.
package metadata

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"

	"portfolio-rag/internal/domain"
	"portfolio-rag/internal/errs"
	"portfolio-rag/internal/fsutil"
	"portfolio-rag/internal/projector"
)

// FileName is the metadata file inside the index directory.
const FileName = "metadata.json"

// IndexMetadata records the source state the persisted index reflects.
// LastKnownSourceMtime is in unix nanoseconds; zero means never built.
type IndexMetadata struct {
	LastKnownSourceMtime int64             `json:"last_known_source_mtime"`
	IndexedIdentities    []string          `json:"indexed_identities"`
	Fingerprints         map[string]string `json:"fingerprints,omitempty"`
	UpdatedAt            time.Time         `json:"updated_at"`
}

// Known returns the normalized identity keys recorded as embedded.
func (m IndexMetadata) Known() map[string]struct{} {
	known := make(map[string]struct{}, len(m.IndexedIdentities))
	for _, id := range m.IndexedIdentities {
		known[projector.IdentityKey(id)] = struct{}{}
	}
	return known
}

// Store reads and writes the metadata file.
type Store struct {
	path   string
	logger *zap.Logger
}

func NewStore(dir string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{path: filepath.Join(dir, FileName), logger: logger}
}

func (s *Store) Path() string { return s.path }

// Load returns the persisted metadata. A missing, unreadable or corrupt
// file yields the zero value; only the latter two are logged.
func (s *Store) Load() IndexMetadata {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return IndexMetadata{}
	}
	if err != nil {
		s.warn(err)
		return IndexMetadata{}
	}
	var meta IndexMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		s.warn(err)
		return IndexMetadata{}
	}
	if meta.LastKnownSourceMtime < 0 {
		s.warn(errors.New("negative source mtime"))
		return IndexMetadata{}
	}
	return meta
}

func (s *Store) warn(err error) {
	s.logger.Warn("index metadata unreadable, treating as absent",
		zap.String("code", string(errs.CodeMetadataUnreadable)),
		zap.String("path", s.path),
		zap.Error(err),
	)
}

// Save replaces the metadata file atomically. Identities are written
// sorted so the file is stable across runs.
func (s *Store) Save(meta IndexMetadata) error {
	ids := append([]string(nil), meta.IndexedIdentities...)
	sort.Strings(ids)
	meta.IndexedIdentities = ids
	if meta.UpdatedAt.IsZero() {
		meta.UpdatedAt = time.Now().UTC()
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errs.Wrap(err, errs.CodePersistFailure, "encoding index metadata", errs.FieldPath(s.path))
	}
	if err := fsutil.WriteFileAtomic(s.path, data, 0o644); err != nil {
		return errs.Wrap(err, errs.CodePersistFailure, "writing index metadata", errs.FieldPath(s.path))
	}
	return nil
}

// NeedsRebuild reports whether the source changed after the last build.
func NeedsRebuild(meta IndexMetadata, sourceMtime time.Time) bool {
	if sourceMtime.IsZero() {
		return false
	}
	return sourceMtime.UnixNano() > meta.LastKnownSourceMtime
}

// Fingerprint is a stable hash of a document's rendered content.
func Fingerprint(doc domain.Document) string {
	h := sha1.Sum([]byte(doc.Content))
	return hex.EncodeToString(h[:])
}

// Fingerprints maps each document's identity key to its fingerprint.
func Fingerprints(docs []domain.Document) map[string]string {
	out := make(map[string]string, len(docs))
	for _, d := range docs {
		out[projector.IdentityKey(d.Tags.Company)] = Fingerprint(d)
	}
	return out
}
