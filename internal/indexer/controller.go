// Package indexer keeps the persisted vector index in step with the
// portfolio. It decides between reusing, rebuilding and merging.
package indexer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"portfolio-rag/internal/domain"
	"portfolio-rag/internal/errs"
	"portfolio-rag/internal/metadata"
	"portfolio-rag/internal/metrics"
	"portfolio-rag/internal/projector"
	"portfolio-rag/internal/vectorstore"
)

// Outcome is the path an ensure call took.
type Outcome string

const (
	OutcomeEmpty   Outcome = "empty"
	OutcomeReused  Outcome = "reused"
	OutcomeRebuilt Outcome = "rebuilt"
	OutcomeMerged  Outcome = "merged"
)

// Config locates the persisted index.
type Config struct {
	IndexDir string
	Compress bool
	// Source is the provenance tag put on every document.
	Source string
}

// Controller owns the in-memory index for one session. It is not safe for
// concurrent use.
type Controller struct {
	source    domain.RecordSource
	embedder  domain.Embedder
	projector *projector.Projector
	meta      *metadata.Store
	artifact  string
	logger    *zap.Logger
	metrics   *metrics.Recorder
	now       func() time.Time

	index *vectorstore.Index
}

type Option func(*Controller)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *metrics.Recorder) Option {
	return func(c *Controller) { c.metrics = m }
}

func New(source domain.RecordSource, embedder domain.Embedder, cfg Config, opts ...Option) *Controller {
	c := &Controller{
		source:    source,
		embedder:  embedder,
		projector: projector.New(cfg.Source),
		artifact:  vectorstore.ArtifactPath(cfg.IndexDir, cfg.Compress),
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.meta = metadata.NewStore(cfg.IndexDir, c.logger)
	return c
}

// Index returns the current in-memory index, or nil when none is loaded.
func (c *Controller) Index() *vectorstore.Index { return c.index }

// ArtifactPath is where the index is persisted.
func (c *Controller) ArtifactPath() string { return c.artifact }

// EnsureCurrent makes the in-memory index reflect the record source. A
// source newer than the metadata always forces a rebuild. On error the
// previous in-memory index is kept.
func (c *Controller) EnsureCurrent(ctx context.Context, forceRebuild bool) (Outcome, error) {
	return c.observe(ctx, "ensure", func(ctx context.Context) (Outcome, error) {
		return c.ensure(ctx, forceRebuild)
	})
}

// Rebuild re-embeds every record.
func (c *Controller) Rebuild(ctx context.Context) (Outcome, error) {
	return c.EnsureCurrent(ctx, true)
}

// MergeNew embeds only records not yet indexed and merges them into the
// existing index. It falls back to a full rebuild when there is no usable
// index or when an already indexed record changed or disappeared.
func (c *Controller) MergeNew(ctx context.Context) (Outcome, error) {
	return c.observe(ctx, "merge_new", c.mergeNew)
}

func (c *Controller) observe(ctx context.Context, op string, fn func(context.Context) (Outcome, error)) (Outcome, error) {
	start := c.now()
	outcome, err := fn(ctx)
	if err != nil {
		code := errs.CodeOf(err)
		c.metrics.EnsureFailure(string(code))
		c.logger.Error("index refresh failed",
			zap.String("op", op),
			zap.String("code", string(code)),
			zap.Error(err),
		)
		return outcome, err
	}
	c.metrics.EnsureOutcome(string(outcome), c.index.Len())
	c.logger.Info("index ready",
		zap.String("op", op),
		zap.String("outcome", string(outcome)),
		zap.Int("documents", c.index.Len()),
		zap.Duration("elapsed", c.now().Sub(start)),
	)
	return outcome, nil
}

type snapshot struct {
	records []domain.ProfileRecord
	mtime   time.Time
	meta    metadata.IndexMetadata
}

func (c *Controller) snapshot(ctx context.Context) (snapshot, error) {
	recs, err := c.source.Records(ctx)
	if err != nil {
		return snapshot{}, err
	}
	mtime, err := c.source.LastModified(ctx)
	if err != nil {
		return snapshot{}, err
	}
	return snapshot{records: recs, mtime: mtime, meta: c.meta.Load()}, nil
}

func (c *Controller) ensure(ctx context.Context, force bool) (Outcome, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return "", err
	}
	if len(snap.records) == 0 {
		c.index = nil
		return OutcomeEmpty, nil
	}

	stale := metadata.NeedsRebuild(snap.meta, snap.mtime)
	if !stale && !force {
		idx, err := c.usableIndex(ctx)
		if err != nil {
			return "", err
		}
		if idx != nil {
			c.index = idx
			return OutcomeReused, nil
		}
	}
	if stale {
		c.logger.Debug("record source changed since last build",
			zap.Time("source_mtime", snap.mtime),
			zap.Int64("known_mtime", snap.meta.LastKnownSourceMtime),
		)
	}
	return c.rebuild(ctx, snap)
}

// usableIndex returns the in-memory index or loads the persisted one. It
// returns nil without error when there is nothing usable, including a
// corrupt artifact.
func (c *Controller) usableIndex(ctx context.Context) (*vectorstore.Index, error) {
	if !vectorstore.Exists(c.artifact) {
		return nil, nil
	}
	if c.index != nil {
		return c.index, nil
	}
	idx, err := vectorstore.Load(ctx, c.artifact, c.embedder)
	if err == nil {
		return idx, nil
	}
	if errs.IsCorruptIndex(err) {
		c.logger.Warn("persisted index unusable, rebuilding",
			zap.String("code", string(errs.CodeCorruptIndex)),
			zap.String("path", c.artifact),
			zap.Error(err),
		)
		return nil, nil
	}
	return nil, err
}

func (c *Controller) rebuild(ctx context.Context, snap snapshot) (Outcome, error) {
	start := c.now()
	docs := c.projector.ProjectAll(snap.records)
	idx, err := vectorstore.Build(ctx, c.embedder, docs)
	if err != nil {
		return "", err
	}
	if err := idx.Persist(c.artifact); err != nil {
		return "", err
	}
	meta := metadata.IndexMetadata{
		LastKnownSourceMtime: snap.mtime.UnixNano(),
		IndexedIdentities:    idx.ListIndexedIdentities(),
		Fingerprints:         metadata.Fingerprints(docs),
		UpdatedAt:            c.now().UTC(),
	}
	if err := c.meta.Save(meta); err != nil {
		return "", err
	}
	c.index = idx
	c.metrics.BuildDuration(string(OutcomeRebuilt), c.now().Sub(start))
	return OutcomeRebuilt, nil
}

func (c *Controller) mergeNew(ctx context.Context) (Outcome, error) {
	snap, err := c.snapshot(ctx)
	if err != nil {
		return "", err
	}
	if len(snap.records) == 0 {
		c.index = nil
		return OutcomeEmpty, nil
	}
	primary, err := c.usableIndex(ctx)
	if err != nil {
		return "", err
	}
	if primary == nil {
		return c.rebuild(ctx, snap)
	}

	docs := c.projector.ProjectAll(snap.records)
	known, fingerprints := indexedState(snap.meta, primary)
	if metadata.NeedsRebuild(snap.meta, snap.mtime) && !pureAppend(fingerprints, docs) {
		c.logger.Info("indexed records changed, merge not possible")
		return c.rebuild(ctx, snap)
	}

	var fresh []domain.Document
	for _, d := range docs {
		key := projector.IdentityKey(d.Tags.Company)
		if _, ok := known[key]; ok {
			continue
		}
		known[key] = d.Tags.Company
		fresh = append(fresh, d)
	}

	if len(fresh) == 0 {
		if snap.mtime.UnixNano() != snap.meta.LastKnownSourceMtime || len(snap.meta.IndexedIdentities) == 0 {
			meta := snap.meta
			meta.LastKnownSourceMtime = snap.mtime.UnixNano()
			meta.IndexedIdentities = values(known)
			meta.Fingerprints = fingerprints
			meta.UpdatedAt = c.now().UTC()
			if err := c.meta.Save(meta); err != nil {
				return "", err
			}
		}
		c.index = primary
		return OutcomeReused, nil
	}

	start := c.now()
	secondary, err := vectorstore.Build(ctx, c.embedder, fresh)
	if err != nil {
		return "", err
	}
	merged, err := primary.Clone(ctx)
	if err != nil {
		return "", err
	}
	if err := merged.Merge(ctx, secondary); err != nil {
		return "", err
	}
	if err := merged.Persist(c.artifact); err != nil {
		return "", err
	}
	for k, v := range metadata.Fingerprints(fresh) {
		fingerprints[k] = v
	}
	meta := metadata.IndexMetadata{
		LastKnownSourceMtime: snap.mtime.UnixNano(),
		IndexedIdentities:    values(known),
		Fingerprints:         fingerprints,
		UpdatedAt:            c.now().UTC(),
	}
	if err := c.meta.Save(meta); err != nil {
		return "", err
	}
	c.index = merged
	c.metrics.BuildDuration(string(OutcomeMerged), c.now().Sub(start))
	return OutcomeMerged, nil
}

// indexedState returns what is already embedded, keyed by identity key.
// The metadata is authoritative; the index documents are consulted only
// when the metadata records nothing.
func indexedState(meta metadata.IndexMetadata, idx *vectorstore.Index) (map[string]string, map[string]string) {
	known := make(map[string]string)
	fingerprints := make(map[string]string)
	if len(meta.IndexedIdentities) > 0 {
		for _, id := range meta.IndexedIdentities {
			known[projector.IdentityKey(id)] = id
		}
		for k, v := range meta.Fingerprints {
			fingerprints[k] = v
		}
	} else {
		for _, id := range idx.ListIndexedIdentities() {
			known[projector.IdentityKey(id)] = id
		}
	}
	if len(fingerprints) == 0 {
		fingerprints = metadata.Fingerprints(idx.Documents())
	}
	return known, fingerprints
}

// pureAppend reports whether every previously indexed record still renders
// to the same content. Only then can new records be merged without a
// rebuild.
func pureAppend(previous map[string]string, docs []domain.Document) bool {
	if len(previous) == 0 {
		return false
	}
	current := metadata.Fingerprints(docs)
	for key, fp := range previous {
		if current[key] != fp {
			return false
		}
	}
	return true
}

func values(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	return out
}
