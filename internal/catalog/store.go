package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/timmy/russtat/internal/domain"
	"github.com/timmy/russtat/internal/logger"
	"github.com/timmy/russtat/internal/source"
	"github.com/timmy/russtat/internal/storage"
	"golang.org/x/sync/singleflight"
)

// DefaultSnapshotKey is the storage key of the catalog snapshot.
const DefaultSnapshotKey = "list_json.json"

// Options configures a Store.
type Options struct {
	SnapshotKey string
	XMLOnly     bool
}

// FindOptions controls title matching in Find.
type FindOptions struct {
	Regex         bool
	CaseSensitive bool
	FullMatch     bool
}

// Store holds the current catalog and keeps its snapshot in object storage.
type Store struct {
	portal    source.Portal
	storage   storage.ObjectStorage
	opts      Options
	group     singleflight.Group
	refreshMu sync.Mutex // one download and snapshot write at a time
	mu        sync.RWMutex
	datasets  []domain.Descriptor
}

// NewStore creates an empty catalog store. Call Refresh to populate it.
func NewStore(portal source.Portal, store storage.ObjectStorage, opts Options) *Store {
	if opts.SnapshotKey == "" {
		opts.SnapshotKey = DefaultSnapshotKey
	}
	return &Store{
		portal:  portal,
		storage: store,
		opts:    opts,
	}
}

// Refresh replaces the catalog. The snapshot is tried first unless overwrite is
// set; on a miss the portal catalog is downloaded and a new snapshot written.
// Concurrent calls with the same overwrite flag share one refresh; calls with
// different flags run one after the other.
// On failure the current catalog and the stored snapshot are left unchanged.
func (s *Store) Refresh(ctx context.Context, overwrite bool) ([]domain.Descriptor, error) {
	key := "cache"
	if overwrite {
		key = "overwrite"
	}
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		s.refreshMu.Lock()
		defer s.refreshMu.Unlock()
		return s.doRefresh(ctx, overwrite)
	})
	if err != nil {
		return nil, err
	}
	return clone(v.([]domain.Descriptor)), nil
}

func (s *Store) doRefresh(ctx context.Context, overwrite bool) ([]domain.Descriptor, error) {
	ctx = logger.SetComponent(ctx, "catalog")
	start := time.Now()

	if !overwrite {
		datasets, err := s.loadSnapshot(ctx)
		if err == nil {
			s.set(datasets)
			logger.With(logger.Fields{logger.FieldSource: s.storage.GetURL(s.opts.SnapshotKey)}).
				WithCount(len(datasets)).
				Info(ctx, "Loaded catalog snapshot")
			return datasets, nil
		}
		logger.FromContext(ctx).WithError(err).Warn("Catalog snapshot unavailable, downloading")
	}

	data, err := s.portal.FetchCatalog(ctx)
	if err != nil {
		return nil, fmt.Errorf("refresh catalog from %s: %w", s.portal.GetDisplayName(), err)
	}
	datasets, err := Decode(data, s.opts.XMLOnly)
	if err != nil {
		return nil, err
	}

	if err := s.saveSnapshot(ctx, datasets); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to save catalog snapshot")
	}
	s.set(datasets)

	logger.With(logger.Fields{logger.FieldSource: s.portal.GetSourceID()}).
		WithCount(len(datasets)).
		WithDuration(time.Since(start).Milliseconds()).
		Info(ctx, "Downloaded catalog")
	return datasets, nil
}

func (s *Store) loadSnapshot(ctx context.Context) ([]domain.Descriptor, error) {
	data, err := storage.ReadObject(ctx, s.storage, s.opts.SnapshotKey)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w: %v", s.opts.SnapshotKey, domain.ErrCacheMiss, err)
	}
	var datasets []domain.Descriptor
	if err := json.Unmarshal(data, &datasets); err != nil {
		return nil, fmt.Errorf("decode %s: %w: %v", s.opts.SnapshotKey, domain.ErrCacheMiss, err)
	}
	return datasets, nil
}

func (s *Store) saveSnapshot(ctx context.Context, datasets []domain.Descriptor) error {
	data, err := json.MarshalIndent(datasets, "", "    ")
	if err != nil {
		return err
	}
	return storage.WriteObject(ctx, s.storage, s.opts.SnapshotKey, data, "application/json")
}

func (s *Store) set(datasets []domain.Descriptor) {
	s.mu.Lock()
	s.datasets = datasets
	s.mu.Unlock()
}

// Datasets returns a copy of the current catalog in catalog order.
func (s *Store) Datasets() []domain.Descriptor {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.datasets)
}

// Len returns the number of descriptors in the current catalog.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.datasets)
}

// Find returns the descriptors whose title matches pattern, in catalog order.
// Descriptors without a title never match.
func (s *Store) Find(pattern string, opts FindOptions) ([]domain.Descriptor, error) {
	match, err := matcher(pattern, opts)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.Descriptor
	for _, d := range s.datasets {
		if d.Title != "" && match(d.Title) {
			out = append(out, d)
		}
	}
	return out, nil
}

func matcher(pattern string, opts FindOptions) (func(string) bool, error) {
	if opts.Regex {
		expr := pattern
		if opts.FullMatch {
			expr = `^(?:` + expr + `)$`
		}
		if !opts.CaseSensitive {
			expr = `(?i)` + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("pattern %q: %w: %v", pattern, domain.ErrInvalidArgument, err)
		}
		return re.MatchString, nil
	}

	switch {
	case opts.FullMatch && opts.CaseSensitive:
		return func(title string) bool { return title == pattern }, nil
	case opts.FullMatch:
		return func(title string) bool { return strings.EqualFold(title, pattern) }, nil
	case opts.CaseSensitive:
		return func(title string) bool { return strings.Contains(title, pattern) }, nil
	default:
		lower := strings.ToLower(pattern)
		return func(title string) bool { return strings.Contains(strings.ToLower(title), lower) }, nil
	}
}

// Resolve returns the descriptor selected by l.
func (s *Store) Resolve(l Lookup) (domain.Descriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if d, ok := l.match(s.datasets); ok {
		return d, nil
	}
	return domain.Descriptor{}, fmt.Errorf("dataset with %s: %w", l, domain.ErrNotFound)
}

// ResolveAll resolves every lookup in order and fails on the first miss.
func (s *Store) ResolveAll(lookups []Lookup) ([]domain.Descriptor, error) {
	out := make([]domain.Descriptor, 0, len(lookups))
	for _, l := range lookups {
		d, err := s.Resolve(l)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

func clone(ds []domain.Descriptor) []domain.Descriptor {
	if ds == nil {
		return nil
	}
	out := make([]domain.Descriptor, len(ds))
	copy(out, ds)
	return out
}
