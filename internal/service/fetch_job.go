package service

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/timmy/russtat/internal/domain"
)

// CachePolicy decides where a job reads from and what it leaves behind.
type CachePolicy struct {
	// LoadFromCache returns a stored dataset snapshot when one exists.
	LoadFromCache bool
	// SaveToCache writes the parsed dataset as a snapshot.
	SaveToCache bool
	// Overwrite downloads the source document even if a stored copy exists.
	Overwrite bool
	// DeleteSourceAfterParse removes the source document once parsed.
	DeleteSourceAfterParse bool
}

// ResultFunc receives the outcome of one started job: the parsed dataset, or
// nil when the job failed. It is called from worker goroutines concurrently.
type ResultFunc func(ctx context.Context, ds *domain.Dataset)

// Job is one dataset to fetch and parse.
type Job struct {
	Descriptor domain.Descriptor
	Policy     CachePolicy

	// SourceKey and SnapshotKey override the storage keys of the downloaded
	// document and the dataset snapshot.
	SourceKey   string
	SnapshotKey string

	// Sink, when set, receives this job's outcome instead of the run callback.
	Sink ResultFunc
}

func (j Job) sourceKey() string {
	if j.SourceKey != "" {
		return j.SourceKey
	}
	return j.Descriptor.Identifier + ".xml"
}

func (j Job) snapshotKey() string {
	if j.SnapshotKey != "" {
		return j.SnapshotKey
	}
	return j.Descriptor.Identifier + ".json"
}

// Overrides carries optional per-job values for BuildJobs. Each slice is
// either empty or exactly as long as the descriptor list; empty entries keep
// the default.
type Overrides struct {
	SourceKeys   []string
	SnapshotKeys []string
	Sinks        []ResultFunc
}

// BuildJobs creates one job per descriptor sharing the same policy.
func BuildJobs(descriptors []domain.Descriptor, policy CachePolicy, overrides Overrides) ([]Job, error) {
	n := len(descriptors)
	for name, l := range map[string]int{
		"source keys":   len(overrides.SourceKeys),
		"snapshot keys": len(overrides.SnapshotKeys),
		"sinks":         len(overrides.Sinks),
	} {
		if l != 0 && l != n {
			return nil, fmt.Errorf("%d %s for %d datasets: %w", l, name, n, domain.ErrInvalidArgument)
		}
	}

	jobs := make([]Job, n)
	for i, d := range descriptors {
		jobs[i] = Job{Descriptor: d, Policy: policy}
		if len(overrides.SourceKeys) > 0 {
			jobs[i].SourceKey = overrides.SourceKeys[i]
		}
		if len(overrides.SnapshotKeys) > 0 {
			jobs[i].SnapshotKey = overrides.SnapshotKeys[i]
		}
		if len(overrides.Sinks) > 0 {
			jobs[i].Sink = overrides.Sinks[i]
		}
	}
	return jobs, nil
}

// Canceller is a run-scoped cooperative stop flag. Workers poll it before
// starting a job; jobs already started are never interrupted.
type Canceller struct {
	stopped atomic.Bool
}

// NewCanceller returns an untripped canceller.
func NewCanceller() *Canceller {
	return &Canceller{}
}

// Cancel trips the flag. Safe to call more than once and from any goroutine.
func (c *Canceller) Cancel() {
	c.stopped.Store(true)
}

// Cancelled reports whether Cancel was called.
func (c *Canceller) Cancelled() bool {
	return c.stopped.Load()
}
