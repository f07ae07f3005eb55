package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/timmy/russtat/internal/domain"
	"github.com/timmy/russtat/internal/logger"
	"github.com/timmy/russtat/internal/repository"
	"github.com/timmy/russtat/internal/sdmx"
	"github.com/timmy/russtat/internal/source"
	"github.com/timmy/russtat/internal/storage"
)

// FetchService downloads, parses and delivers datasets on a bounded worker pool.
type FetchService struct {
	portal  source.Portal
	storage storage.ObjectStorage
	parser  *sdmx.Parser
	runs    *repository.RunRepository
	logger  *logger.Logger
	workers int
}

// FetchConfig holds configuration for the fetch service
type FetchConfig struct {
	Workers int // 0 means runtime.GOMAXPROCS(0)
}

// NewFetchService creates a new fetch service. runs may be nil, in which case
// runs are not recorded.
func NewFetchService(
	portal source.Portal,
	objectStorage storage.ObjectStorage,
	parser *sdmx.Parser,
	runs *repository.RunRepository,
	log *logger.Logger,
	cfg *FetchConfig,
) *FetchService {
	workers := 0
	if cfg != nil {
		workers = cfg.Workers
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if log == nil {
		log = logger.GetDefault()
	}
	return &FetchService{
		portal:  portal,
		storage: objectStorage,
		parser:  parser,
		runs:    runs,
		logger:  log,
		workers: workers,
	}
}

// FetchStats holds statistics for a fetch run
type FetchStats struct {
	TotalJobs     int64
	ProcessedJobs int64 // started jobs, successful or not
	FailedJobs    int64
	SkippedJobs   int64 // never started because of cancellation
	CachedJobs    int64 // served from a dataset snapshot
	StartTime     time.Time
	EndTime       time.Time
}

// RunResult is the aggregate outcome of a run.
type RunResult struct {
	RunID string
	// Outcomes is in submission order; failed and skipped jobs are nil.
	Outcomes []*domain.Dataset
	Stats    FetchStats
}

// Err reports jobs skipped by cancellation as an error wrapping domain.ErrCancelled.
// Per-job failures are not reported here.
func (r *RunResult) Err() error {
	if r.Stats.SkippedJobs > 0 {
		return fmt.Errorf("%d of %d jobs skipped: %w", r.Stats.SkippedJobs, r.Stats.TotalJobs, domain.ErrCancelled)
	}
	return nil
}

type jobResult struct {
	index     int
	dataset   string
	fromCache bool
	err       error
}

// Run processes jobs with a fresh canceller tripped only by ctx.
func (s *FetchService) Run(ctx context.Context, jobs []Job, onResult ResultFunc) (*RunResult, error) {
	return s.RunWithCanceller(ctx, jobs, onResult, NewCanceller())
}

// RunWithCanceller processes jobs on the worker pool and blocks until every
// started job has delivered its result.
//
// Each started job delivers exactly one result, to its own Sink or to
// onResult. Once cancel is tripped, or ctx is done, jobs that have not started
// are skipped without a callback. Started jobs finish their network calls on
// a context detached from ctx cancellation.
func (s *FetchService) RunWithCanceller(ctx context.Context, jobs []Job, onResult ResultFunc, cancel *Canceller) (*RunResult, error) {
	if cancel == nil {
		return nil, fmt.Errorf("nil canceller: %w", domain.ErrInvalidArgument)
	}
	if onResult == nil {
		for i, j := range jobs {
			if j.Sink == nil {
				return nil, fmt.Errorf("job %d has no result sink and no run callback: %w", i, domain.ErrInvalidArgument)
			}
		}
	}

	runID := uuid.New().String()
	ctx = logger.SetRunID(s.logger.WithContext(ctx), runID)
	ctx = logger.SetComponent(ctx, "fetch")

	result := &RunResult{
		RunID:    runID,
		Outcomes: make([]*domain.Dataset, len(jobs)),
		Stats: FetchStats{
			TotalJobs: int64(len(jobs)),
			StartTime: time.Now(),
		},
	}
	stats := &result.Stats
	run := s.startRun(ctx, runID, len(jobs))

	// ctx cancellation trips the run-scoped flag
	stopWatch := context.AfterFunc(ctx, cancel.Cancel)
	defer stopWatch()

	workers := s.workers
	if workers > len(jobs) {
		workers = len(jobs)
	}

	logger.FromContext(ctx).WithFields(logger.Fields{
		"jobs":    len(jobs),
		"workers": workers,
	}).Info("Starting fetch run")

	indexChan := make(chan int, workers*2)
	resultsChan := make(chan *jobResult, workers*2)

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.worker(ctx, jobs, onResult, cancel, indexChan, resultsChan, result.Outcomes)
		}()
	}

	// Start result collector
	done := make(chan struct{})
	go func() {
		for r := range resultsChan {
			atomic.AddInt64(&stats.ProcessedJobs, 1)
			if r.fromCache {
				atomic.AddInt64(&stats.CachedJobs, 1)
			}
			if r.err != nil {
				atomic.AddInt64(&stats.FailedJobs, 1)
				logger.FromContext(ctx).WithFields(logger.Fields{
					logger.FieldJobID:   r.index,
					logger.FieldDataset: r.dataset,
				}).WithError(r.err).Error("Fetch job failed")
			}
		}
		close(done)
	}()

	for i := range jobs {
		if stopped(ctx, cancel) {
			break
		}
		indexChan <- i
	}

	// Close index channel and wait for workers
	close(indexChan)
	wg.Wait()

	// Close results channel and wait for collector
	close(resultsChan)
	<-done

	stats.SkippedJobs = stats.TotalJobs - stats.ProcessedJobs
	stats.EndTime = time.Now()

	logger.With(logger.Fields{
		"total":     stats.TotalJobs,
		"processed": stats.ProcessedJobs,
		"failed":    stats.FailedJobs,
		"skipped":   stats.SkippedJobs,
		"cached":    stats.CachedJobs,
	}).WithDuration(stats.EndTime.Sub(stats.StartTime).Milliseconds()).Info(ctx, "Fetch run completed")

	s.finishRun(ctx, run, stats, stopped(ctx, cancel))
	return result, nil
}

func (s *FetchService) worker(
	ctx context.Context,
	jobs []Job,
	onResult ResultFunc,
	cancel *Canceller,
	indices <-chan int,
	results chan<- *jobResult,
	outcomes []*domain.Dataset,
) {
	// started jobs must not be cut short by the caller's cancellation
	detached := context.WithoutCancel(ctx)

	for i := range indices {
		if stopped(ctx, cancel) {
			continue
		}

		job := jobs[i]
		jobCtx := logger.WithFields(detached, logger.Fields{
			logger.FieldJobID:   i,
			logger.FieldDataset: job.Descriptor.Identifier,
		})

		r := &jobResult{index: i, dataset: job.Descriptor.Identifier}
		ds, fromCache, err := s.safeProcess(jobCtx, job)
		r.fromCache = fromCache
		if err != nil {
			r.err = err
			ds = nil
		}
		outcomes[i] = ds

		sink := job.Sink
		if sink == nil {
			sink = onResult
		}
		if err := deliver(jobCtx, sink, ds); err != nil && r.err == nil {
			outcomes[i] = nil
			r.err = err
		}

		results <- r
	}
}

// stopped polls the run's cancellation state without blocking.
func stopped(ctx context.Context, cancel *Canceller) bool {
	return cancel.Cancelled() || ctx.Err() != nil
}

// safeProcess runs processJob, turning a panic into a job failure.
func (s *FetchService) safeProcess(ctx context.Context, job Job) (ds *domain.Dataset, fromCache bool, err error) {
	defer func() {
		if p := recover(); p != nil {
			ds, err = nil, fmt.Errorf("job panicked: %v", p)
		}
	}()
	return s.processJob(ctx, job)
}

func deliver(ctx context.Context, sink ResultFunc, ds *domain.Dataset) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("result callback panicked: %v", p)
		}
	}()
	sink(ctx, ds)
	return nil
}

func (s *FetchService) processJob(ctx context.Context, job Job) (*domain.Dataset, bool, error) {
	if job.Policy.LoadFromCache {
		ds, err := s.loadSnapshot(ctx, job.snapshotKey())
		if err == nil {
			logger.CtxDebug(ctx, "Loaded dataset snapshot")
			return ds, true, nil
		}
		if !errors.Is(err, storage.ErrObjectNotFound) {
			logger.FromContext(ctx).WithError(err).Warn("Unusable dataset snapshot, fetching source")
		}
	}

	if err := job.Descriptor.Validate(); err != nil {
		return nil, false, err
	}

	doc, err := s.sourceDocument(ctx, job)
	if err != nil {
		return nil, false, err
	}

	start := time.Now()
	ds, err := s.parser.Parse(doc)
	if err != nil {
		return nil, false, fmt.Errorf("parse %s: %w", job.Descriptor.Identifier, err)
	}
	logger.With(logger.Fields{
		logger.FieldCount: len(ds.Observations),
		logger.FieldSize:  len(doc),
	}).WithDuration(time.Since(start).Milliseconds()).Debug(ctx, "Parsed dataset")

	if job.Policy.SaveToCache {
		if err := s.saveSnapshot(ctx, job.snapshotKey(), ds); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to save dataset snapshot")
		}
	}
	if job.Policy.DeleteSourceAfterParse {
		if err := s.storage.Delete(ctx, job.sourceKey()); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to delete source document")
		}
	}
	return ds, false, nil
}

// sourceDocument returns the stored source document unless Overwrite is set or
// none is stored; otherwise it downloads the document and, when the policy
// keeps sources, stores it.
func (s *FetchService) sourceDocument(ctx context.Context, job Job) ([]byte, error) {
	key := job.sourceKey()
	if !job.Policy.Overwrite {
		doc, err := storage.ReadObject(ctx, s.storage, key)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, storage.ErrObjectNotFound) {
			logger.FromContext(ctx).WithError(err).Warn("Failed to read stored source document")
		}
	}

	start := time.Now()
	doc, err := s.portal.FetchDocument(ctx, job.Descriptor.Link)
	if err != nil {
		return nil, err
	}
	logger.With(logger.Fields{
		logger.FieldSource: job.Descriptor.Link,
		logger.FieldSize:   len(doc),
	}).WithDuration(time.Since(start).Milliseconds()).Debug(ctx, "Downloaded source document")

	if !job.Policy.DeleteSourceAfterParse {
		if err := storage.WriteObject(ctx, s.storage, key, doc, "application/xml"); err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to store source document")
		}
	}
	return doc, nil
}

func (s *FetchService) loadSnapshot(ctx context.Context, key string) (*domain.Dataset, error) {
	data, err := storage.ReadObject(ctx, s.storage, key)
	if err != nil {
		return nil, err
	}
	return DecodeSnapshot(data)
}

func (s *FetchService) saveSnapshot(ctx context.Context, key string, ds *domain.Dataset) error {
	data, err := EncodeSnapshot(ds)
	if err != nil {
		return err
	}
	return storage.WriteObject(ctx, s.storage, key, data, "application/json")
}

// EncodeSnapshot serializes a dataset to its JSON snapshot form.
func EncodeSnapshot(ds *domain.Dataset) ([]byte, error) {
	data, err := json.MarshalIndent(ds, "", "    ")
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// DecodeSnapshot reads a snapshot written by EncodeSnapshot.
func DecodeSnapshot(data []byte) (*domain.Dataset, error) {
	var ds domain.Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w: %v", domain.ErrCacheMiss, err)
	}
	return &ds, nil
}

func (s *FetchService) startRun(ctx context.Context, runID string, total int) *domain.FetchRun {
	if s.runs == nil {
		return nil
	}
	now := time.Now()
	run := &domain.FetchRun{
		ID:        runID,
		Status:    domain.RunStatusRunning,
		TotalJobs: total,
		StartedAt: &now,
	}
	if err := s.runs.Create(ctx, run); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to record fetch run")
		return nil
	}
	return run
}

func (s *FetchService) finishRun(ctx context.Context, run *domain.FetchRun, stats *FetchStats, cancelled bool) {
	if run == nil {
		return
	}
	run.ProcessedJobs = int(stats.ProcessedJobs)
	run.FailedJobs = int(stats.FailedJobs)
	run.SkippedJobs = int(stats.SkippedJobs)
	run.CachedJobs = int(stats.CachedJobs)
	run.CompletedAt = &stats.EndTime

	switch {
	case cancelled:
		run.Status = domain.RunStatusCancelled
		if stats.SkippedJobs > 0 {
			run.ErrorLog = strconv.FormatInt(stats.SkippedJobs, 10) + " jobs skipped: " + domain.ErrCancelled.Error()
		}
	case stats.TotalJobs > 0 && stats.FailedJobs == stats.TotalJobs:
		run.Status = domain.RunStatusFailed
		run.ErrorLog = strconv.FormatInt(stats.FailedJobs, 10) + " jobs failed"
	default:
		run.Status = domain.RunStatusCompleted
	}

	if err := s.runs.Update(context.WithoutCancel(ctx), run); err != nil {
		logger.FromContext(ctx).WithError(err).Warn("Failed to update fetch run")
	}
}
