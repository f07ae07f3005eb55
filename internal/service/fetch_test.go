package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/timmy/russtat/internal/domain"
	"github.com/timmy/russtat/internal/sdmx"
	"github.com/timmy/russtat/internal/storage"
)

type fakePortal struct {
	docs    map[string][]byte
	calls   atomic.Int32
	onFetch func(ctx context.Context, link string)
}

func (p *fakePortal) GetSourceID() string    { return "fake" }
func (p *fakePortal) GetDisplayName() string { return "Fake portal" }

func (p *fakePortal) FetchCatalog(ctx context.Context) ([]byte, error) {
	return nil, fmt.Errorf("no catalog: %w", domain.ErrNetwork)
}

func (p *fakePortal) FetchDocument(ctx context.Context, link string) ([]byte, error) {
	p.calls.Add(1)
	if p.onFetch != nil {
		p.onFetch(ctx, link)
	}
	if ctx.Err() != nil {
		return nil, fmt.Errorf("GET %s: %v: %w", link, ctx.Err(), domain.ErrNetwork)
	}
	doc, ok := p.docs[link]
	if !ok {
		return nil, fmt.Errorf("GET %s: status 503: %w", link, domain.ErrNetwork)
	}
	return doc, nil
}

func sdmxDoc(id string) []byte {
	return []byte(fmt.Sprintf(`<message:GenericData xmlns:message="%s" xmlns:generic="%s">
<message:Header>
  <message:Prepared>2023-01-10T12:00:00</message:Prepared>
  <message:DataSetID>%s</message:DataSetID>
  <message:DataSetAgency>FSGS</message:DataSetAgency>
</message:Header>
<message:Description>
  <message:Indicator name="Dataset %s">
    <message:DataRange start="2020" end="2021"/>
    <message:Allocations><message:Allocation id="1"><message:Name>A/B</message:Name></message:Allocation></message:Allocations>
  </message:Indicator>
</message:Description>
<message:DataSet>
  <generic:Series>
    <generic:SeriesKey><generic:Value concept="s" value="1"/></generic:SeriesKey>
    <generic:Obs><generic:Time>2020</generic:Time><generic:ObsValue value="1,5"/></generic:Obs>
  </generic:Series>
</message:DataSet>
</message:GenericData>`, sdmx.NSMessage, sdmx.NSGeneric, id, id))
}

func descriptor(id string) domain.Descriptor {
	return domain.Descriptor{
		Identifier: id,
		Title:      "Dataset " + id,
		Link:       "http://portal.test/" + id,
		Format:     domain.FormatXML,
	}
}

func newTestFetch(t *testing.T, portal *fakePortal, workers int) (*FetchService, storage.ObjectStorage) {
	t.Helper()
	local, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}
	svc := NewFetchService(portal, local, sdmx.NewParser(sdmx.DefaultTimestampOffset), nil, nil, &FetchConfig{Workers: workers})
	return svc, local
}

// recorder collects callback invocations per job index.
type recorder struct {
	mu    sync.Mutex
	calls map[int][]*domain.Dataset
}

func newRecorder() *recorder {
	return &recorder{calls: make(map[int][]*domain.Dataset)}
}

func (r *recorder) sinks(n int) []ResultFunc {
	out := make([]ResultFunc, n)
	for i := range out {
		i := i
		out[i] = func(ctx context.Context, ds *domain.Dataset) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.calls[i] = append(r.calls[i], ds)
		}
	}
	return out
}

func TestFetchService_FailureIsolation(t *testing.T) {
	portal := &fakePortal{docs: map[string][]byte{
		"http://portal.test/d1": sdmxDoc("d1"),
		"http://portal.test/d3": sdmxDoc("d3"),
	}}
	svc, _ := newTestFetch(t, portal, 3)

	rec := newRecorder()
	jobs, err := BuildJobs(
		[]domain.Descriptor{descriptor("d1"), descriptor("d2"), descriptor("d3")},
		CachePolicy{Overwrite: true, DeleteSourceAfterParse: true},
		Overrides{Sinks: rec.sinks(3)},
	)
	if err != nil {
		t.Fatalf("BuildJobs() error = %v", err)
	}

	res, err := svc.Run(context.Background(), jobs, nil)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(res.Outcomes) != 3 {
		t.Fatalf("got %d outcomes, want 3", len(res.Outcomes))
	}
	if res.Outcomes[0] == nil || res.Outcomes[0].ID != "d1" {
		t.Errorf("outcome 0 = %+v, want d1", res.Outcomes[0])
	}
	if res.Outcomes[1] != nil {
		t.Errorf("outcome 1 = %+v, want nil", res.Outcomes[1])
	}
	if res.Outcomes[2] == nil || res.Outcomes[2].ID != "d3" {
		t.Errorf("outcome 2 = %+v, want d3", res.Outcomes[2])
	}

	for i := 0; i < 3; i++ {
		if got := len(rec.calls[i]); got != 1 {
			t.Errorf("job %d callback fired %d times, want 1", i, got)
		}
	}
	if rec.calls[1][0] != nil {
		t.Error("failed job delivered a dataset")
	}
	if res.Stats.FailedJobs != 1 || res.Stats.ProcessedJobs != 3 || res.Stats.SkippedJobs != 0 {
		t.Errorf("stats = %+v", res.Stats)
	}
}

func TestFetchService_Cancellation(t *testing.T) {
	tests := []struct {
		name string
		// trip is called from inside job #1 while it is running
		trip func(c *Canceller, cancelCtx context.CancelFunc)
	}{
		{"canceller", func(c *Canceller, _ context.CancelFunc) { c.Cancel() }},
		{"context", func(_ *Canceller, cancel context.CancelFunc) { cancel() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancelCtx := context.WithCancel(context.Background())
			defer cancelCtx()
			canceller := NewCanceller()

			portal := &fakePortal{docs: map[string][]byte{
				"http://portal.test/d1": sdmxDoc("d1"),
				"http://portal.test/d2": sdmxDoc("d2"),
				"http://portal.test/d3": sdmxDoc("d3"),
			}}
			var once sync.Once
			portal.onFetch = func(context.Context, string) {
				once.Do(func() { tt.trip(canceller, cancelCtx) })
			}
			svc, _ := newTestFetch(t, portal, 1)

			rec := newRecorder()
			jobs, err := BuildJobs(
				[]domain.Descriptor{descriptor("d1"), descriptor("d2"), descriptor("d3")},
				CachePolicy{Overwrite: true},
				Overrides{Sinks: rec.sinks(3)},
			)
			if err != nil {
				t.Fatalf("BuildJobs() error = %v", err)
			}

			res, err := svc.RunWithCanceller(ctx, jobs, nil, canceller)
			if err != nil {
				t.Fatalf("RunWithCanceller() error = %v", err)
			}

			if res.Outcomes[0] == nil || res.Outcomes[0].ID != "d1" {
				t.Errorf("started job did not complete: %+v", res.Outcomes[0])
			}
			if res.Outcomes[1] != nil || res.Outcomes[2] != nil {
				t.Errorf("skipped jobs produced outcomes: %+v", res.Outcomes)
			}
			if len(rec.calls[0]) != 1 {
				t.Errorf("job 0 callback fired %d times, want 1", len(rec.calls[0]))
			}
			if len(rec.calls[1]) != 0 || len(rec.calls[2]) != 0 {
				t.Errorf("skipped jobs called back: %v", rec.calls)
			}
			if got := portal.calls.Load(); got != 1 {
				t.Errorf("portal called %d times, want 1", got)
			}
			if res.Stats.SkippedJobs != 2 {
				t.Errorf("SkippedJobs = %d, want 2", res.Stats.SkippedJobs)
			}
			if !errors.Is(res.Err(), domain.ErrCancelled) {
				t.Errorf("Err() = %v, want ErrCancelled", res.Err())
			}
		})
	}
}

func TestFetchService_SecondRunFromCache(t *testing.T) {
	portal := &fakePortal{docs: map[string][]byte{
		"http://portal.test/d1": sdmxDoc("d1"),
		"http://portal.test/d2": sdmxDoc("d2"),
	}}
	svc, _ := newTestFetch(t, portal, 2)

	policy := CachePolicy{LoadFromCache: true, SaveToCache: true, Overwrite: true, DeleteSourceAfterParse: true}
	jobs, err := BuildJobs([]domain.Descriptor{descriptor("d1"), descriptor("d2")}, policy, Overrides{})
	if err != nil {
		t.Fatalf("BuildJobs() error = %v", err)
	}
	noop := func(context.Context, *domain.Dataset) {}

	first, err := svc.Run(context.Background(), jobs, noop)
	if err != nil {
		t.Fatalf("first Run() error = %v", err)
	}
	if got := portal.calls.Load(); got != 2 {
		t.Fatalf("first run portal calls = %d, want 2", got)
	}

	second, err := svc.Run(context.Background(), jobs, noop)
	if err != nil {
		t.Fatalf("second Run() error = %v", err)
	}
	if got := portal.calls.Load(); got != 2 {
		t.Errorf("second run made %d network calls, want 0", got-2)
	}
	if second.Stats.CachedJobs != 2 {
		t.Errorf("CachedJobs = %d, want 2", second.Stats.CachedJobs)
	}
	for i := range first.Outcomes {
		if !reflect.DeepEqual(first.Outcomes[i], second.Outcomes[i]) {
			t.Errorf("outcome %d differs between fresh and cached run:\n%+v\n%+v", i, first.Outcomes[i], second.Outcomes[i])
		}
	}
}

func TestFetchService_SourceDocumentReuse(t *testing.T) {
	portal := &fakePortal{docs: map[string][]byte{"http://portal.test/d1": sdmxDoc("d1")}}
	svc, store := newTestFetch(t, portal, 1)
	ctx := context.Background()
	noop := func(context.Context, *domain.Dataset) {}

	keep := []Job{{Descriptor: descriptor("d1"), SourceKey: "sources/d1.xml"}}
	if _, err := svc.Run(ctx, keep, noop); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if ok, _ := store.Exists(ctx, "sources/d1.xml"); !ok {
		t.Fatal("source document not stored")
	}

	// a stored source is parsed without downloading again
	res, err := svc.Run(ctx, keep, noop)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := portal.calls.Load(); got != 1 {
		t.Errorf("portal calls = %d, want 1", got)
	}
	if res.Outcomes[0] == nil {
		t.Fatal("reused source produced no dataset")
	}

	// overwrite downloads again, then the source is removed
	drop := []Job{{
		Descriptor: descriptor("d1"),
		SourceKey:  "sources/d1.xml",
		Policy:     CachePolicy{Overwrite: true, DeleteSourceAfterParse: true},
	}}
	if _, err := svc.Run(ctx, drop, noop); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if got := portal.calls.Load(); got != 2 {
		t.Errorf("portal calls = %d, want 2", got)
	}
	if ok, _ := store.Exists(ctx, "sources/d1.xml"); ok {
		t.Error("source document not deleted after parse")
	}
}

func TestFetchService_CallbackPanic(t *testing.T) {
	portal := &fakePortal{docs: map[string][]byte{"http://portal.test/d1": sdmxDoc("d1")}}
	svc, _ := newTestFetch(t, portal, 1)

	jobs := []Job{{Descriptor: descriptor("d1"), Policy: CachePolicy{Overwrite: true}}}
	res, err := svc.Run(context.Background(), jobs, func(context.Context, *domain.Dataset) {
		panic("loader exploded")
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if res.Stats.FailedJobs != 1 {
		t.Errorf("FailedJobs = %d, want 1", res.Stats.FailedJobs)
	}
	if res.Outcomes[0] != nil {
		t.Error("outcome kept after callback panic")
	}
}

func TestFetchService_InvalidInvocation(t *testing.T) {
	svc, _ := newTestFetch(t, &fakePortal{}, 1)
	descs := []domain.Descriptor{descriptor("d1"), descriptor("d2")}

	if _, err := BuildJobs(descs, CachePolicy{}, Overrides{SourceKeys: []string{"only-one.xml"}}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("BuildJobs() error = %v, want ErrInvalidArgument", err)
	}

	jobs, err := BuildJobs(descs, CachePolicy{}, Overrides{SnapshotKeys: []string{"a.json", ""}})
	if err != nil {
		t.Fatalf("BuildJobs() error = %v", err)
	}
	if jobs[0].snapshotKey() != "a.json" || jobs[1].snapshotKey() != "d2.json" || jobs[1].sourceKey() != "d2.xml" {
		t.Errorf("keys = %q %q %q", jobs[0].snapshotKey(), jobs[1].snapshotKey(), jobs[1].sourceKey())
	}

	if _, err := svc.Run(context.Background(), jobs, nil); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Run(nil callback) error = %v, want ErrInvalidArgument", err)
	}
}

func TestFetchService_InvalidDescriptorFailsJob(t *testing.T) {
	portal := &fakePortal{}
	svc, _ := newTestFetch(t, portal, 1)

	csv := descriptor("d1")
	csv.Format = "csv"
	var got []*domain.Dataset
	res, err := svc.Run(context.Background(), []Job{{Descriptor: csv}}, func(_ context.Context, ds *domain.Dataset) {
		got = append(got, ds)
	})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(got) != 1 || got[0] != nil {
		t.Errorf("callbacks = %v, want one nil", got)
	}
	if res.Stats.FailedJobs != 1 || portal.calls.Load() != 0 {
		t.Errorf("stats = %+v, portal calls = %d", res.Stats, portal.calls.Load())
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	doc, err := os.ReadFile("../sdmx/testdata/dataset.xml")
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	ds, err := sdmx.NewParser(sdmx.DefaultTimestampOffset).Parse(doc)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	data, err := EncodeSnapshot(ds)
	if err != nil {
		t.Fatalf("EncodeSnapshot() error = %v", err)
	}
	back, err := DecodeSnapshot(data)
	if err != nil {
		t.Fatalf("DecodeSnapshot() error = %v", err)
	}
	if !reflect.DeepEqual(ds, back) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", back, ds)
	}

	if _, err := DecodeSnapshot([]byte("{")); !errors.Is(err, domain.ErrCacheMiss) {
		t.Errorf("DecodeSnapshot(garbage) error = %v, want ErrCacheMiss", err)
	}
}
