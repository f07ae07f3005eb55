package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/timmy/russtat/internal/domain"
	"github.com/timmy/russtat/internal/source/fedstat"
	"github.com/timmy/russtat/internal/storage"
)

const catalogXML = `<?xml version="1.0" encoding="utf-8"?>
<list>
  <meta>
    <item>
      <identifier>"7708234640-31074"</identifier>
      <title> "Среднедушевые денежные доходы населения" </title>
      <link>http://portal.test/opendata/7708234640-31074/data.xml</link>
      <format>xml</format>
    </item>
    <item>
      <identifier>7708234640-40533</identifier>
      <title>Индекс потребительских цен</title>
      <link>http://portal.test/opendata/7708234640-40533/data.csv</link>
      <format>csv</format>
    </item>
    <item>
      <identifier>7708234640-43120</identifier>
      <title>Численность населения</title>
      <link>http://portal.test/opendata/7708234640-43120/data.xml</link>
      <format>xml</format>
      <publisher>Росстат</publisher>
    </item>
  </meta>
</list>`

type testPortal struct {
	server *httptest.Server
	hits   atomic.Int32
	fail   atomic.Bool
}

func newTestPortal(t *testing.T) *testPortal {
	t.Helper()
	p := &testPortal{}
	p.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.hits.Add(1)
		if p.fail.Load() {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/xml")
		_, _ = w.Write([]byte(catalogXML))
	}))
	t.Cleanup(p.server.Close)
	return p
}

func newTestStore(t *testing.T, p *testPortal, dir string) *Store {
	t.Helper()
	local, err := storage.NewLocalStorage(dir)
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}
	adapter := fedstat.NewAdapter(fedstat.Config{CatalogURL: p.server.URL + "/opendata/list.xml"})
	return NewStore(adapter, local, Options{XMLOnly: true})
}

func TestStore_RefreshDownloadsAndSnapshots(t *testing.T) {
	p := newTestPortal(t)
	dir := t.TempDir()
	s := newTestStore(t, p, dir)

	got, err := s.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Refresh() returned %d descriptors, want 2 (csv dropped)", len(got))
	}
	if got[0].Identifier != "7708234640-31074" {
		t.Errorf("Identifier = %q, quotes not stripped", got[0].Identifier)
	}
	if got[0].Title != "Среднедушевые денежные доходы населения" {
		t.Errorf("Title = %q, quotes/space not stripped", got[0].Title)
	}
	if got[1].Extra["publisher"] != "Росстат" {
		t.Errorf("Extra = %v, want publisher kept", got[1].Extra)
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
	if _, err := os.Stat(filepath.Join(dir, DefaultSnapshotKey)); err != nil {
		t.Errorf("snapshot not written: %v", err)
	}

	// second store over the same directory loads the snapshot without network
	p.fail.Store(true)
	hits := p.hits.Load()
	s2 := newTestStore(t, p, dir)
	again, err := s2.Refresh(context.Background(), false)
	if err != nil {
		t.Fatalf("Refresh() from snapshot error = %v", err)
	}
	if p.hits.Load() != hits {
		t.Errorf("portal hit %d times on cached refresh, want 0", p.hits.Load()-hits)
	}
	if len(again) != 2 || again[1].Extra["publisher"] != "Росстат" {
		t.Errorf("snapshot round-trip = %+v", again)
	}
}

func TestStore_RefreshNetworkFailureKeepsSnapshot(t *testing.T) {
	p := newTestPortal(t)
	dir := t.TempDir()
	s := newTestStore(t, p, dir)

	if _, err := s.Refresh(context.Background(), false); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	before, err := os.ReadFile(filepath.Join(dir, DefaultSnapshotKey))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}

	p.fail.Store(true)
	_, err = s.Refresh(context.Background(), true)
	if !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("Refresh(overwrite) error = %v, want ErrNetwork", err)
	}

	after, err := os.ReadFile(filepath.Join(dir, DefaultSnapshotKey))
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	if string(before) != string(after) {
		t.Error("snapshot changed after failed refresh")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d after failed refresh, want 2", s.Len())
	}
}

func TestStore_RefreshConcurrent(t *testing.T) {
	p := newTestPortal(t)
	s := newTestStore(t, p, t.TempDir())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Refresh(context.Background(), false); err != nil {
				t.Errorf("Refresh() error = %v", err)
			}
		}()
	}
	wg.Wait()

	if got := p.hits.Load(); got != 1 {
		t.Errorf("portal hit %d times, want 1", got)
	}
}

func TestStore_RefreshMixedModesSerialized(t *testing.T) {
	var inFlight, maxInFlight, hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			m := maxInFlight.Load()
			if n <= m || maxInFlight.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(catalogXML))
	}))
	defer server.Close()

	local, err := storage.NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStorage() error = %v", err)
	}
	s := NewStore(fedstat.NewAdapter(fedstat.Config{CatalogURL: server.URL}), local, Options{XMLOnly: true})

	var wg sync.WaitGroup
	for _, overwrite := range []bool{false, true, false, true} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.Refresh(context.Background(), overwrite); err != nil {
				t.Errorf("Refresh(%v) error = %v", overwrite, err)
			}
		}()
	}
	wg.Wait()

	if got := maxInFlight.Load(); got != 1 {
		t.Errorf("max concurrent catalog downloads = %d, want 1", got)
	}
	if hits.Load() == 0 {
		t.Error("portal never hit")
	}
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}

func TestStore_Find(t *testing.T) {
	p := newTestPortal(t)
	s := newTestStore(t, p, t.TempDir())
	if _, err := s.Refresh(context.Background(), false); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	tests := []struct {
		name    string
		pattern string
		opts    FindOptions
		want    []string
	}{
		{"substring ignore case", "НАСЕЛЕНИЯ", FindOptions{}, []string{"7708234640-31074", "7708234640-43120"}},
		{"substring case sensitive", "НАСЕЛЕНИЯ", FindOptions{CaseSensitive: true}, nil},
		{"full match ignore case", "численность населения", FindOptions{FullMatch: true}, []string{"7708234640-43120"}},
		{"full match partial title", "Численность", FindOptions{FullMatch: true}, nil},
		{"regex search", `доход|числен`, FindOptions{Regex: true}, []string{"7708234640-31074", "7708234640-43120"}},
		{"regex full match", `Численность.*`, FindOptions{Regex: true, FullMatch: true, CaseSensitive: true}, []string{"7708234640-43120"}},
		{"regex full match anchors", `населения`, FindOptions{Regex: true, FullMatch: true}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Find(tt.pattern, tt.opts)
			if err != nil {
				t.Fatalf("Find() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("Find() returned %d, want %d", len(got), len(tt.want))
			}
			for i, d := range got {
				if d.Identifier != tt.want[i] {
					t.Errorf("Find()[%d] = %q, want %q", i, d.Identifier, tt.want[i])
				}
			}
		})
	}

	if _, err := s.Find("(", FindOptions{Regex: true}); !errors.Is(err, domain.ErrInvalidArgument) {
		t.Errorf("Find(invalid regex) error = %v, want ErrInvalidArgument", err)
	}
}

func TestStore_Resolve(t *testing.T) {
	p := newTestPortal(t)
	s := newTestStore(t, p, t.TempDir())
	if _, err := s.Refresh(context.Background(), false); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}

	tests := []struct {
		name    string
		lookup  Lookup
		want    string
		wantErr bool
	}{
		{"by index", ByIndex(1), "7708234640-43120", false},
		{"by index out of range", ByIndex(2), "", true},
		{"by negative index", ByIndex(-1), "", true},
		{"by id", ByID("7708234640-31074"), "7708234640-31074", false},
		{"by unknown id", ByID("nope"), "", true},
		{"by title ignores case", ByTitle("ЧИСЛЕННОСТЬ НАСЕЛЕНИЯ"), "7708234640-43120", false},
		{"by title substring", ByTitle("Численность"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.Resolve(tt.lookup)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrNotFound) {
					t.Errorf("Resolve() error = %v, want ErrNotFound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Resolve() error = %v", err)
			}
			if got.Identifier != tt.want {
				t.Errorf("Resolve() = %q, want %q", got.Identifier, tt.want)
			}
		})
	}

	all, err := s.ResolveAll([]Lookup{ByIndex(0), ByID("7708234640-43120")})
	if err != nil || len(all) != 2 {
		t.Errorf("ResolveAll() = %v, %v", all, err)
	}
	if _, err := s.ResolveAll([]Lookup{ByIndex(0), ByID("nope")}); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("ResolveAll() with miss error = %v, want ErrNotFound", err)
	}
}

func TestDecode_Malformed(t *testing.T) {
	if _, err := Decode([]byte("<list><meta><item>"), true); !errors.Is(err, domain.ErrMalformedDocument) {
		t.Errorf("Decode() error = %v, want ErrMalformedDocument", err)
	}
}
