package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/timmy/russtat/internal/config"
	"github.com/timmy/russtat/internal/service"
)

func TestNew_Local(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		Database: config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(dir, "app.db"), AutoMigrate: true},
		Storage:  config.StorageConfig{Type: config.StorageLocal, Dir: filepath.Join(dir, "cache")},
		Cache:    config.CacheConfig{CatalogKey: "list_json.json", XMLOnly: true},
		Fetch:    config.FetchConfig{LoadFromCache: true, DeleteSourceAfterParse: true},
	}

	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	if n, err := a.Datasets.Count(context.Background()); err != nil || n != 0 {
		t.Errorf("Count() = %d, %v; want empty migrated database", n, err)
	}
	want := service.CachePolicy{LoadFromCache: true, DeleteSourceAfterParse: true}
	if got := a.Policy(); got != want {
		t.Errorf("Policy() = %+v, want %+v", got, want)
	}
}
