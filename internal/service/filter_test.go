package service

import (
	"context"
	"errors"
	"testing"

	"github.com/timmy/russtat/internal/domain"
)

type staticTitles struct {
	titles map[string]struct{}
	err    error
}

func (s staticTitles) ExistingTitles(context.Context) (map[string]struct{}, error) {
	return s.titles, s.err
}

func TestFilterNew(t *testing.T) {
	candidates := []domain.Descriptor{descriptor("a"), descriptor("b"), descriptor("c")}
	existing := map[string]struct{}{"Dataset b": {}, "Dataset zzz": {}}

	fresh, known := FilterNew(candidates, existing)
	if len(fresh) != 2 || fresh[0].Identifier != "a" || fresh[1].Identifier != "c" {
		t.Errorf("fresh = %+v, want a, c", fresh)
	}
	if len(known) != 1 || known[0].Identifier != "b" {
		t.Errorf("known = %+v, want b", known)
	}

	fresh, known = FilterNew(candidates, nil)
	if len(fresh) != 3 || len(known) != 0 {
		t.Errorf("nil existing: fresh=%d known=%d, want 3 and 0", len(fresh), len(known))
	}
}

func TestFilterNewWith(t *testing.T) {
	candidates := []domain.Descriptor{descriptor("a"), descriptor("b")}

	fresh, known, err := FilterNewWith(context.Background(), candidates, staticTitles{
		titles: map[string]struct{}{"Dataset a": {}},
	})
	if err != nil {
		t.Fatalf("FilterNewWith() error = %v", err)
	}
	if len(fresh) != 1 || fresh[0].Identifier != "b" || len(known) != 1 {
		t.Errorf("fresh = %+v, known = %+v", fresh, known)
	}

	boom := errors.New("db down")
	if _, _, err := FilterNewWith(context.Background(), candidates, staticTitles{err: boom}); !errors.Is(err, boom) {
		t.Errorf("FilterNewWith() error = %v, want wrapped %v", err, boom)
	}
}
