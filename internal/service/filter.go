package service

import (
	"context"
	"fmt"

	"github.com/timmy/russtat/internal/domain"
)

// TitleLookup reports the titles of datasets already persisted.
type TitleLookup interface {
	ExistingTitles(ctx context.Context) (map[string]struct{}, error)
}

// FilterNew splits candidates into those whose title is not in existing and
// those already known. Order within each group is preserved.
func FilterNew(candidates []domain.Descriptor, existing map[string]struct{}) (fresh, known []domain.Descriptor) {
	for _, d := range candidates {
		if _, ok := existing[d.Title]; ok {
			known = append(known, d)
			continue
		}
		fresh = append(fresh, d)
	}
	return fresh, known
}

// FilterNewWith is FilterNew with existing titles read from lookup.
func FilterNewWith(ctx context.Context, candidates []domain.Descriptor, lookup TitleLookup) (fresh, known []domain.Descriptor, err error) {
	existing, err := lookup.ExistingTitles(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load existing titles: %w", err)
	}
	fresh, known = FilterNew(candidates, existing)
	return fresh, known, nil
}
