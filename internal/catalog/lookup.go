package catalog

import (
	"strconv"
	"strings"

	"github.com/timmy/russtat/internal/domain"
)

// Lookup selects one descriptor of a catalog.
// Implementations are ByIndex, ByID and ByTitle.
type Lookup interface {
	match(datasets []domain.Descriptor) (domain.Descriptor, bool)
	String() string
}

// ByIndex selects the descriptor at a zero-based catalog position.
type ByIndex int

func (i ByIndex) match(datasets []domain.Descriptor) (domain.Descriptor, bool) {
	if i < 0 || int(i) >= len(datasets) {
		return domain.Descriptor{}, false
	}
	return datasets[i], true
}

func (i ByIndex) String() string {
	return "index " + strconv.Itoa(int(i))
}

// ByID selects the descriptor with the given identifier.
type ByID string

func (id ByID) match(datasets []domain.Descriptor) (domain.Descriptor, bool) {
	for _, d := range datasets {
		if d.Identifier == string(id) {
			return d, true
		}
	}
	return domain.Descriptor{}, false
}

func (id ByID) String() string {
	return "id " + strconv.Quote(string(id))
}

// ByTitle selects the first descriptor whose title equals the given one, ignoring case.
type ByTitle string

func (t ByTitle) match(datasets []domain.Descriptor) (domain.Descriptor, bool) {
	for _, d := range datasets {
		if strings.EqualFold(d.Title, string(t)) {
			return d, true
		}
	}
	return domain.Descriptor{}, false
}

func (t ByTitle) String() string {
	return "title " + strconv.Quote(string(t))
}
