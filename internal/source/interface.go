package source

import "context"

// Portal is an open-data portal publishing a catalog and SDMX documents.
type Portal interface {
	// GetSourceID returns the unique identifier for this portal.
	GetSourceID() string

	// GetDisplayName returns a human-readable name for this portal.
	GetDisplayName() string

	// FetchCatalog downloads the raw catalog document.
	// Returns:
	//   - []byte: catalog XML.
	//   - error: wraps domain.ErrNetwork when the portal is unreachable.
	FetchCatalog(ctx context.Context) ([]byte, error)

	// FetchDocument downloads one dataset document from link.
	// Returns:
	//   - []byte: dataset XML.
	//   - error: wraps domain.ErrNetwork on transport failure, timeout or non-2xx status.
	FetchDocument(ctx context.Context, link string) ([]byte, error)
}
