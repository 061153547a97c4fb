package acquisition

import (
	"context"

	"booklending/internal/platform/openlibrary"
)

// OpenLibrarySource adapts the Open Library client to MetadataSource.
type OpenLibrarySource struct {
	client *openlibrary.Client
}

func NewOpenLibrarySource(client *openlibrary.Client) *OpenLibrarySource {
	return &OpenLibrarySource{client: client}
}

func (s *OpenLibrarySource) Lookup(ctx context.Context, isbn string) (Metadata, bool, error) {
	d, err := s.client.GetBookByISBN(ctx, isbn)
	if err != nil || d == nil {
		return Metadata{}, false, err
	}
	return Metadata{
		Title:     d.Title,
		Author:    d.AuthorNames(),
		PageCount: d.NumberOfPages,
	}, true, nil
}
