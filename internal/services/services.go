package services

import (
	"context"

	"github.com/desertthunder/geolist/internal/models"
)

// SavedTrackLister pages through a user's saved-tracks library.
type SavedTrackLister interface {
	// LibraryPage fetches up to limit saved tracks starting at offset.
	LibraryPage(ctx context.Context, limit, offset int) (*LibraryPage, error)

	// Name returns the name of the service (e.g., "Spotify")
	Name() string
}

// ArtistSearcher queries a music-metadata service for artists by name.
type ArtistSearcher interface {
	// SearchArtists returns candidates in relevance order. An empty slice is not an error.
	SearchArtists(ctx context.Context, name string) ([]ArtistCandidate, error)

	Name() string
}

// LibraryPage is one page of a saved-tracks listing.
type LibraryPage struct {
	Tracks  []models.Track
	Total   int
	Offset  int
	Fetched int // raw items on the page, including skipped ones
	Skipped int
	HasNext bool
}

// ArtistCandidate is a single artist search hit.
type ArtistCandidate struct {
	ID             string
	Name           string
	SortName       string
	Type           string
	Disambiguation string
	Score          int
	Country        string // ISO 3166-1 alpha-2 code
	Area           string
	BeginArea      string
	Aliases        []string
}
