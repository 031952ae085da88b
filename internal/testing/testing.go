// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/geolist/internal/models"
	"github.com/desertthunder/geolist/internal/services"
)

// FakeLibrary is a test double for [services.SavedTrackLister] that pages over Tracks.
//
// Errs is consumed one entry per call; a nil entry lets that call succeed.
type FakeLibrary struct {
	Tracks []models.Track
	Errs   []error

	mu    sync.Mutex
	calls int
}

func (f *FakeLibrary) LibraryPage(ctx context.Context, limit, offset int) (*services.LibraryPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f.mu.Lock()
	call := f.calls
	f.calls++
	f.mu.Unlock()

	if call < len(f.Errs) && f.Errs[call] != nil {
		return nil, f.Errs[call]
	}

	end := min(offset+limit, len(f.Tracks))
	start := min(offset, end)
	page := &services.LibraryPage{
		Tracks:  append([]models.Track(nil), f.Tracks[start:end]...),
		Total:   len(f.Tracks),
		Offset:  offset,
		Fetched: end - start,
		HasNext: end < len(f.Tracks),
	}
	return page, nil
}

func (f *FakeLibrary) Name() string { return "fake-library" }

// Calls returns the number of page requests made.
func (f *FakeLibrary) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// FakeSearcher is a test double for [services.ArtistSearcher].
//
// Errs queues failures per artist name; each call pops one. Names without results return no candidates.
type FakeSearcher struct {
	Results map[string][]services.ArtistCandidate
	Errs    map[string][]error

	// Hook, if set, runs before every search and can block or fail it.
	Hook func(ctx context.Context, name string) error

	mu    sync.Mutex
	calls map[string]int
	total int
}

func (f *FakeSearcher) SearchArtists(ctx context.Context, name string) ([]services.ArtistCandidate, error) {
	f.mu.Lock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[name]++
	f.total++
	var err error
	if queue := f.Errs[name]; len(queue) > 0 {
		err = queue[0]
		f.Errs[name] = queue[1:]
	}
	results := f.Results[name]
	f.mu.Unlock()

	if f.Hook != nil {
		if hookErr := f.Hook(ctx, name); hookErr != nil {
			return nil, hookErr
		}
	}
	if err != nil {
		return nil, err
	}
	return append([]services.ArtistCandidate(nil), results...), nil
}

func (f *FakeSearcher) Name() string { return "fake-searcher" }

// Calls returns how many searches were made for name.
func (f *FakeSearcher) Calls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

// TotalCalls returns the number of searches across all names.
func (f *FakeSearcher) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// Candidate builds a single search hit with the given location fields.
func Candidate(name, beginArea, area, country string) services.ArtistCandidate {
	return services.ArtistCandidate{
		ID:        "mbid-" + name,
		Name:      name,
		Score:     100,
		BeginArea: beginArea,
		Area:      area,
		Country:   country,
	}
}

// MakeTrack builds a saved track credited to artist.
func MakeTrack(id, name, artist string) models.Track {
	return models.Track{
		ID:          id,
		URI:         "spotify:track:" + id,
		Name:        name,
		Popularity:  50,
		ReleaseDate: "2001",
		ArtistName:  artist,
		ArtistID:    "artist-" + artist,
		ArtistURI:   "spotify:artist:" + artist,
	}
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// LimitedWriter fails after a certain number of writes
type LimitedWriter struct {
	maxWrites int
	written   int
	target    io.Writer
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.written >= l.maxWrites {
		return 0, errors.New("write limit exceeded")
	}
	l.written++
	return l.target.Write(p)
}

func NewLimitedWriter(maxWrites, written int, target io.Writer) LimitedWriter {
	return LimitedWriter{maxWrites: maxWrites, written: written, target: target}
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func AssertNoFile(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); err == nil {
		t.Errorf("File should not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}

func MustWriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write file %s: %v", path, err)
	}
}
