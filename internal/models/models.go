package models

import (
	"slices"
	"time"
)

// ArtistKey is an artist's display name, the join key between library data and origin lookups.
type ArtistKey string

// Track is a saved track from the listening library.
type Track struct {
	ID          string
	URI         string
	Name        string
	Popularity  int    // 0-100
	ReleaseDate string // year, or the raw date string when it has no leading year
	ArtistName  string // first credited artist
	ArtistID    string
	ArtistURI   string
}

// Key returns the artist join key for the track.
func (t Track) Key() ArtistKey {
	return ArtistKey(t.ArtistName)
}

// SongKey identifies the track inside an artist's song mapping: its ID, or its URI for local files that have none.
func (t Track) SongKey() string {
	if t.ID != "" {
		return t.ID
	}
	return t.URI
}

// Song returns the serialized form of the track inside an artist's song mapping.
func (t Track) Song() Song {
	return Song{
		Name:        t.Name,
		Popularity:  t.Popularity,
		ReleaseDate: t.ReleaseDate,
		ID:          t.ID,
	}
}

// Song is a track as it appears under an artist in the output document.
type Song struct {
	Name        string `json:"name"`
	Popularity  int    `json:"popularity"`
	ReleaseDate string `json:"release_date"`
	ID          string `json:"id"`
}

// TrimYear reduces "1998-04-20" or "1998-04" to "1998". Values without a four digit prefix are returned unchanged.
func TrimYear(date string) string {
	if len(date) < 4 {
		return date
	}
	for _, r := range date[:4] {
		if r < '0' || r > '9' {
			return date
		}
	}
	return date[:4]
}

// ArtistRecord is the merged entity for one artist.
type ArtistRecord struct {
	ArtistName string          `json:"-"`
	Songs      map[string]Song `json:"songs"`
	ArtistURI  string          `json:"artist_uri"`
	ArtistID   string          `json:"artist_id"`
	Origin     OriginRecord    `json:"origin"`
}

// NewArtistRecord creates an empty record whose origin defaults to not_found.
func NewArtistRecord(name, uri, id string) *ArtistRecord {
	return &ArtistRecord{
		ArtistName: name,
		Songs:      make(map[string]Song),
		ArtistURI:  uri,
		ArtistID:   id,
		Origin:     NotFound(),
	}
}

// AddTrack stores the track under its [Track.SongKey], replacing an earlier copy of the same key.
func (a *ArtistRecord) AddTrack(t Track) {
	if a.Songs == nil {
		a.Songs = make(map[string]Song)
	}
	if a.ArtistURI == "" {
		a.ArtistURI = t.ArtistURI
	}
	if a.ArtistID == "" {
		a.ArtistID = t.ArtistID
	}
	a.Songs[t.SongKey()] = t.Song()
}

// Tracks rebuilds the track values stored in the record, ordered by song key.
//
// A song stored without an ID is a local file; its key is restored as the track URI.
func (a *ArtistRecord) Tracks() []Track {
	ids := make([]string, 0, len(a.Songs))
	for id := range a.Songs {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	tracks := make([]Track, 0, len(ids))
	for _, id := range ids {
		s := a.Songs[id]
		uri := ""
		if s.ID == "" {
			uri = id
		}
		tracks = append(tracks, Track{
			ID:          s.ID,
			URI:         uri,
			Name:        s.Name,
			Popularity:  s.Popularity,
			ReleaseDate: s.ReleaseDate,
			ArtistName:  a.ArtistName,
			ArtistID:    a.ArtistID,
			ArtistURI:   a.ArtistURI,
		})
	}
	return tracks
}

// Library maps each artist to its merged record.
type Library map[ArtistKey]*ArtistRecord

// Artists returns the artist keys in sorted order.
func (l Library) Artists() []ArtistKey {
	keys := make([]ArtistKey, 0, len(l))
	for k := range l {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// TrackCount returns the number of distinct songs across all artists.
func (l Library) TrackCount() int {
	n := 0
	for _, rec := range l {
		n += len(rec.Songs)
	}
	return n
}

// Summary tallies origin outcomes across the library.
func (l Library) Summary() Summary {
	s := Summary{Total: len(l)}
	for _, rec := range l {
		s.Add(rec.Origin)
	}
	return s
}

// Summary counts artists by resolution status and by missing location fields.
type Summary struct {
	Total     int `json:"total"`
	Success   int `json:"success"`
	NotFound  int `json:"not_found"`
	Ambiguous int `json:"ambiguous"`
	Error     int `json:"error"`
	NoCity    int `json:"no_city"`
	NoArea    int `json:"no_area"`
	NoCountry int `json:"no_country"`
}

// Add counts one origin record. Location gaps are only counted for successful matches.
func (s *Summary) Add(o OriginRecord) {
	switch o.Status {
	case StatusSuccess:
		s.Success++
		if o.City == nil {
			s.NoCity++
		}
		if o.Area == nil {
			s.NoArea++
		}
		if o.Country == nil {
			s.NoCountry++
		}
	case StatusAmbiguous:
		s.Ambiguous++
	case StatusError:
		s.Error++
	default:
		s.NotFound++
	}
}

// Unresolved is the number of artists without a successful origin.
func (s Summary) Unresolved() int {
	return s.NotFound + s.Ambiguous + s.Error
}

// CacheEntry is a persisted metadata-service response.
type CacheEntry struct {
	Fingerprint string
	Kind        string
	Subject     string
	Payload     []byte
	CreatedAt   time.Time
}
