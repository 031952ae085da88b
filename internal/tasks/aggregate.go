package tasks

import (
	"github.com/desertthunder/geolist/internal/models"
)

// Merge joins grouped tracks with resolved origins into one record per artist.
//
// Every key in tracks gets a record; a key with no origin is not_found. Origins for
// artists absent from tracks are ignored. Songs are keyed by [models.Track.SongKey] and a later
// duplicate replaces an earlier one.
func Merge(tracks map[models.ArtistKey][]models.Track, origins map[models.ArtistKey]models.OriginRecord) models.Library {
	lib := make(models.Library, len(tracks))
	for artist, list := range tracks {
		var rec *models.ArtistRecord
		for _, t := range list {
			rec = MergeTrack(rec, t)
		}
		if rec == nil {
			rec = models.NewArtistRecord(string(artist), "", "")
		}
		rec.ArtistName = string(artist)

		if origin, ok := origins[artist]; ok {
			rec.Origin = origin
		} else {
			rec.Origin = models.NotFound()
		}
		lib[artist] = rec
	}
	return lib
}

// MergeTrack adds t to rec, creating the record from the track's artist when rec is nil.
func MergeTrack(rec *models.ArtistRecord, t models.Track) *models.ArtistRecord {
	if rec == nil {
		rec = models.NewArtistRecord(t.ArtistName, t.ArtistURI, t.ArtistID)
	}
	rec.AddTrack(t)
	return rec
}

// MergeLibrary folds src into dst. Songs from src replace same-key songs in dst and missing
// artist ids and uris are filled in. The origin from src wins unless it would replace a
// successful origin with an unsuccessful one.
func MergeLibrary(dst, src models.Library) models.Library {
	if dst == nil {
		dst = make(models.Library, len(src))
	}
	for artist, in := range src {
		cur, ok := dst[artist]
		if !ok {
			cur = models.NewArtistRecord(string(artist), in.ArtistURI, in.ArtistID)
			cur.Origin = in.Origin
			dst[artist] = cur
		}
		if cur.ArtistURI == "" {
			cur.ArtistURI = in.ArtistURI
		}
		if cur.ArtistID == "" {
			cur.ArtistID = in.ArtistID
		}
		for id, song := range in.Songs {
			if cur.Songs == nil {
				cur.Songs = make(map[string]models.Song)
			}
			cur.Songs[id] = song
		}
		if ok && cur.Origin.Status == models.StatusSuccess && in.Origin.Status != models.StatusSuccess {
			continue
		}
		cur.Origin = in.Origin
	}
	return dst
}

// GroupLibrary flattens a library back into grouped tracks, the input shape of [Merge].
func GroupLibrary(lib models.Library) map[models.ArtistKey][]models.Track {
	groups := make(map[models.ArtistKey][]models.Track, len(lib))
	for artist, rec := range lib {
		if rec.ArtistName == "" {
			rec.ArtistName = string(artist)
		}
		groups[artist] = rec.Tracks()
	}
	return groups
}
