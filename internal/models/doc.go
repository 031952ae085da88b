// Package models defines the domain entities shared by the resolution pipeline.
//
//   - [Track] : one saved track from the listening library, immutable once ingested
//   - [OriginRecord] : the resolved (or unresolved) place of origin of one artist
//   - [ArtistRecord] : an artist's songs merged with its origin, the unit of output
//   - [Library] : the canonical artist name → record mapping handed to the renderer
//   - [CacheEntry] : a persisted metadata-service response keyed by fingerprint
//
// The JSON encoding of [Library] is the contract with the external map renderer:
//
//	{"Artist": {"songs": {"<track id>": {"name", "popularity", "release_date", "id"}},
//	            "artist_uri", "artist_id", "origin": {"city", "country", "area", "status"}}}
package models
