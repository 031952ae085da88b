// Package services wraps the two upstream HTTP APIs geolist talks to and the limiter that throttles them.
//
// # Library Source
//
// [SpotifyService] implements [SavedTrackLister] over the Spotify Web API saved-tracks endpoint.
// It uses OAuth2 with automatic token refresh; [SpotifyService.SetTokenRefreshCallback] lets the
// caller persist refreshed tokens.
//
// # Metadata Source
//
// [MusicBrainzService] implements [ArtistSearcher] over the MusicBrainz artist search. MusicBrainz
// requires a descriptive User-Agent and allows at most one request per second per client.
//
// # Rate Limiting
//
// [RateLimiter] holds one token bucket per [ServiceID]. Callers acquire a slot before every request,
// including retries.
//
// # Error Handling
//
// Clients never retry on their own. They classify failures with the shared package:
//   - [shared.StatusError] : non-2xx responses, unwrapping to [shared.ErrAuthFailed],
//     [shared.ErrTransient] or [shared.ErrAPIRequest]
//   - [shared.ErrTransient] : network failures and timeouts
//   - [shared.ErrAuthFailed] : rejected token refresh
//   - [shared.ErrNotAuthenticated] : Authenticate() not called
package services
