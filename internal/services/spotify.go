// Spotify Web API implementation of [SavedTrackLister]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/desertthunder/geolist/internal/models"
	"github.com/desertthunder/geolist/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"

	// SpotifyPageLimit is the largest page the saved-tracks endpoint serves.
	SpotifyPageLimit = 50

	requestTimeout = 30 * time.Second
)

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Artists    []SpotifyArtist `json:"artists"`
	Album      SpotifyAlbum    `json:"album"`
	Popularity int             `json:"popularity"`
	URI        string          `json:"uri"`
	IsLocal    bool            `json:"is_local"`
}

// SpotifyArtist represents a simplified Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyAlbum represents a simplified Spotify album.
type SpotifyAlbum struct {
	ID                   string `json:"id"`
	Name                 string `json:"name"`
	ReleaseDate          string `json:"release_date"`
	ReleaseDatePrecision string `json:"release_date_precision"`
}

// SpotifyPaginatedTracks represents a paginated response of saved tracks.
type SpotifyPaginatedTracks struct {
	Items    []SpotifySavedTrack `json:"items"`
	Total    int                 `json:"total"`
	Limit    int                 `json:"limit"`
	Offset   int                 `json:"offset"`
	Next     *string             `json:"next"`
	Previous *string             `json:"previous"`
}

// SpotifySavedTrack represents a track saved in the user's library.
type SpotifySavedTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyService implements [SavedTrackLister] for the Spotify Web API.
// Uses [oauth2] for authentication with automatic token refresh.
type SpotifyService struct {
	config         *oauth2.Config
	token          *oauth2.Token
	httpClient     *http.Client
	baseURL        string
	onTokenRefresh func(*oauth2.Token)
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       []string{"user-library-read"},
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	return &SpotifyService{
		config:     config,
		httpClient: &http.Client{Timeout: requestTimeout},
		baseURL:    spotifyBaseURL,
	}, nil
}

// Authenticate installs an OAuth2 token. Expects an "access_token", optionally with a "refresh_token".
//
// When a refresh token is present, expired access tokens are refreshed transparently and
// the callback set by [SpotifyService.SetTokenRefreshCallback] receives each new token.
func (s *SpotifyService) Authenticate(ctx context.Context, credentials map[string]string) error {
	accessToken := credentials["access_token"]
	refreshToken := credentials["refresh_token"]
	if accessToken == "" && refreshToken == "" {
		return fmt.Errorf("%w: missing access_token or refresh_token", shared.ErrMissingCredentials)
	}

	token := &oauth2.Token{AccessToken: accessToken, RefreshToken: refreshToken, TokenType: "Bearer"}
	if accessToken == "" {
		// Force an immediate refresh.
		token.Expiry = time.Unix(1, 0)
	}
	s.token = token

	base := &http.Client{Timeout: requestTimeout}
	source := &refreshableTokenSource{
		source:   s.config.TokenSource(context.WithValue(ctx, oauth2.HTTPClient, base), token),
		callback: s.onTokenRefresh,
		last:     accessToken,
	}

	client := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, base), source)
	client.Timeout = requestTimeout
	s.httpClient = client
	return nil
}

// SetTokenRefreshCallback registers fn to receive tokens minted by a refresh. Call before [SpotifyService.Authenticate].
func (s *SpotifyService) SetTokenRefreshCallback(fn func(*oauth2.Token)) {
	s.onTokenRefresh = fn
}

// SetBaseURL points the service at a different API root.
func (s *SpotifyService) SetBaseURL(baseURL string) {
	s.baseURL = baseURL
}

func (s *SpotifyService) Name() string {
	return "Spotify"
}

// doRequest performs an authenticated GET against the Spotify API and decodes the JSON body into result.
func (s *SpotifyService) doRequest(ctx context.Context, endpoint string, result any) error {
	if s.token == nil {
		return fmt.Errorf("%w: call Authenticate first", shared.ErrNotAuthenticated)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return fmt.Errorf("%w: token refresh rejected: %v", shared.ErrAuthFailed, retrieveErr)
		}
		return shared.TransportError("spotify", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return shared.NewStatusError("spotify", resp.StatusCode, string(body))
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
		}
	}

	return nil
}

// SavedTracks retrieves the user's saved tracks with pagination.
func (s *SpotifyService) SavedTracks(ctx context.Context, limit, offset int) (*SpotifyPaginatedTracks, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > SpotifyPageLimit {
		limit = SpotifyPageLimit
	}

	endpoint := fmt.Sprintf("/me/tracks?limit=%d&offset=%d", limit, offset)

	var response SpotifyPaginatedTracks
	if err := s.doRequest(ctx, endpoint, &response); err != nil {
		return nil, err
	}

	return &response, nil
}

// LibraryPage fetches one page of saved tracks as [models.Track] values.
//
// Local files are kept and keyed by URI. Items without an ID or URI, or without a credited artist,
// are dropped from the page; Skipped counts them.
func (s *SpotifyService) LibraryPage(ctx context.Context, limit, offset int) (*LibraryPage, error) {
	raw, err := s.SavedTracks(ctx, limit, offset)
	if err != nil {
		return nil, err
	}

	page := &LibraryPage{
		Tracks:  make([]models.Track, 0, len(raw.Items)),
		Total:   raw.Total,
		Offset:  raw.Offset,
		HasNext: raw.Next != nil,
	}

	for _, item := range raw.Items {
		track, ok := convertSavedTrack(item)
		if !ok {
			page.Skipped++
			continue
		}
		page.Tracks = append(page.Tracks, track)
	}
	page.Fetched = len(raw.Items)

	return page, nil
}

func convertSavedTrack(item SpotifySavedTrack) (models.Track, bool) {
	t := item.Track
	if t == nil || (t.ID == "" && t.URI == "") || len(t.Artists) == 0 || t.Artists[0].Name == "" {
		return models.Track{}, false
	}

	artist := t.Artists[0]
	return models.Track{
		ID:          t.ID,
		URI:         t.URI,
		Name:        t.Name,
		Popularity:  t.Popularity,
		ReleaseDate: models.TrimYear(t.Album.ReleaseDate),
		ArtistName:  artist.Name,
		ArtistID:    artist.ID,
		ArtistURI:   artist.URI,
	}, true
}

// refreshableTokenSource reports every token that differs from the previous one to callback.
type refreshableTokenSource struct {
	source   oauth2.TokenSource
	callback func(*oauth2.Token)

	mu   sync.Mutex
	last string
}

func (r *refreshableTokenSource) Token() (*oauth2.Token, error) {
	token, err := r.source.Token()
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	changed := token.AccessToken != r.last
	r.last = token.AccessToken
	r.mu.Unlock()

	if changed && r.callback != nil {
		r.callback(token)
	}
	return token, nil
}
