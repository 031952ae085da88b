package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/geolist/internal/shared"
)

const (
	musicBrainzBaseURL = "https://musicbrainz.org/ws/2"
	searchLimit        = 25
)

// MusicBrainzService implements [ArtistSearcher] against the MusicBrainz web service.
//
// It performs exactly one HTTP request per call. Throttling and retries belong to the caller.
type MusicBrainzService struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
}

// NewMusicBrainzService creates a client identifying itself with userAgent, which MusicBrainz requires.
func NewMusicBrainzService(cfg shared.MusicBrainzConfig) (*MusicBrainzService, error) {
	if strings.TrimSpace(cfg.UserAgent) == "" {
		return nil, fmt.Errorf("%w: musicbrainz user_agent", shared.ErrMissingCredentials)
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = musicBrainzBaseURL
	}

	return &MusicBrainzService{
		baseURL:    baseURL,
		userAgent:  cfg.UserAgent,
		httpClient: &http.Client{Timeout: requestTimeout},
	}, nil
}

func (s *MusicBrainzService) Name() string {
	return "MusicBrainz"
}

type artistSearchResponse struct {
	Count   int            `json:"count"`
	Offset  int            `json:"offset"`
	Artists []artistResult `json:"artists"`
}

type artistResult struct {
	ID             string       `json:"id"`
	Name           string       `json:"name"`
	SortName       string       `json:"sort-name"`
	Type           string       `json:"type"`
	Country        string       `json:"country"`
	Score          int          `json:"score"`
	Disambiguation string       `json:"disambiguation"`
	Area           *areaResult  `json:"area"`
	BeginArea      *areaResult  `json:"begin-area"`
	Aliases        []aliasEntry `json:"aliases"`
}

type areaResult struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Type string `json:"type"`
}

type aliasEntry struct {
	Name     string `json:"name"`
	SortName string `json:"sort-name"`
}

// SearchArtists runs an artist search for the exact name.
func (s *MusicBrainzService) SearchArtists(ctx context.Context, name string) ([]ArtistCandidate, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("%w: artist name", shared.ErrMissingArgument)
	}

	params := url.Values{}
	params.Set("query", fmt.Sprintf("artist:\"%s\"", escapeLucene(name)))
	params.Set("fmt", "json")
	params.Set("limit", fmt.Sprintf("%d", searchLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/artist?"+params.Encode(), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, shared.TransportError("musicbrainz", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusServiceUnavailable:
		// MusicBrainz answers 503 when the per-IP rate is exceeded.
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%w: %w", shared.ErrServiceUnavailable, shared.NewStatusError("musicbrainz", resp.StatusCode, string(body)))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, shared.NewStatusError("musicbrainz", resp.StatusCode, string(body))
	}

	var result artistSearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: failed to decode response: %v", shared.ErrAPIRequest, err)
	}

	return convertArtists(result.Artists), nil
}

func convertArtists(results []artistResult) []ArtistCandidate {
	candidates := make([]ArtistCandidate, 0, len(results))
	for i := range results {
		r := &results[i]
		c := ArtistCandidate{
			ID:             r.ID,
			Name:           r.Name,
			SortName:       r.SortName,
			Type:           r.Type,
			Disambiguation: r.Disambiguation,
			Score:          r.Score,
			Country:        r.Country,
		}
		if r.Area != nil {
			c.Area = r.Area.Name
		}
		if r.BeginArea != nil {
			c.BeginArea = r.BeginArea.Name
		}
		for _, a := range r.Aliases {
			if a.Name != "" {
				c.Aliases = append(c.Aliases, a.Name)
			}
		}
		candidates = append(candidates, c)
	}
	return candidates
}

var luceneEscaper = strings.NewReplacer(
	`\`, `\\`, `"`, `\"`,
)

// escapeLucene escapes characters that would terminate a quoted Lucene phrase.
func escapeLucene(s string) string {
	return luceneEscaper.Replace(s)
}
