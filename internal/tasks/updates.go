package tasks

import (
	"fmt"

	"github.com/desertthunder/geolist/internal/models"
)

// ProgressUpdate represents a progress event during a pipeline run.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Pipeline phase enumeration
type Phase int

const (
	FetchLibrary Phase = iota
	LoadInput
	GroupArtists
	ClearCache
	ResolveOrigins
	Aggregate
	WriteOutput
)

func (p Phase) String() string {
	switch p {
	case FetchLibrary:
		return "fetch_library"
	case LoadInput:
		return "load_input"
	case GroupArtists:
		return "group_artists"
	case ClearCache:
		return "clear_cache"
	case ResolveOrigins:
		return "resolve_origins"
	case Aggregate:
		return "aggregate"
	case WriteOutput:
		return "write_output"
	default:
		return ""
	}
}

func fetchLibraryUpdate(fetched, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchLibrary,
		Step:    fetched,
		Total:   total,
		Message: fmt.Sprintf("Fetched %d/%d saved tracks...", fetched, total),
	}
}

func loadInputUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   LoadInput,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Loading saved library from %s...", path),
	}
}

func groupArtistsUpdate(artists, tracks int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   GroupArtists,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found %d artists across %d tracks", artists, tracks),
	}
}

func clearCacheUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   ClearCache,
		Step:    1,
		Total:   1,
		Message: "Clearing response cache...",
	}
}

func resolveOriginUpdate(step, total int, artist models.ArtistKey, origin models.OriginRecord) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveOrigins,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s", step, total, artist, origin.Status),
		Data:    origin,
	}
}

func aggregateUpdate(artists int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Aggregate,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Merged %d artist records", artists),
	}
}

func writeOutputUpdate(step, total int, path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteOutput,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("Writing %s...", path),
	}
}
