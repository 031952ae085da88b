// package formatter reads and writes artist record sets (JSON document, CSV origin table)
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/desertthunder/geolist/internal/models"
	"github.com/desertthunder/geolist/internal/shared"
)

// ExportToJSON renders the library as the indented output document.
//
// Artists appear in sorted order, missing origin fields are null, and non-ASCII text is kept verbatim.
func ExportToJSON(lib models.Library) ([]byte, error) {
	if lib == nil {
		lib = models.Library{}
	}
	return shared.MarshalJSON(lib, true)
}

// WriteJSONExport writes the output document to path, creating parent directories.
func WriteJSONExport(lib models.Library, path string) (string, error) {
	data, err := ExportToJSON(lib)
	if err != nil {
		return "", fmt.Errorf("failed to generate JSON: %w", err)
	}
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

// ParseLibraryJSON decodes a previously written output document.
//
// Artist names are restored from the document keys. A record without an origin is treated as not_found.
func ParseLibraryJSON(data []byte) (models.Library, error) {
	var lib models.Library
	if err := json.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("%w: malformed library document: %v", shared.ErrInvalidInput, err)
	}
	if lib == nil {
		lib = models.Library{}
	}

	for artist, rec := range lib {
		if rec == nil {
			rec = models.NewArtistRecord(string(artist), "", "")
			lib[artist] = rec
		}
		rec.ArtistName = string(artist)
		if rec.Songs == nil {
			rec.Songs = make(map[string]models.Song)
		}
		if rec.Origin.Status == "" {
			rec.Origin = models.NotFound()
		}
		if err := rec.Origin.Validate(); err != nil {
			return nil, fmt.Errorf("%w: artist %q: %v", shared.ErrInvalidInput, artist, err)
		}
	}
	return lib, nil
}

// LoadLibraryFile reads an output document from path.
func LoadLibraryFile(path string) (models.Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read library file: %w", err)
	}
	return ParseLibraryJSON(data)
}

// ExportOriginsCSV converts the library to one CSV row per artist with columns:
// Artist, Artist ID, City, Area, Country, Status, Songs
func ExportOriginsCSV(lib models.Library) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Artist", "Artist ID", "City", "Area", "Country", "Status", "Songs"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, artist := range lib.Artists() {
		rec := lib[artist]
		record := []string{
			string(artist),
			rec.ArtistID,
			models.Value(rec.Origin.City),
			models.Value(rec.Origin.Area),
			models.Value(rec.Origin.Country),
			string(rec.Origin.Status),
			strconv.Itoa(len(rec.Songs)),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// WriteCSVExport writes the origin table to path.
func WriteCSVExport(lib models.Library, path string) (string, error) {
	data, err := ExportOriginsCSV(lib)
	if err != nil {
		return "", fmt.Errorf("failed to generate CSV: %w", err)
	}
	if err := writeFile(path, data); err != nil {
		return "", err
	}
	return path, nil
}

func writeFile(path string, data []byte) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	return nil
}
