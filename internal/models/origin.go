package models

import "fmt"

// OriginStatus is the outcome of resolving an artist's origin.
type OriginStatus string

const (
	StatusSuccess   OriginStatus = "success"
	StatusNotFound  OriginStatus = "not_found"
	StatusAmbiguous OriginStatus = "ambiguous"
	StatusError     OriginStatus = "error"
)

// Valid reports whether s is one of the known statuses.
func (s OriginStatus) Valid() bool {
	switch s {
	case StatusSuccess, StatusNotFound, StatusAmbiguous, StatusError:
		return true
	}
	return false
}

// OriginRecord is an artist's place of origin. Every location field is optional.
type OriginRecord struct {
	City    *string      `json:"city"`
	Country *string      `json:"country"`
	Area    *string      `json:"area"`
	Status  OriginStatus `json:"status"`
	Error   string       `json:"error,omitempty"`
}

// Resolved builds a success record; empty strings become null fields.
func Resolved(city, area, country string) OriginRecord {
	return OriginRecord{
		City:    optional(city),
		Area:    optional(area),
		Country: optional(country),
		Status:  StatusSuccess,
	}
}

// NotFound is the record for an artist the metadata service does not know.
func NotFound() OriginRecord {
	return OriginRecord{Status: StatusNotFound}
}

// Ambiguous is the record for a name shared by several metadata entries. It never carries a location.
func Ambiguous() OriginRecord {
	return OriginRecord{Status: StatusAmbiguous}
}

// Failed is the record for a lookup that could not complete.
func Failed(err error) OriginRecord {
	rec := OriginRecord{Status: StatusError}
	if err != nil {
		rec.Error = err.Error()
	}
	return rec
}

// Validate checks the status and that only successful records carry a location.
func (o OriginRecord) Validate() error {
	if !o.Status.Valid() {
		return fmt.Errorf("unknown origin status %q", o.Status)
	}
	if o.Status != StatusSuccess && o.HasLocation() {
		return fmt.Errorf("%s origin must not carry location fields", o.Status)
	}
	return nil
}

// HasLocation reports whether any of city, area, or country is set.
func (o OriginRecord) HasLocation() bool {
	return o.City != nil || o.Area != nil || o.Country != nil
}

// Value dereferences an optional field, returning "" for null.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
