package model

import (
	"fmt"
	"time"
)

const (
	FreshnessFresh   = "fresh"
	FreshnessStale   = "stale"
	FreshnessExpired = "expired"
)

// VersionFile is the on-disk registry of tracked datasets.
type VersionFile struct {
	Version       string                     `json:"version"`
	LastUpdated   time.Time                  `json:"lastUpdated"`
	TotalDatasets int                        `json:"totalDatasets"`
	Datasets      map[string]*DatasetVersion `json:"datasets"`
}

type DatasetVersion struct {
	Name             string            `json:"name"`
	Path             string            `json:"path"`
	Checksum         string            `json:"checksum"`
	Size             int64             `json:"size"`
	Modified         time.Time         `json:"modified"`
	Structure        *Structure        `json:"structure"`
	Metadata         DatasetMetadata   `json:"metadata"`
	Version          SemVer            `json:"version"`
	PreviousVersions []PreviousVersion `json:"previousVersions,omitempty"`
	Freshness        Freshness         `json:"freshness"`
}

// Structure describes the top level of a JSON file.
type Structure struct {
	Type   string   `json:"type"`
	Count  int      `json:"count"`
	Fields []string `json:"fields"`
}

// DatasetMetadata is read from a sibling <name>.metadata.json when present.
type DatasetMetadata struct {
	Description     string     `json:"description"`
	Source          string     `json:"source"`
	License         string     `json:"license"`
	Tags            []string   `json:"tags"`
	UsedInLabs      []string   `json:"usedInLabs"`
	Dependencies    []string   `json:"dependencies"`
	UpdateFrequency string     `json:"updateFrequency,omitempty"`
	ExpiresAt       *time.Time `json:"expiresAt,omitempty"`
}

type SemVer struct {
	Major     int       `json:"major"`
	Minor     int       `json:"minor"`
	Patch     int       `json:"patch"`
	Timestamp time.Time `json:"timestamp"`
}

func (v SemVer) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

type PreviousVersion struct {
	Version   string    `json:"version"`
	Checksum  string    `json:"checksum"`
	Timestamp time.Time `json:"timestamp"`
}

type Freshness struct {
	LastValidated     time.Time  `json:"lastValidated"`
	LastChecked       *time.Time `json:"lastChecked,omitempty"`
	UpdateFrequency   string     `json:"updateFrequency"`
	ExpiresAt         *time.Time `json:"expiresAt"`
	Status            string     `json:"status"`
	DaysSinceModified int        `json:"daysSinceModified"`
}

// FreshnessStats counts datasets per freshness status.
type FreshnessStats struct {
	Fresh   int `json:"fresh"`
	Stale   int `json:"stale"`
	Expired int `json:"expired"`
}

func (f *FreshnessStats) Add(status string) {
	switch status {
	case FreshnessFresh:
		f.Fresh++
	case FreshnessStale:
		f.Stale++
	case FreshnessExpired:
		f.Expired++
	}
}

// VersionReport is the flattened view of a VersionFile.
type VersionReport struct {
	Generated time.Time            `json:"generated"`
	Summary   VersionReportSummary `json:"summary"`
	Datasets  []VersionReportItem  `json:"datasets"`
}

type VersionReportSummary struct {
	TotalDatasets int            `json:"totalDatasets"`
	TotalSize     int64          `json:"totalSize"`
	Formats       map[string]int `json:"formats"`
	Freshness     FreshnessStats `json:"freshness"`
}

type VersionReportItem struct {
	Name         string    `json:"name"`
	Version      string    `json:"version"`
	Size         int64     `json:"size"`
	Records      int       `json:"records"`
	Fields       []string  `json:"fields"`
	LastModified time.Time `json:"lastModified"`
	Status       string    `json:"status"`
}

// ValidationResult summarizes a schema run over one file or collection.
type ValidationResult struct {
	File       string           `json:"file,omitempty"`
	Collection string           `json:"collection,omitempty"`
	Schema     string           `json:"schema"`
	Total      int              `json:"total"`
	Valid      int              `json:"valid"`
	Invalid    int              `json:"invalid"`
	Errors     []DocumentErrors `json:"errors"`
}

type DocumentErrors struct {
	Index  int         `json:"index"`
	ID     interface{} `json:"_id,omitempty"`
	Errors []string    `json:"errors"`
}

type Coverage struct {
	TotalDatasets        int `json:"totalDatasets"`
	Documented           int `json:"documented"`
	Validated            int `json:"validated"`
	Versioned            int `json:"versioned"`
	PercentageDocumented int `json:"percentageDocumented"`
	PercentageValidated  int `json:"percentageValidated"`
}

type QualityReport struct {
	Generated  time.Time          `json:"generated"`
	Validation []ValidationResult `json:"validation"`
	Freshness  FreshnessStats     `json:"freshness"`
	Coverage   Coverage           `json:"coverage"`
}
