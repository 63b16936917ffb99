package service

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"

	"nosql-labs/app/labs/model"
)

const (
	VersionFileFormat = "1.0.0"
	MetadataSuffix    = ".metadata.json"
	VersionReportJSON = "version_report.json"
	VersionReportMD   = "VERSION_REPORT.md"
	QualityReportJSON = "quality_report.json"
	QualityReportMD   = "DATA_SUMMARY.md"

	defaultStaleAfter = 30 * 24 * time.Hour
	day               = 24 * time.Hour
)

// Track outcomes.
const (
	TrackNew       = "new"
	TrackChanged   = "changed"
	TrackUnchanged = "unchanged"
)

var trackedExts = map[string]bool{".json": true, ".ndjson": true, ".jsonl": true, ".bson": true}

// VersionTracker keeps the version file of the datasets under Root. Datasets are
// keyed by their path relative to Root.
type VersionTracker struct {
	Root     string
	File     string
	Versions *model.VersionFile

	now func() time.Time
}

// NewVersionTracker loads file, starting an empty registry when it does not exist yet.
func NewVersionTracker(root, file string) (*VersionTracker, error) {
	t := &VersionTracker{Root: root, File: file, now: time.Now}
	content, err := os.ReadFile(file)
	switch {
	case os.IsNotExist(err):
		t.Versions = &model.VersionFile{
			Version:     VersionFileFormat,
			LastUpdated: t.now().UTC(),
			Datasets:    map[string]*model.DatasetVersion{},
		}
		return t, nil
	case err != nil:
		return nil, errors.WithStack(err)
	}
	versions := &model.VersionFile{}
	if err := json.Unmarshal(content, versions); err != nil {
		return nil, errors.Wrapf(err, "parse %s", file)
	}
	if versions.Datasets == nil {
		versions.Datasets = map[string]*model.DatasetVersion{}
	}
	t.Versions = versions
	return t, nil
}

func (t *VersionTracker) Save() error {
	return writeJSON(t.File, t.Versions)
}

// Names returns the tracked keys in order.
func (t *VersionTracker) Names() []string {
	names := make([]string, 0, len(t.Versions.Datasets))
	for name := range t.Versions.Datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Track records the current state of one file. A changed checksum bumps the minor
// version and moves the old one into the history.
func (t *VersionTracker) Track(path string, meta model.DatasetMetadata) (*model.DatasetVersion, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, "", errors.WithStack(err)
	}
	checksum, err := Checksum(path)
	if err != nil {
		return nil, "", err
	}
	key, err := filepath.Rel(t.Root, path)
	if err != nil {
		key = path
	}
	key = filepath.ToSlash(key)
	now := t.now().UTC()
	if meta.Source == "" {
		meta.Source = "internal"
	}
	if meta.License == "" {
		meta.License = "MIT"
	}
	frequency := meta.UpdateFrequency
	if frequency == "" {
		frequency = "static"
	}
	dataset := &model.DatasetVersion{
		Name:      filepath.Base(path),
		Path:      key,
		Checksum:  checksum,
		Size:      info.Size(),
		Modified:  info.ModTime().UTC(),
		Structure: AnalyzeStructure(path),
		Metadata:  meta,
		Version:   model.SemVer{Major: 1, Timestamp: now},
		Freshness: model.Freshness{
			LastValidated:   now,
			UpdateFrequency: frequency,
			ExpiresAt:       meta.ExpiresAt,
			Status:          model.FreshnessFresh,
		},
	}
	outcome := TrackNew
	if existing, ok := t.Versions.Datasets[key]; ok {
		if existing.Checksum != checksum {
			outcome = TrackChanged
			dataset.Version.Major = existing.Version.Major
			dataset.Version.Minor = existing.Version.Minor + 1
			dataset.PreviousVersions = append(existing.PreviousVersions, model.PreviousVersion{
				Version:   existing.Version.String(),
				Checksum:  existing.Checksum,
				Timestamp: existing.Version.Timestamp,
			})
		} else {
			outcome = TrackUnchanged
			dataset.Version = existing.Version
			dataset.PreviousVersions = existing.PreviousVersions
		}
	}
	t.Versions.Datasets[key] = dataset
	t.Versions.LastUpdated = now
	t.Versions.TotalDatasets = len(t.Versions.Datasets)
	return dataset, outcome, nil
}

// TrackDir tracks every dataset file below dir, reading sibling metadata files.
// fn, when set, is told the outcome of each file.
func (t *VersionTracker) TrackDir(dir string, fn func(d *model.DatasetVersion, outcome string)) (int, error) {
	tracked := 0
	err := filepath.WalkDir(dir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !isDatasetFile(path) || sameFile(path, t.File) {
			return nil
		}
		d, outcome, err := t.Track(path, LoadMetadata(path))
		if err != nil {
			return err
		}
		tracked++
		if fn != nil {
			fn(d, outcome)
		}
		return nil
	})
	if err != nil {
		return tracked, errors.WithStack(err)
	}
	return tracked, nil
}

func isDatasetFile(path string) bool {
	base := filepath.Base(path)
	if strings.HasSuffix(base, MetadataSuffix) || base == VersionReportJSON || base == QualityReportJSON {
		return false
	}
	return trackedExts[strings.ToLower(filepath.Ext(base))]
}

func sameFile(a, b string) bool {
	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)
	return errA == nil && errB == nil && absA == absB
}

// LoadMetadata reads <name>.metadata.json next to path. Missing or broken files give empty metadata.
func LoadMetadata(path string) model.DatasetMetadata {
	var meta model.DatasetMetadata
	file := strings.TrimSuffix(path, filepath.Ext(path)) + MetadataSuffix
	content, err := os.ReadFile(file)
	if err != nil {
		return meta
	}
	if err := json.Unmarshal(content, &meta); err != nil {
		Logger().WithField("file", file).Warn(err.Error())
		return model.DatasetMetadata{}
	}
	return meta
}

func Checksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.WithStack(err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.WithStack(err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// AnalyzeStructure reports the shape of a dataset file, or nil when it cannot be read.
func AnalyzeStructure(path string) *model.Structure {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".json" {
		return jsonStructure(path)
	}
	structure := &model.Structure{Type: "array", Fields: []string{}}
	n, err := ReadDataset(path, formatOrGuess(path, ""), func(doc bson.D) error {
		if structure.Count == 0 {
			structure.Fields = docKeys(doc)
		}
		structure.Count++
		return nil
	})
	if err != nil {
		return nil
	}
	structure.Count = n
	return structure
}

func jsonStructure(path string) *model.Structure {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	content = bytes.TrimSpace(content)
	if len(content) > 0 && content[0] == '{' {
		doc, err := model.ParseDoc(string(content))
		if err != nil {
			return nil
		}
		return &model.Structure{Type: "object", Count: len(doc), Fields: docKeys(doc)}
	}
	structure := &model.Structure{Type: "array", Fields: []string{}}
	n, err := readJSON(bytes.NewReader(content), false, func(doc bson.D) error {
		if structure.Count == 0 {
			structure.Fields = docKeys(doc)
		}
		structure.Count++
		return nil
	})
	if err != nil {
		return nil
	}
	structure.Count = n
	return structure
}

func docKeys(doc bson.D) []string {
	keys := make([]string, len(doc))
	for i, e := range doc {
		keys[i] = e.Key
	}
	return keys
}

// FrequencyWindow is how long a dataset with the given update frequency stays current.
// Zero means no window.
func FrequencyWindow(frequency string) time.Duration {
	switch strings.ToLower(frequency) {
	case "daily":
		return day
	case "weekly":
		return 7 * day
	case "monthly":
		return 30 * day
	case "quarterly":
		return 90 * day
	case "yearly", "annual", "annually":
		return 365 * day
	}
	return 0
}

// FreshnessOf classifies a dataset at now.
func FreshnessOf(d *model.DatasetVersion, now time.Time) string {
	age := now.Sub(d.Modified)
	window := FrequencyWindow(d.Freshness.UpdateFrequency)
	expiresAt := d.Freshness.ExpiresAt
	if expiresAt == nil {
		expiresAt = d.Metadata.ExpiresAt
	}
	switch {
	case expiresAt != nil && expiresAt.Before(now):
		return model.FreshnessExpired
	case window > 0 && age > window:
		return model.FreshnessExpired
	case window > 0 && age > window/2:
		return model.FreshnessStale
	case window == 0 && age > defaultStaleAfter:
		return model.FreshnessStale
	}
	return model.FreshnessFresh
}

// CheckFreshness updates the status of every dataset and returns the tally.
func (t *VersionTracker) CheckFreshness(now time.Time) model.FreshnessStats {
	var stats model.FreshnessStats
	checked := now.UTC()
	for _, d := range t.Versions.Datasets {
		d.Freshness.Status = FreshnessOf(d, now)
		d.Freshness.LastChecked = &checked
		d.Freshness.DaysSinceModified = int(math.Floor(now.Sub(d.Modified).Hours() / 24))
		stats.Add(d.Freshness.Status)
	}
	return stats
}

// Report flattens the registry, datasets ordered by path.
func (t *VersionTracker) Report(now time.Time) *model.VersionReport {
	report := &model.VersionReport{
		Generated: now.UTC(),
		Summary: model.VersionReportSummary{
			TotalDatasets: len(t.Versions.Datasets),
			Formats:       map[string]int{},
		},
		Datasets: make([]model.VersionReportItem, 0, len(t.Versions.Datasets)),
	}
	for _, name := range t.Names() {
		d := t.Versions.Datasets[name]
		report.Summary.TotalSize += d.Size
		report.Summary.Formats[strings.ToLower(filepath.Ext(d.Name))]++
		report.Summary.Freshness.Add(d.Freshness.Status)
		item := model.VersionReportItem{
			Name:         name,
			Version:      d.Version.String(),
			Size:         d.Size,
			Fields:       []string{},
			LastModified: d.Modified,
			Status:       d.Freshness.Status,
		}
		if d.Structure != nil {
			item.Records = d.Structure.Count
			item.Fields = d.Structure.Fields
		}
		report.Datasets = append(report.Datasets, item)
	}
	return report
}

// RenderVersionMarkdown renders the report as VERSION_REPORT.md.
func RenderVersionMarkdown(report *model.VersionReport) string {
	var sb strings.Builder
	sb.WriteString("# Data Version Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", report.Generated.Format(time.RFC3339))
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- **Total Datasets**: %d\n", report.Summary.TotalDatasets)
	fmt.Fprintf(&sb, "- **Total Size**: %.2f MB\n", float64(report.Summary.TotalSize)/1024/1024)
	formats := make([]string, 0, len(report.Summary.Formats))
	for ext, n := range report.Summary.Formats {
		formats = append(formats, fmt.Sprintf("%s (%d)", ext, n))
	}
	sort.Strings(formats)
	fmt.Fprintf(&sb, "- **Formats**: %s\n\n", strings.Join(formats, ", "))
	sb.WriteString("### Freshness Status\n")
	writeFreshness(&sb, report.Summary.Freshness, "")
	sb.WriteString("\n## Datasets\n\n")
	sb.WriteString("| Dataset | Version | Records | Fields | Size (KB) | Last Modified | Status |\n")
	sb.WriteString("|---------|---------|---------|--------|-----------|---------------|--------|\n")
	for _, d := range report.Datasets {
		fmt.Fprintf(&sb, "| %s | %s | %d | %d | %.1f | %s | %s |\n",
			d.Name, d.Version, d.Records, len(d.Fields), float64(d.Size)/1024,
			d.LastModified.Format("2006-01-02"), d.Status)
	}
	return sb.String()
}

func writeFreshness(sb *strings.Builder, stats model.FreshnessStats, unit string) {
	fmt.Fprintf(sb, "- Fresh: %d%s\n", stats.Fresh, unit)
	fmt.Fprintf(sb, "- Stale: %d%s\n", stats.Stale, unit)
	fmt.Fprintf(sb, "- Expired: %d%s\n", stats.Expired, unit)
}

// WriteVersionReport writes the JSON and Markdown forms into dir.
func WriteVersionReport(dir string, report *model.VersionReport) ([]string, error) {
	jsonPath := filepath.Join(dir, VersionReportJSON)
	mdPath := filepath.Join(dir, VersionReportMD)
	if err := writeJSON(jsonPath, report); err != nil {
		return nil, err
	}
	if err := os.WriteFile(mdPath, []byte(RenderVersionMarkdown(report)), 0o644); err != nil {
		return nil, errors.WithStack(err)
	}
	return []string{jsonPath, mdPath}, nil
}

func writeJSON(path string, v interface{}) error {
	content, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.WithStack(err)
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return errors.WithStack(err)
		}
	}
	return errors.WithStack(os.WriteFile(path, append(content, '\n'), 0o644))
}
