package service

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"nosql-labs/app/labs/model"
)

// BuildQualityReport combines schema validation results with the version registry.
// Freshness is read from the statuses already stored on each dataset.
func BuildQualityReport(versions *model.VersionFile, validation []model.ValidationResult, now time.Time) *model.QualityReport {
	report := &model.QualityReport{Generated: now.UTC(), Validation: validation}
	if report.Validation == nil {
		report.Validation = []model.ValidationResult{}
	}
	coverage := &report.Coverage
	if versions != nil {
		for _, d := range versions.Datasets {
			report.Freshness.Add(d.Freshness.Status)
			if d.Metadata.Description != "" {
				coverage.Documented++
			}
		}
		coverage.TotalDatasets = len(versions.Datasets)
	}
	coverage.Versioned = coverage.TotalDatasets
	for _, v := range validation {
		if v.Invalid == 0 {
			coverage.Validated++
		}
	}
	if coverage.TotalDatasets > 0 {
		coverage.PercentageDocumented = percent(coverage.Documented, coverage.TotalDatasets)
		coverage.PercentageValidated = percent(coverage.Validated, coverage.TotalDatasets)
	}
	return report
}

func percent(n, total int) int {
	return int(math.Round(float64(n) * 100 / float64(total)))
}

// RenderQualityMarkdown renders DATA_SUMMARY.md.
func RenderQualityMarkdown(report *model.QualityReport) string {
	var sb strings.Builder
	sb.WriteString("# Data Management Summary\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", report.Generated.Format(time.RFC3339))
	sb.WriteString("## Data Quality Metrics\n\n### Freshness Status\n")
	writeFreshness(&sb, report.Freshness, " datasets")
	sb.WriteString("\n### Validation Results\n")
	if len(report.Validation) == 0 {
		sb.WriteString("\nNo validation results available.\n")
	} else {
		sb.WriteString("\n| Dataset | Total Records | Valid | Invalid | Status |\n")
		sb.WriteString("|---------|--------------|-------|---------|--------|\n")
		for _, v := range report.Validation {
			status := "Pass"
			if v.Invalid > 0 {
				status = "Fail"
			}
			name := v.Collection
			if v.File != "" {
				name = filepath.Base(v.File)
			}
			fmt.Fprintf(&sb, "| %s | %d | %d | %d | %s |\n", name, v.Total, v.Valid, v.Invalid, status)
		}
	}
	c := report.Coverage
	sb.WriteString("\n### Coverage Statistics\n")
	fmt.Fprintf(&sb, "- Total Datasets: %d\n", c.TotalDatasets)
	fmt.Fprintf(&sb, "- Documented: %d (%d%%)\n", c.Documented, c.PercentageDocumented)
	fmt.Fprintf(&sb, "- Validated: %d (%d%%)\n", c.Validated, c.PercentageValidated)
	fmt.Fprintf(&sb, "- Version Tracked: %d\n", c.Versioned)
	return sb.String()
}

// WriteQualityReport writes quality_report.json and DATA_SUMMARY.md into dir.
func WriteQualityReport(dir string, report *model.QualityReport) ([]string, error) {
	jsonPath := filepath.Join(dir, QualityReportJSON)
	mdPath := filepath.Join(dir, QualityReportMD)
	if err := writeJSON(jsonPath, report); err != nil {
		return nil, err
	}
	if err := os.WriteFile(mdPath, []byte(RenderQualityMarkdown(report)), 0o644); err != nil {
		return nil, errors.WithStack(err)
	}
	return []string{jsonPath, mdPath}, nil
}
