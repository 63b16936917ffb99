package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"nosql-labs/app/labs/model"
	"nosql-labs/app/labs/service"
	"nosql-labs/cmd/setup"
	"nosql-labs/common/log"
	ext "nosql-labs/config"
)

var (
	configYml string
	manifest  string
	dir       string
	outDir    string
	StartCmd  = &cobra.Command{
		Use:   "dataset",
		Short: "Smoke test, version and report the seed datasets",
	}
	smokeCmd = &cobra.Command{
		Use:          "smoke",
		Short:        "Count the documents of every dataset in the manifest",
		Example:      "labctl dataset smoke --manifest data/manifest.yml",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return smoke()
		},
	}
	trackCmd = &cobra.Command{
		Use:          "track",
		Short:        "Record checksums and bump versions of changed dataset files",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return track()
		},
	}
	freshnessCmd = &cobra.Command{
		Use:          "freshness",
		Short:        "Mark tracked datasets fresh, stale or expired",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return freshness()
		},
	}
	reportCmd = &cobra.Command{
		Use:          "report",
		Short:        "Write the version report and the data quality summary",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return report()
		},
	}
)

func init() {
	StartCmd.PersistentFlags().StringVarP(&configYml, "config", "c", "config/settings.yml", "configuration file")
	smokeCmd.Flags().StringVarP(&manifest, "manifest", "m", "", "dataset manifest, defaults to data.manifest")
	trackCmd.Flags().StringVar(&dir, "dir", "", "directory to scan, defaults to data.root")
	reportCmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory, defaults to data.root")
	StartCmd.AddCommand(smokeCmd, trackCmd, freshnessCmd, reportCmd)
}

func smoke() error {
	if err := setup.Config(configYml); err != nil {
		return err
	}
	defer log.Shutdown()
	if manifest == "" {
		manifest = ext.ExtConfig.Data.Manifest
	}
	m, err := model.LoadManifest(manifest)
	if err != nil {
		return err
	}
	_, err = service.SmokeTest(m, os.Stdout)
	return err
}

func tracker() (*service.VersionTracker, error) {
	cfg := ext.ExtConfig.Data
	return service.NewVersionTracker(cfg.Root, cfg.VersionFile)
}

func track() error {
	if err := setup.Config(configYml); err != nil {
		return err
	}
	defer log.Shutdown()
	t, err := tracker()
	if err != nil {
		return err
	}
	if dir == "" {
		dir = t.Root
	}
	n, err := t.TrackDir(dir, func(d *model.DatasetVersion, outcome string) {
		fmt.Printf("%-9s %s v%s\n", outcome, d.Name, d.Version)
	})
	if err != nil {
		return err
	}
	if err := t.Save(); err != nil {
		return err
	}
	fmt.Printf("Tracked %d datasets in %s\n", n, t.File)
	return nil
}

func freshness() error {
	if err := setup.Config(configYml); err != nil {
		return err
	}
	defer log.Shutdown()
	t, err := tracker()
	if err != nil {
		return err
	}
	stats := t.CheckFreshness(time.Now())
	for _, name := range t.Names() {
		d := t.Versions.Datasets[name]
		fmt.Printf("%-8s %s (%d days since modified)\n", d.Freshness.Status, name, d.Freshness.DaysSinceModified)
	}
	fmt.Printf("Fresh: %d, stale: %d, expired: %d\n", stats.Fresh, stats.Stale, stats.Expired)
	return t.Save()
}

// report validates every schema bound to a file, then writes both reports.
func report() error {
	if err := setup.Config(configYml); err != nil {
		return err
	}
	ctx := startingCtx()
	defer log.Shutdown()
	cfg := ext.ExtConfig.Data
	if outDir == "" {
		outDir = cfg.Root
	}
	t, err := tracker()
	if err != nil {
		return err
	}
	now := time.Now()
	t.CheckFreshness(now)
	written, err := service.WriteVersionReport(outDir, t.Report(now))
	if err != nil {
		return err
	}

	validation := make([]model.ValidationResult, 0)
	if schemas, err := model.LoadSchemas(cfg.Schemas); err == nil {
		for _, name := range schemas.Names() {
			entry := schemas[name]
			if entry.File == "" {
				continue
			}
			path := entry.File
			if !filepath.IsAbs(path) {
				path = filepath.Join(cfg.Root, path)
			}
			result, err := service.ValidateFile(path, "", name, entry.Schema)
			if err != nil {
				log.Logger().WithContext(ctx).WithField("schema", name).Error(err.Error())
				continue
			}
			validation = append(validation, result)
		}
	} else if !os.IsNotExist(errors.Cause(err)) {
		return err
	}
	quality, err := service.WriteQualityReport(outDir, service.BuildQualityReport(t.Versions, validation, now))
	if err != nil {
		return err
	}
	for _, path := range append(written, quality...) {
		fmt.Println("wrote", path)
	}
	return t.Save()
}
