package seed

import (
	"context"
	"fmt"

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
	database  string
	reset     bool
	StartCmd  = &cobra.Command{
		Use:          "seed [dataset...]",
		Short:        "Load the datasets of a manifest into their collections",
		Example:      "labctl seed --manifest data/manifest.yml vendors.json",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args)
		},
	}
)

func init() {
	StartCmd.PersistentFlags().StringVarP(&configYml, "config", "c", "config/settings.yml", "configuration file")
	StartCmd.Flags().StringVarP(&manifest, "manifest", "m", "", "dataset manifest, defaults to data.manifest")
	StartCmd.Flags().StringVarP(&database, "database", "d", "", "seed into this database")
	StartCmd.Flags().BoolVar(&reset, "reset", false, "empty every collection before inserting")
}

func run(names []string) error {
	if err := setup.Config(configYml); err != nil {
		return err
	}
	ctx := startingCtx()
	defer log.Shutdown()

	if manifest == "" {
		manifest = ext.ExtConfig.Data.Manifest
	}
	m, err := model.LoadManifest(manifest)
	if err != nil {
		return err
	}
	datasets, err := selectDatasets(m.Datasets, names)
	if err != nil {
		return err
	}

	client, err := setup.Mongo(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()
	svc := service.NewLabService(client, setup.DefaultDatabase())

	failed := 0
	for _, d := range datasets {
		if reset {
			d.Reset = true
		}
		target := database
		if target == "" {
			target = d.Database
		}
		db := svc.Database(target)
		_ = log.WithTracer(ctx, PackageName, "seed "+d.Path, func(ctx context.Context) error {
			n, err := service.Seed(ctx, db, m.Resolve(d), d)
			if err != nil {
				failed++
				fmt.Printf("ERR %s: %s\n", d.Path, err.Error())
				return err
			}
			fmt.Printf("OK  %s -> %s.%s (%d documents)\n", d.Path, db.Name(), d.CollectionName(), n)
			return nil
		})
	}
	if failed > 0 {
		return errors.Errorf("%d of %d datasets failed to seed", failed, len(datasets))
	}
	return nil
}

// selectDatasets keeps the datasets whose path or collection is named; all of them when none is.
func selectDatasets(datasets []model.Dataset, names []string) ([]model.Dataset, error) {
	if len(names) == 0 {
		return datasets, nil
	}
	selected := make([]model.Dataset, 0, len(names))
	for _, name := range names {
		found := false
		for _, d := range datasets {
			if d.Path == name || d.CollectionName() == name {
				selected = append(selected, d)
				found = true
				break
			}
		}
		if !found {
			return nil, errors.Errorf("dataset %s is not in the manifest", name)
		}
	}
	return selected, nil
}
