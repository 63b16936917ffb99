package schema

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"nosql-labs/app/labs/model"
	"nosql-labs/app/labs/service"
	"nosql-labs/cmd/setup"
	"nosql-labs/common/log"
	ext "nosql-labs/config"
)

var (
	configYml string
	schemas   string
	database  string
	format    string
	sample    int
	StartCmd  = &cobra.Command{
		Use:   "schema",
		Short: "Apply and check $jsonSchema validators",
	}
	applyCmd = &cobra.Command{
		Use:          "apply [schema...]",
		Short:        "Install validators: collMod on existing collections, createCollection otherwise",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return apply(args)
		},
	}
	validateCmd = &cobra.Command{
		Use:          "validate [schema...]",
		Short:        "Validate the seed files bound to each schema without touching MongoDB",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateFiles(args)
		},
	}
	validateMongoCmd = &cobra.Command{
		Use:          "validate-mongo [schema...]",
		Short:        "Validate the documents already stored in each schema's collection",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return validateMongo(args)
		},
	}
	inferCmd = &cobra.Command{
		Use:          "infer <collection>",
		Short:        "Sample a collection and print the observed field types and a draft schema",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return infer(args[0])
		},
	}
)

func init() {
	StartCmd.PersistentFlags().StringVarP(&configYml, "config", "c", "config/settings.yml", "configuration file")
	StartCmd.PersistentFlags().StringVarP(&schemas, "schemas", "s", "", "schema file, defaults to data.schemas")
	StartCmd.PersistentFlags().StringVarP(&database, "database", "d", "", "target database")
	validateCmd.Flags().StringVarP(&format, "format", "f", "", "dataset format, guessed from the extension when empty")
	inferCmd.Flags().IntVar(&sample, "sample", service.DefaultInferSample, "documents to sample")
	StartCmd.AddCommand(applyCmd, validateCmd, validateMongoCmd, inferCmd)
}

// load reads the schema file and keeps the named entries, or all of them.
func load(names []string) ([]*model.SchemaEntry, error) {
	if schemas == "" {
		schemas = ext.ExtConfig.Data.Schemas
	}
	set, err := model.LoadSchemas(schemas)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		names = set.Names()
	}
	entries := make([]*model.SchemaEntry, 0, len(names))
	for _, name := range names {
		entry, err := set.Get(name)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func withMongo(f func(ctx context.Context, svc *service.LabService) error) error {
	if err := setup.Config(configYml); err != nil {
		return err
	}
	ctx := startingCtx()
	defer log.Shutdown()
	client, err := setup.Mongo(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()
	return f(ctx, service.NewLabService(client, setup.DefaultDatabase()))
}

func apply(names []string) error {
	return withMongo(func(ctx context.Context, svc *service.LabService) error {
		entries, err := load(names)
		if err != nil {
			return err
		}
		db := svc.Database(database)
		for _, entry := range entries {
			created, err := service.ApplySchema(ctx, db, entry.CollectionName(), entry.Schema)
			if err != nil {
				return errors.Wrapf(err, "schema %s", entry.Name)
			}
			action := "updated validator of"
			if created {
				action = "created"
			}
			fmt.Printf("%s %s.%s\n", action, db.Name(), entry.CollectionName())
		}
		return nil
	})
}

func validateFiles(names []string) error {
	if err := setup.Config(configYml); err != nil {
		return err
	}
	defer log.Shutdown()
	entries, err := load(names)
	if err != nil {
		return err
	}
	results := make([]model.ValidationResult, 0, len(entries))
	for _, entry := range entries {
		if entry.File == "" {
			continue
		}
		path := entry.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(ext.ExtConfig.Data.Root, path)
		}
		result, err := service.ValidateFile(path, format, entry.Name, entry.Schema)
		if err != nil {
			return err
		}
		results = append(results, result)
	}
	return printResults(results)
}

func validateMongo(names []string) error {
	return withMongo(func(ctx context.Context, svc *service.LabService) error {
		entries, err := load(names)
		if err != nil {
			return err
		}
		db := svc.Database(database)
		results := make([]model.ValidationResult, 0, len(entries))
		for _, entry := range entries {
			result, err := service.ValidateCollection(ctx, db, entry.CollectionName(), entry.Name, entry.Schema)
			if err != nil {
				return err
			}
			results = append(results, result)
		}
		return printResults(results)
	})
}

func printResults(results []model.ValidationResult) error {
	invalid := 0
	for _, r := range results {
		target := r.Collection
		if r.File != "" {
			target = r.File
		}
		status := "OK  "
		if r.Invalid > 0 {
			status = "FAIL"
			invalid++
		}
		fmt.Printf("%s %s [%s] %d/%d valid\n", status, target, r.Schema, r.Valid, r.Total)
		for _, d := range r.Errors {
			fmt.Printf("  #%d: %s\n", d.Index, strings.Join(d.Errors, "; "))
		}
	}
	if invalid > 0 {
		return errors.Wrapf(service.ErrValidationFailed, "%d of %d", invalid, len(results))
	}
	return nil
}

func infer(collection string) error {
	return withMongo(func(ctx context.Context, svc *service.LabService) error {
		inferred, err := service.InferSchema(ctx, svc.Database(database).Collection(collection), sample)
		if err != nil {
			return err
		}
		fmt.Printf("Sampled %d documents of %s\n", inferred.Sampled, collection)
		for _, f := range inferred.Fields {
			parts := make([]string, 0, len(f.Types))
			for _, e := range f.Ranked() {
				parts = append(parts, fmt.Sprintf("%s %d", e.Key, e.Count))
			}
			fmt.Printf("  %s: %s\n", f.Path, strings.Join(parts, ", "))
		}
		draft := model.SchemaSet{collection: {Collection: collection, Schema: inferred.Draft()}}
		out, err := yaml.Marshal(draft)
		if err != nil {
			return errors.WithStack(err)
		}
		fmt.Printf("\n%s", out)
		return nil
	})
}
