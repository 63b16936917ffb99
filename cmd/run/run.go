package run

import (
	"context"
	"os"

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
	only      []string
	failFast  bool
	database  string
	formats   []string
	all       bool
	StartCmd  = &cobra.Command{
		Use:          "run [book...]",
		Short:        "Run query books and print their results",
		Example:      "labctl run queries/festival.yml --only top_events -c config/settings.yml",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all {
				return errors.New("name at least one book or pass --all")
			}
			return run(args)
		},
	}
)

func init() {
	StartCmd.PersistentFlags().StringVarP(&configYml, "config", "c", "config/settings.yml", "configuration file")
	StartCmd.Flags().StringSliceVar(&only, "only", nil, "run only these queries")
	StartCmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop a book at its first failed query")
	StartCmd.Flags().StringVarP(&database, "database", "d", "", "run against this database instead of the book's")
	StartCmd.Flags().StringSliceVar(&formats, "report", nil, "reporters to use instead of reports.formats")
	StartCmd.Flags().BoolVar(&all, "all", false, "run every book in data.books")
}

func run(args []string) error {
	if err := setup.Config(configYml); err != nil {
		return err
	}
	ctx := startingCtx()
	defer log.Shutdown()

	books, err := loadBooks(args)
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

	if formats == nil {
		formats = ext.ExtConfig.Reports.Formats
	}
	reporters, err := setup.Reporters(ctx, client, formats, os.Stdout)
	if err != nil {
		return err
	}
	svc := service.NewLabService(client, setup.DefaultDatabase(), reporters...)

	failed := 0
	for _, book := range books {
		if database != "" {
			book.Database = database
		}
		_ = log.WithTracer(ctx, PackageName, "book "+book.Name, func(ctx context.Context) error {
			_, err := svc.RunBook(ctx, book, service.RunOptions{FailFast: failFast, Only: only})
			if err != nil {
				failed++
			}
			return err
		})
	}
	if failed > 0 {
		return errors.Errorf("%d of %d books failed", failed, len(books))
	}
	return nil
}

func loadBooks(args []string) ([]*model.QueryBook, error) {
	if all {
		return model.LoadBooks(ext.ExtConfig.Data.Books)
	}
	books := make([]*model.QueryBook, 0, len(args))
	for _, arg := range args {
		book, err := setup.LoadBook(arg)
		if err != nil {
			return nil, err
		}
		books = append(books, book)
	}
	return books, nil
}
