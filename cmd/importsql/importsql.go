package importsql

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"nosql-labs/app/labs/service"
	"nosql-labs/cmd/setup"
	"nosql-labs/common/log"
	ext "nosql-labs/config"
)

var (
	configYml string
	plan      string
	database  string
	StartCmd  = &cobra.Command{
		Use:          "import-sql",
		Short:        "Copy SQL tables into MongoDB collections",
		Example:      "labctl import-sql --plan data/sakila.yml -c config/settings.yml",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
)

func init() {
	StartCmd.PersistentFlags().StringVarP(&configYml, "config", "c", "config/settings.yml", "configuration file")
	StartCmd.Flags().StringVarP(&plan, "plan", "p", "", "import plan listing the tables to copy")
	StartCmd.Flags().StringVarP(&database, "database", "d", "", "target database instead of the plan's")
	_ = StartCmd.MarkFlagRequired("plan")
}

func run() error {
	if err := setup.Config(configYml); err != nil {
		return err
	}
	ctx := startingCtx()
	defer log.Shutdown()

	p, err := service.LoadImportPlan(plan)
	if err != nil {
		return err
	}
	gormDB, err := setup.Gorm(ctx)
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

	target := database
	if target == "" {
		target = p.Database
	}
	db := service.NewLabService(client, setup.DefaultDatabase()).Database(target)
	results, err := service.ImportTables(ctx, gormDB, db, p.Tables, ext.ExtConfig.SQL.BatchSize)
	for _, r := range results {
		if r.Error != "" {
			fmt.Printf("ERR %s -> %s.%s: %s\n", r.Table, db.Name(), r.Collection, r.Error)
			continue
		}
		fmt.Printf("OK  %s -> %s.%s (%d rows)\n", r.Table, db.Name(), r.Collection, r.Rows)
	}
	return err
}
