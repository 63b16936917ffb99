package check

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"nosql-labs/app/labs/model"
	"nosql-labs/app/labs/service"
	"nosql-labs/cmd/setup"
	"nosql-labs/common/log"
)

var (
	configYml string
	database  string
	StartCmd  = &cobra.Command{
		Use:          "check <checks.yml>",
		Short:        "Compare document counts with the expectations of a check file",
		Example:      "labctl check data/checks.yml -c config/settings.yml",
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0])
		},
	}
)

func init() {
	StartCmd.PersistentFlags().StringVarP(&configYml, "config", "c", "config/settings.yml", "configuration file")
	StartCmd.Flags().StringVarP(&database, "database", "d", "", "database to check instead of the file's")
}

func run(path string) error {
	if err := setup.Config(configYml); err != nil {
		return err
	}
	ctx := startingCtx()
	defer log.Shutdown()

	file, err := model.LoadChecks(path)
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

	name := database
	if name == "" {
		name = file.Database
	}
	svc := service.NewLabService(client, setup.DefaultDatabase())
	results, err := service.RunChecks(ctx, svc.Database(name), file.Checks)
	fmt.Print(service.FormatChecks(results))
	return err
}
