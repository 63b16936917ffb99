package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/mongo"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"nosql-labs/app/labs/api"
	"nosql-labs/app/labs/service"
	"nosql-labs/cmd/setup"
	"nosql-labs/common/global"
	"nosql-labs/common/log"
	ext "nosql-labs/config"
)

var (
	configYml string
	StartCmd  = &cobra.Command{
		Use:          "server",
		Short:        "Start API server",
		Example:      "labctl server -c config/settings.yml",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
)

func init() {
	StartCmd.PersistentFlags().StringVarP(&configYml, "config", "c", "config/settings.yml", "Start server with provided configuration file")
}

func run() error {
	if err := setup.Config(configYml); err != nil {
		return err
	}
	startCtx := startingCtx()
	defer log.Shutdown()

	client, err := setup.Mongo(startCtx)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Disconnect(context.Background())
	}()

	cfg := ext.ExtConfig
	reporters, err := setup.Reporters(startCtx, client, cfg.Reports.Formats, nil)
	if err != nil {
		return err
	}
	svc := service.NewLabService(client, setup.DefaultDatabase(), reporters...)
	sources, err := reportSources(startCtx, client)
	if err != nil {
		return err
	}
	labAPI := api.NewLabAPI(svc, &service.BookStore{Dir: cfg.Data.Books}, cfg.Data.Root, sources...)

	var scheduler *service.Scheduler
	err = log.WithTracer(startCtx, PackageName, "setup scheduler", func(ctx context.Context) error {
		if len(cfg.Schedule.Books) == 0 {
			return nil
		}
		scheduler = service.NewScheduler(svc)
		for _, b := range cfg.Schedule.Books {
			if err := scheduler.Add(service.ScheduledBook{Spec: b.Spec, Path: b.Path}); err != nil {
				log.Logger().WithContext(ctx).Error(err.Error())
				return err
			}
		}
		scheduler.Start()
		return nil
	})
	if err != nil {
		return err
	}

	if ext.ApplicationConfig.Mode == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	_ = log.WithTracer(startCtx, PackageName, "setup router", func(ctx context.Context) error {
		r.Use(gin.Recovery())
		r.Use(otelgin.Middleware(global.ServiceName))
		r.Use(api.Secure())
		api.InitRouter(r, labAPI)
		return nil
	})

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", ext.ApplicationConfig.Host, ext.ApplicationConfig.Port),
		Handler: r,
	}

	log.SafeGo(func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Logger().Fatal("listen: ", err)
		}
	}, log.WithName("http server"), log.PanicToExit())
	log.Logger().Infof("listening on %s", srv.Addr)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt)
	<-quit
	log.Logger().Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Logger().Error("Server Shutdown:", err)
	}
	if scheduler != nil {
		scheduler.Stop()
	}
	log.Logger().Println("Server exiting")
	return nil
}

// reportSources answers report lookups from the Redis cache first, then the history collection.
func reportSources(ctx context.Context, client *mongo.Client) ([]api.ReportSource, error) {
	sources := make([]api.ReportSource, 0, 2)
	redisClient, err := setup.Redis(ctx)
	if err != nil {
		return nil, err
	}
	if redisClient != nil {
		sources = append(sources, &service.RedisReporter{Client: redisClient})
	}
	history := service.NewMongoHistoryReporter(client.Database(setup.DefaultDatabase()), ext.ExtConfig.Reports.History)
	return append(sources, history), nil
}
