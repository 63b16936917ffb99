package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-admin-team/go-admin-core/sdk/pkg/response"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"nosql-labs/common/global"
	"nosql-labs/common/log"
)

func init() {
	routers = append(routers, healthRouter())
}

func healthRouter() Router {
	return func(g *gin.RouterGroup, api *LabAPI) {
		g.GET("/healthz", api.Health())
		g.GET("/metrics", gin.WrapH(promhttp.Handler()))
		g.GET("/api/v1/version", GetVersion)
	}
}

type HealthResp struct {
	Status string `json:"status"`
}

// Health pings the primary.
func (api *LabAPI) Health() GinHandler {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := api.LabService.MongodbClient.Ping(ctx, readpref.Primary()); err != nil {
			log.Logger().WithContext(ctx).Error(err.Error())
			response.Error(c, 503, err, "mongodb unreachable")
			return
		}
		response.OK(c, HealthResp{Status: "ok"}, "")
	}
}

type GetVersionResp struct {
	Version string `json:"version"`
}

func GetVersion(c *gin.Context) {
	response.OK(c, GetVersionResp{Version: global.Version}, "")
}
