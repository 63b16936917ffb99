package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/go-admin-team/go-admin-core/sdk/pkg/response"
	"github.com/pkg/errors"

	"nosql-labs/app/labs/service"
	"nosql-labs/common/log"
)

func init() {
	routers = append(routers, reportRouter())
}

func reportRouter() Router {
	return func(g *gin.RouterGroup, api *LabAPI) {
		g.GET("/api/v1/reports/:name", api.LatestReport())
	}
}

func (api *LabAPI) LatestReport() GinHandler {
	return func(c *gin.Context) {
		name := c.Param("name")
		for _, source := range api.Reports {
			content, err := source.LatestReport(c.Request.Context(), name)
			if err == service.ErrNoDoc {
				continue
			}
			if err != nil {
				log.Logger().WithContext(c.Request.Context()).Error(err.Error())
				response.Error(c, 500, err, "")
				return
			}
			response.OK(c, json.RawMessage(content), "")
			return
		}
		response.Error(c, 404, errors.Wrapf(service.ErrNoDoc, "report of %s", name), "")
	}
}
