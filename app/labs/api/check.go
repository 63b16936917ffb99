package api

import (
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-admin-team/go-admin-core/sdk/pkg/response"
	"github.com/pkg/errors"

	"nosql-labs/app/labs/model"
	"nosql-labs/app/labs/service"
	"nosql-labs/common/log"
)

func init() {
	routers = append(routers, checkRouter())
}

func checkRouter() Router {
	return func(g *gin.RouterGroup, api *LabAPI) {
		g.POST("/api/v1/checks/run", api.RunChecks())
	}
}

type RunChecksReq struct {
	// Path of the check file, relative to the data root.
	Path     string `json:"path" binding:"required"`
	Database string `json:"database"`
}

type RunChecksResp struct {
	Passed  bool                `json:"passed"`
	Results []model.CheckResult `json:"results"`
}

func (api *LabAPI) RunChecks() GinHandler {
	return func(c *gin.Context) {
		var req RunChecksReq
		if err := c.ShouldBindJSON(&req); err != nil {
			log.Logger().WithContext(c.Request.Context()).Error(err.Error())
			response.Error(c, 400, err, "")
			return
		}
		clean := filepath.Clean(req.Path)
		if filepath.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, ".."+string(filepath.Separator)) {
			response.Error(c, 400, errors.Errorf("path %s is outside the data root", req.Path), "")
			return
		}
		file, err := model.LoadChecks(filepath.Join(api.DataRoot, clean))
		if err != nil {
			response.Error(c, 400, err, "")
			return
		}
		database := req.Database
		if database == "" {
			database = file.Database
		}
		results, err := service.RunChecks(c.Request.Context(), api.LabService.Database(database), file.Checks)
		if err != nil && errors.Cause(err) != service.ErrChecksFailed {
			response.Error(c, 500, err, "")
			return
		}
		response.OK(c, RunChecksResp{Passed: err == nil, Results: results}, "")
	}
}
