package api

import (
	"context"

	"github.com/gin-gonic/gin"

	"nosql-labs/app/labs/service"
)

type (
	GinHandler = func(c *gin.Context)
	Router     = func(g *gin.RouterGroup, api *LabAPI)
)

// ReportSource yields the latest report JSON of a book, or service.ErrNoDoc.
type ReportSource interface {
	LatestReport(ctx context.Context, book string) ([]byte, error)
}

type LabAPI struct {
	LabService *service.LabService
	Books      *service.BookStore
	// Reports are asked in order; the first one holding a report answers.
	Reports  []ReportSource
	DataRoot string
}

func NewLabAPI(svc *service.LabService, books *service.BookStore, dataRoot string, reports ...ReportSource) *LabAPI {
	return &LabAPI{
		LabService: svc,
		Books:      books,
		Reports:    reports,
		DataRoot:   dataRoot,
	}
}

var routers = make([]Router, 0)

func InitRouter(r *gin.Engine, api *LabAPI) {
	g := r.Group("")
	for _, f := range routers {
		f(g, api)
	}
}
