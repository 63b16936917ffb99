package api

import (
	"io"

	"github.com/gin-gonic/gin"
	"github.com/go-admin-team/go-admin-core/sdk/pkg/response"
	"github.com/pkg/errors"

	"nosql-labs/app/labs/model"
	"nosql-labs/app/labs/service"
	"nosql-labs/common/log"
)

func init() {
	routers = append(routers, bookRouter())
}

func bookRouter() Router {
	return func(g *gin.RouterGroup, api *LabAPI) {
		g.GET("/api/v1/books", api.ListBooks())
		g.GET("/api/v1/books/:name", api.GetBook())
		g.POST("/api/v1/books/:name/run", api.RunBook())
	}
}

type BookItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Database    string   `json:"database,omitempty"`
	Queries     []string `json:"queries"`
}

func (api *LabAPI) ListBooks() GinHandler {
	return func(c *gin.Context) {
		books, err := api.Books.List()
		if err != nil {
			log.Logger().WithContext(c.Request.Context()).Error(err.Error())
			response.Error(c, 500, err, "")
			return
		}
		items := make([]BookItem, 0, len(books))
		for _, b := range books {
			item := BookItem{Name: b.Name, Description: b.Description, Database: b.Database, Queries: []string{}}
			for _, q := range b.Queries {
				item.Queries = append(item.Queries, q.Name)
			}
			items = append(items, item)
		}
		response.OK(c, items, "")
	}
}

func (api *LabAPI) GetBook() GinHandler {
	return func(c *gin.Context) {
		book, ok := api.book(c)
		if !ok {
			return
		}
		response.OK(c, book, "")
	}
}

// RunBook runs a book synchronously and answers with its report. Failed queries are
// part of the report, not an error of the request.
func (api *LabAPI) RunBook() GinHandler {
	return func(c *gin.Context) {
		var req service.RunOptions
		if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
			log.Logger().WithContext(c.Request.Context()).Error(err.Error())
			response.Error(c, 400, err, "")
			return
		}
		book, ok := api.book(c)
		if !ok {
			return
		}
		report, err := api.LabService.RunBook(c.Request.Context(), book, req)
		if report == nil {
			response.Error(c, 400, err, "")
			return
		}
		response.OK(c, report, "")
	}
}

func (api *LabAPI) book(c *gin.Context) (*model.QueryBook, bool) {
	name := c.Param("name")
	book, err := api.Books.Get(name)
	if err != nil {
		if errors.Cause(err) == model.ErrBookNotFound {
			response.Error(c, 404, err, "")
			return nil, false
		}
		log.Logger().WithContext(c.Request.Context()).Error(err.Error())
		response.Error(c, 500, err, "")
		return nil, false
	}
	return book, true
}
