package api

import (
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"

	"nosql-labs/common/log"
)

// Secure sets the usual security headers and stops the chain when secure rejects the request.
func Secure() gin.HandlerFunc {
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	})
	return func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			log.Logger().WithContext(c.Request.Context()).Warn(err.Error())
			c.Abort()
			return
		}
		if status := c.Writer.Status(); status > 300 && status < 399 {
			c.Abort()
		}
	}
}
