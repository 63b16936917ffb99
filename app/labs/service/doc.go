// Package service runs query books, checks, dataset tooling and reporting against MongoDB.
package service

import (
	"runtime"

	"github.com/sirupsen/logrus"

	"nosql-labs/common/log"
)

// PackageName is the name of this package
var PackageName = func() string {
	pc, _, _, _ := runtime.Caller(0)
	f := runtime.FuncForPC(pc)
	name := f.Name()
	var dot int
	for i := len(name) - 1; i >= 0; i-- {
		if c := name[i]; c == '/' {
			break
		} else if c == '.' {
			dot = i
		}
	}
	return name[:dot]
}()

func Logger() *logrus.Entry {
	return log.Module("labs")
}
