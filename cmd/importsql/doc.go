// Package importsql implements labctl import-sql.
package importsql

import (
	"context"
	"runtime"

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

// startingCtx opens the command's root span. Call it after the config is loaded.
func startingCtx() context.Context {
	return log.NewSpanContext(context.Background(), PackageName, "starting")
}
