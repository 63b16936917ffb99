package log

import (
	"context"
	"time"
)

type noCancelCtx struct {
	context.Context
}

func (ctx *noCancelCtx) Deadline() (time.Time, bool) {
	return time.Time{}, false
}

func (ctx *noCancelCtx) Done() <-chan struct{} {
	return nil
}

func (ctx *noCancelCtx) Err() error {
	return nil
}

// WithNoCancel keeps the values (and span) of ctx but detaches it from its cancellation,
// so reports can still be delivered after an interrupted run.
func WithNoCancel(ctx context.Context) context.Context {
	return &noCancelCtx{Context: ctx}
}
