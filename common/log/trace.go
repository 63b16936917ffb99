package log

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/uptrace/uptrace-go/uptrace"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"nosql-labs/common/global"
)

const (
	UptraceDsnEnv  = "UPTRACE_DSN"
	ServiceNameEnv = "SERVICE_NAME"
	ServiceEnvEnv  = "SERVICE_ENV"
)

var (
	uptraceOnce sync.Once
	uptraceOk   bool
)

func serviceName() string {
	if name, _ := os.LookupEnv(ServiceNameEnv); name != "" {
		return name
	}
	return global.ServiceName
}

// UptraceOk configures OpenTelemetry the first time it is called and reports whether
// tracing is enabled. Tracing is on only when UPTRACE_DSN is set.
func UptraceOk() bool {
	uptraceOnce.Do(func() {
		dsn, exists := os.LookupEnv(UptraceDsnEnv)
		if !exists || dsn == "" {
			return
		}
		uptraceOk = true
		opts := []uptrace.Option{
			uptrace.WithDSN(dsn),
			uptrace.WithServiceName(serviceName()),
			uptrace.WithServiceVersion(global.Version),
		}
		if env, _ := os.LookupEnv(ServiceEnvEnv); env != "" {
			opts = append(opts, uptrace.WithDeploymentEnvironment(env))
		}
		uptrace.ConfigureOpentelemetry(opts...)
	})
	return uptraceOk
}

// WithTracer runs f inside a span named spanName. Panics are recorded on the span
// before being re-raised.
func WithTracer(ctx context.Context, moduleName, spanName string, f func(ctx context.Context) error) error {
	if !UptraceOk() {
		return f(ctx)
	}
	ctx, span := otel.Tracer(moduleName).Start(ctx, spanName)
	defer func() {
		if err := recover(); err != nil {
			stackTrace := make([]byte, 10240)
			n := runtime.Stack(stackTrace, false)
			span.SetAttributes(Key("exception.stacktrace").String(string(stackTrace[:n])))
			msg := fmt.Errorf("panic: %v", err)
			span.RecordError(msg)
			span.SetStatus(codes.Error, msg.Error())
			span.End()
			panic(err)
		}
		span.End()
	}()
	err := f(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func NewSpanContext(ctx context.Context, moduleName, spanName string) context.Context {
	if !UptraceOk() {
		return ctx
	}
	ctx, span := otel.Tracer(moduleName).Start(ctx, spanName)
	span.End()
	return ctx
}

type Key = attribute.Key

func LogAttr(ctx context.Context, attrs ...attribute.KeyValue) {
	span := trace.SpanFromContext(ctx)
	if span.IsRecording() {
		span.SetAttributes(attrs...)
	}
}
