package log

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/opentelemetry-go-extra/otellogrus"
	"github.com/uptrace/uptrace-go/uptrace"
)

const (
	LevelEnv  = "LOG_LEVEL"
	FormatEnv = "LOG_FORMAT"
)

var (
	defaultLoggerOnce sync.Once
	defaultLogger     *logrus.Logger
)

// NewLogger builds a logger writing JSON to stderr. Stdout is reserved for query output.
func NewLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	if strings.EqualFold(os.Getenv(FormatEnv), "text") {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetReportCaller(true)
	}
	if lvl := os.Getenv(LevelEnv); lvl != "" {
		level, err := logrus.ParseLevel(lvl)
		if err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "logrus parse level %q: %s\n", lvl, err.Error())
		} else {
			logger.SetLevel(level)
		}
	}
	return logger
}

func Logger() *logrus.Logger {
	defaultLoggerOnce.Do(func() {
		defaultLogger = NewLogger()
		if UptraceOk() {
			defaultLogger.AddHook(otellogrus.NewHook(otellogrus.WithLevels(
				logrus.PanicLevel,
				logrus.FatalLevel,
				logrus.ErrorLevel,
				logrus.WarnLevel,
				logrus.InfoLevel,
				logrus.DebugLevel,
			)))
			logrus.RegisterExitHandler(func() {
				Shutdown()
			})
		}
	})
	return defaultLogger
}

// Module returns an entry tagged with the service and module it came from.
func Module(name string) *logrus.Entry {
	return Logger().WithFields(logrus.Fields{
		"service": serviceName(),
		"module":  name,
	})
}

// Shutdown flushes pending spans. Safe to call when tracing is off.
func Shutdown() {
	if !UptraceOk() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()
	if err := uptrace.Shutdown(ctx); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "shutdown uptrace: %s\n", err.Error())
	}
}
