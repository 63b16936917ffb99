package log

import (
	"os"
	"runtime/debug"

	"github.com/sirupsen/logrus"
)

type SafeGoConfig struct {
	Name        string
	PanicToExit bool
}

type SafeGoOption func(opt *SafeGoConfig)

func PanicToExit() SafeGoOption {
	return func(opt *SafeGoConfig) {
		opt.PanicToExit = true
	}
}

func WithName(name string) SafeGoOption {
	return func(opt *SafeGoConfig) {
		opt.Name = name
	}
}

func Exit(code int) {
	Shutdown()
	os.Exit(code)
}

// SafeGo runs f on its own goroutine. A panic is logged with its stack; with
// PanicToExit the process then flushes traces and exits with status 2.
func SafeGo(f func(), opts ...SafeGoOption) {
	config := &SafeGoConfig{}
	for _, opt := range opts {
		opt(config)
	}
	go func() {
		defer func() {
			recovered := recover()
			if recovered == nil {
				return
			}
			Logger().WithFields(logrus.Fields{
				"goroutine": config.Name,
				"stack":     string(debug.Stack()),
			}).Errorf("panic: %v", recovered)
			if config.PanicToExit {
				Exit(2)
			}
		}()
		f()
	}()
}
