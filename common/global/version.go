package global

// Version is stamped at build time with -ldflags "-X nosql-labs/common/global.Version=..."
var Version = "0.4.0"

const (
	// ServiceName is used for tracing and as the default metrics namespace.
	ServiceName = "labctl"
)
