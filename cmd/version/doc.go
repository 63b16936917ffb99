// Package version implements labctl version.
package version
