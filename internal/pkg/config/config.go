// Package config reads the service configuration. Keys are dotted paths into
// config/config.yaml, e.g. "modules.notification.worker.lock_seconds".
package config

import (
	"io"
	"time"
)

// Config returns zero values for missing or unparsable keys; callers apply
// their own defaults.
type Config interface {
	io.Closer

	GetString(key string) string
	GetBool(key string) bool
	GetInt(key string) int
	GetInt32(key string) int32
	GetInt64(key string) int64
	GetUint16(key string) uint16
	GetFloat64(key string) float64

	// GetSecond reads an integer number of seconds.
	GetSecond(key string) time.Duration

	// GetArray splits a comma separated value, trimming blanks and dropping
	// empty elements.
	GetArray(key string) []string

	// GetBinary decodes a base64 value, nil when it is not valid base64.
	GetBinary(key string) []byte
}
