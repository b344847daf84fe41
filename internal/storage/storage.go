// Package storage holds the InfluxDB line writer and the Postgres alert history store.
package storage

import "errors"

// ErrNotConfigured is returned by constructors whose address is empty.
var ErrNotConfigured = errors.New("storage backend not configured")
