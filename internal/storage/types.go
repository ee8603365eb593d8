package storage

import (
	"context"
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config configures storage.
//
// If Driver is empty it defaults to "memory".
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
	Namespace   string        // e.g. "calendar", "weather"
}

// backend is the raw field store each driver implements.
type backend interface {
	all(ctx context.Context) (map[string]map[string]string, error)
	get(ctx context.Context, id string) (map[string]string, bool, error)
	set(ctx context.Context, id, field, value string) error
	close() error
}

// fieldRecord is one journaled write.
type fieldRecord struct {
	Tenant string `json:"tenant"`
	Field  string `json:"field"`
	Value  string `json:"value"`
	At     int64  `json:"at"` // unix milli
}
