package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"almanac/internal/tenant"
	logx "almanac/pkg/logx"
)

// Store adapts a raw backend to tenant.Store.
type Store struct {
	be       backend
	defaults tenant.Defaults
	log      logx.Logger
	driver   string
}

var _ tenant.Store = (*Store)(nil)

// Open initializes the configured store.
func Open(cfg Config, d tenant.Defaults, log logx.Logger) (*Store, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if log.IsZero() {
		log = logx.Nop()
	}
	ns := strings.TrimSpace(cfg.Namespace)
	if ns == "" {
		ns = "default"
	}
	cfg.Namespace = ns
	log = log.With(logx.Comp("storage"), logx.String("ns", ns))

	var (
		be  backend
		err error
	)
	switch driver {
	case "", "memory", "none":
		driver = "memory"
		be = newMemory()
	case "file":
		be, err = openFile(cfg, log)
	case "sqlite", "sqlite3":
		driver = "sqlite"
		be, err = openSQLite(cfg, log)
	default:
		return nil, errors.New("unknown storage driver: " + driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", driver, err)
	}
	log.Debug("store opened", logx.String("driver", driver), logx.String("path", cfg.Path))
	return &Store{be: be, defaults: d, log: log, driver: driver}, nil
}

// NewMemory returns an empty in-memory store.
func NewMemory(d tenant.Defaults) *Store {
	return &Store{be: newMemory(), defaults: d, log: logx.Nop(), driver: "memory"}
}

func (s *Store) Driver() string { return s.driver }

func (s *Store) GetAll(ctx context.Context) (map[string]tenant.Schedule, error) {
	raw, err := s.be.all(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]tenant.Schedule, len(raw))
	for id, fields := range raw {
		rec, err := tenant.Decode(id, fields, s.defaults)
		if err != nil {
			// One corrupt record must not hide every other tenant from the tick.
			s.log.Warn("skipping undecodable tenant record", logx.Tenant(id), logx.Err(err))
			continue
		}
		out[id] = rec
	}
	return out, nil
}

func (s *Store) Get(ctx context.Context, id string) (tenant.Schedule, bool, error) {
	fields, ok, err := s.be.get(ctx, id)
	if err != nil || !ok {
		return tenant.Schedule{}, false, err
	}
	rec, err := tenant.Decode(id, fields, s.defaults)
	if err != nil {
		return tenant.Schedule{}, false, err
	}
	return rec, true, nil
}

func (s *Store) SetField(ctx context.Context, id string, field tenant.Field, value string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("tenant id required")
	}
	if !knownField(field) {
		return fmt.Errorf("unknown tenant field %q", field)
	}
	return s.be.set(ctx, id, string(field), value)
}

func (s *Store) Close() error { return s.be.close() }

func knownField(f tenant.Field) bool {
	for _, k := range tenant.Fields {
		if k == f {
			return true
		}
	}
	return false
}
