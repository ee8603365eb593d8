package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	logx "almanac/pkg/logx"
)

const compactEvery = 1000

// fileStore is a dependency-free persistence backend.
//
// Files (per namespace):
//   - <prefix>.<ns>.snapshot.json (tenant -> field -> value)
//   - <prefix>.<ns>.journal.jsonl (append-only field writes)
//
// The journal is replayed over the snapshot on open and periodically
// compacted into it.
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	snapshotPath string
	journal      *os.File
	data         map[string]map[string]string

	writes int
}

func openFile(cfg Config, log logx.Logger) (backend, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base+"."+cfg.Namespace)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	snapPath := prefix + ".snapshot.json"
	journalPath := prefix + ".journal.jsonl"

	data := map[string]map[string]string{}
	if err := loadSnapshot(snapPath, data); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	skipped, err := replayJournal(journalPath, data)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	if skipped > 0 {
		// A torn last line after a crash is expected; anything else is worth seeing.
		log.Warn("journal records skipped", logx.Int("count", skipped), logx.String("path", journalPath))
	}

	jf, err := os.OpenFile(journalPath, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}

	return &fileStore{
		log:          log,
		snapshotPath: snapPath,
		journal:      jf,
		data:         data,
	}, nil
}

func (s *fileStore) all(ctx context.Context) (map[string]map[string]string, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil, ErrClosed
	}
	return cloneAll(s.data), nil
}

func (s *fileStore) get(ctx context.Context, id string) (map[string]string, bool, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil, false, ErrClosed
	}
	f, ok := s.data[id]
	if !ok {
		return nil, false, nil
	}
	return cloneFields(f), true, nil
}

func (s *fileStore) set(ctx context.Context, id, field, value string) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return ErrClosed
	}

	// Journal first: a write that is not durable must not become visible.
	rec := fieldRecord{Tenant: id, Field: field, Value: value, At: time.Now().UnixMilli()}
	if err := json.NewEncoder(s.journal).Encode(rec); err != nil {
		return err
	}
	applyField(s.data, id, field, value)

	s.writes++
	if s.writes%compactEvery == 0 {
		if err := s.compactLocked(); err != nil {
			s.log.Debug("journal compact failed", logx.Err(err))
		}
	}
	return nil
}

func (s *fileStore) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.journal == nil {
		return nil
	}
	cerr := s.compactLocked()
	err := s.journal.Close()
	s.journal = nil
	if cerr != nil {
		return cerr
	}
	return err
}

func (s *fileStore) compactLocked() error {
	tmp := s.snapshotPath + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if err := json.NewEncoder(f).Encode(s.data); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp, s.snapshotPath); err != nil {
		return err
	}
	if err := s.journal.Truncate(0); err != nil {
		return err
	}
	_, err = s.journal.Seek(0, io.SeekEnd)
	return err
}

func loadSnapshot(path string, out map[string]map[string]string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	var m map[string]map[string]string
	if err := json.NewDecoder(f).Decode(&m); err != nil {
		return err
	}
	for id, fields := range m {
		for k, v := range fields {
			applyField(out, id, k, v)
		}
	}
	return nil
}

func replayJournal(path string, out map[string]map[string]string) (skipped int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r fieldRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil || r.Tenant == "" || r.Field == "" {
			skipped++
			continue
		}
		applyField(out, r.Tenant, r.Field, r.Value)
	}
	return skipped, sc.Err()
}
