package storage

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	logx "afkmon/pkg/logx"
)

// fileStore appends JSON Lines.
//
// Files:
//   - <prefix>.sessions.jsonl   (one line per finished session)
//   - <prefix>.deliveries.jsonl (one line per remote send)
type fileStore struct {
	log logx.Logger

	mu sync.Mutex

	sessionsPath string
	sessions     *os.File
	deliveries   *os.File
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	path := strings.TrimSpace(cfg.Path)
	if path == "" {
		return nil, errors.New("storage.path is required for file driver")
	}

	dir := filepath.Dir(path)
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	prefix := filepath.Join(dir, base)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	sessionsPath := prefix + ".sessions.jsonl"
	sf, err := os.OpenFile(sessionsPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, err
	}
	df, err := os.OpenFile(prefix+".deliveries.jsonl", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		_ = sf.Close()
		return nil, err
	}
	return &fileStore{log: log, sessionsPath: sessionsPath, sessions: sf, deliveries: df}, nil
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var errs []error
	if s.sessions != nil {
		errs = append(errs, s.sessions.Close())
		s.sessions = nil
	}
	if s.deliveries != nil {
		errs = append(errs, s.deliveries.Close())
		s.deliveries = nil
	}
	return errors.Join(errs...)
}

func (s *fileStore) RecordSession(ctx context.Context, r SessionRecord) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions == nil {
		return errors.New("sessions file closed")
	}
	return json.NewEncoder(s.sessions).Encode(r)
}

func (s *fileStore) AppendDelivery(ctx context.Context, d Delivery) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deliveries == nil {
		return errors.New("deliveries file closed")
	}
	return json.NewEncoder(s.deliveries).Encode(d)
}

func (s *fileStore) Sessions(ctx context.Context, limit int) ([]SessionRecord, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	f, err := os.Open(s.sessionsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []SessionRecord
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var r SessionRecord
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			s.log.Debug("skipping bad session line", logx.Err(err))
			continue
		}
		out = append(out, r)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].End.After(out[j].End) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
