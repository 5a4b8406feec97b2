// Package filerepo persists session keys in a JSON file, the durable local
// storage used when the console client runs as a single process. The file is
// shared with other keys the console caches; this repo reads the whole file
// on every access and rewrites it atomically, preserving keys it does not own.
package filerepo

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/nivexa/go-console-client/session"
	"github.com/pkg/errors"
)

var _ session.Repo = (*Repo)(nil)

// Repo is a file-backed session.Repo. Safe for concurrent use within one
// process; cross-process writers are serialized only by the atomic rename.
type Repo struct {
	path string
	lock sync.Mutex
}

// New creates a file-backed repo at path. The parent directory is created if
// missing; the file itself is created on first write.
func New(path string) (*Repo, error) {
	if path == "" {
		return nil, errors.New("[filerepo.New] path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, "[filerepo.New] mkdir")
	}
	return &Repo{path: path}, nil
}

func (r *Repo) Get(key string) (string, bool, error) {
	r.lock.Lock()
	defer r.lock.Unlock()
	values, err := r.load()
	if err != nil {
		return "", false, err
	}
	value, ok := values[key]
	return value, ok, nil
}

func (r *Repo) SetAll(values map[string]string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	stored, err := r.load()
	if err != nil {
		return err
	}
	for key, value := range values {
		stored[key] = value
	}
	return r.save(stored)
}

func (r *Repo) Delete(keys ...string) error {
	r.lock.Lock()
	defer r.lock.Unlock()
	stored, err := r.load()
	if err != nil {
		return err
	}
	for _, key := range keys {
		delete(stored, key)
	}
	return r.save(stored)
}

func (r *Repo) load() (map[string]string, error) {
	data, err := os.ReadFile(r.path)
	if os.IsNotExist(err) {
		return make(map[string]string), nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "[filerepo.load] read")
	}
	values := make(map[string]string)
	if len(data) == 0 {
		return values, nil
	}
	if err := json.Unmarshal(data, &values); err != nil {
		return nil, errors.Wrap(err, "[filerepo.load] unmarshal")
	}
	return values, nil
}

// save writes the full map to a temp file and renames it into place so a
// crash mid-write never leaves a truncated store.
func (r *Repo) save(values map[string]string) error {
	data, err := json.MarshalIndent(values, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[filerepo.save] marshal")
	}
	tmp, err := os.CreateTemp(filepath.Dir(r.path), ".session-*.tmp")
	if err != nil {
		return errors.Wrap(err, "[filerepo.save] create temp")
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.Wrap(err, "[filerepo.save] write")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "[filerepo.save] close")
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return errors.Wrap(err, "[filerepo.save] rename")
	}
	return nil
}
