package fakesessionrepo

import (
	"sync"

	"github.com/nivexa/go-console-client/session"
)

var _ session.Repo = (*FakeSessionRepo)(nil)

// FakeSessionRepo is a thread-safe in-memory session backend for tests.
// FailWith, when set, makes every operation return that error, which is how
// tests exercise the fallible-storage paths.
type FakeSessionRepo struct {
	values   map[string]string
	lock     sync.RWMutex
	FailWith error
}

func NewFakeSessionRepo() *FakeSessionRepo {
	return &FakeSessionRepo{
		values: make(map[string]string),
	}
}

func (sr *FakeSessionRepo) Get(key string) (string, bool, error) {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	if sr.FailWith != nil {
		return "", false, sr.FailWith
	}
	value, ok := sr.values[key]
	return value, ok, nil
}

func (sr *FakeSessionRepo) SetAll(values map[string]string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	if sr.FailWith != nil {
		return sr.FailWith
	}
	for key, value := range values {
		sr.values[key] = value
	}
	return nil
}

func (sr *FakeSessionRepo) Delete(keys ...string) error {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	if sr.FailWith != nil {
		return sr.FailWith
	}
	for _, key := range keys {
		delete(sr.values, key)
	}
	return nil
}

// Snapshot returns a copy of the stored values for assertions.
func (sr *FakeSessionRepo) Snapshot() map[string]string {
	sr.lock.RLock()
	defer sr.lock.RUnlock()
	snapshot := make(map[string]string, len(sr.values))
	for key, value := range sr.values {
		snapshot[key] = value
	}
	return snapshot
}
