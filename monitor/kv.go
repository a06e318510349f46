package monitor

import "sync"

// Mutual-exclusion flag names shared across browser contexts of one profile.
const (
	FlagTokenRefresh = "token-refresh-in-progress"
	FlagLogout       = "logout-in-progress"
)

// KV abstracts the browser-local storage the exclusion flags live in.
// Implementations must make SetIfAbsent atomic with respect to concurrent
// callers in the same process; cross-context the flags remain advisory.
type KV interface {
	Get(key string) (string, bool)
	SetIfAbsent(key, value string) bool
	Delete(key string)
}

// MemoryKV is an in-process [KV] for tests and non-browser embeddings.
type MemoryKV struct {
	mu sync.Mutex
	m  map[string]string
}

func NewMemoryKV() *MemoryKV {
	return &MemoryKV{m: make(map[string]string)}
}

func (s *MemoryKV) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func (s *MemoryKV) SetIfAbsent(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, held := s.m[key]; held {
		return false
	}
	s.m[key] = value
	return true
}

func (s *MemoryKV) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, key)
}

// namedMutex is the scoped acquire/release wrapper over a [KV] flag. The
// release closure must run in a deferred block so the flag cannot leak.
type namedMutex struct {
	kv   KV
	name string
}

// tryAcquire takes the flag if it is free. A losing caller receives ok=false
// and must treat the in-flight holder as authoritative.
func (m namedMutex) tryAcquire() (release func(), ok bool) {
	if !m.kv.SetIfAbsent(m.name, "1") {
		return nil, false
	}
	return func() { m.kv.Delete(m.name) }, true
}
