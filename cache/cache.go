// Package cache keeps recently computed responses for a short time.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// Params are the request values that identify a result. They are serialized
// with sorted keys, so two maps with the same content always agree.
type Params map[string]interface{}

// Cache maps an operation and its params to a previously computed value.
type Cache interface {
	Get(op string, params Params) (interface{}, bool)
	Put(op string, params Params, value interface{})
}

// Key is the fingerprint of op and params.
func Key(op string, params Params) string {
	// encoding/json writes map keys in sorted order at every level
	canon, err := json.Marshal(params)
	if err != nil {
		canon = []byte(fmt.Sprintf("%v", params))
	}
	h := sha256.New()
	h.Write([]byte(op))
	h.Write([]byte{0})
	h.Write(canon)
	return hex.EncodeToString(h.Sum(nil))
}

type entry struct {
	createdAt time.Time
	value     interface{}
}

// Memory is an in-process Cache. Entries older than the TTL read as misses
// but stay in the map; nothing is evicted in the background.
type Memory struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory creates a Memory cache with the given time-to-live.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (m *Memory) Get(op string, params Params) (interface{}, bool) {
	key := Key(op, params)
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok || m.expired(e) {
		return nil, false
	}
	return e.value, true
}

func (m *Memory) Put(op string, params Params, value interface{}) {
	key := Key(op, params)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = entry{createdAt: m.now(), value: value}
}

// Len counts stored entries, stale ones included.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func (m *Memory) expired(e entry) bool {
	return m.now().Sub(e.createdAt) >= m.ttl
}
