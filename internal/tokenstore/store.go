// Package tokenstore keeps ephemeral online claim tokens in memory.
package tokenstore

import (
	"sync"
	"time"

	"github.com/eventpass/eventpass-api/internal/domain"
)

// Memory is a mutex guarded map. Every check-and-mutate sequence happens
// under the lock so a token is handed out by Take at most once.
type Memory struct {
	mu     sync.Mutex
	tokens map[string]domain.EphemeralToken
}

func NewMemory() *Memory {
	return &Memory{
		tokens: make(map[string]domain.EphemeralToken),
	}
}

func (m *Memory) Put(t domain.EphemeralToken) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.tokens[t.Token] = t
}

// Take removes and returns the token atomically.
func (m *Memory) Take(token string) (domain.EphemeralToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tokens[token]
	if ok {
		delete(m.tokens, token)
	}
	return t, ok
}

// Restore puts a previously taken token back unless another one with the
// same id has been stored since.
func (m *Memory) Restore(t domain.EphemeralToken) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.tokens[t.Token]; exists {
		return false
	}
	m.tokens[t.Token] = t
	return true
}

// DeleteExpired drops every token expired at now and returns how many.
func (m *Memory) DeleteExpired(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for k, t := range m.tokens {
		if t.Expired(now) {
			delete(m.tokens, k)
			n++
		}
	}
	return n
}

func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.tokens)
}
