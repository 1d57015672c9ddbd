package utils

import (
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionIDGenerator produces UUID v4 shaped session identifiers
// (8-4-4-4-12 hex, version nibble 4, variant nibble in 8..b).
// The source is math/rand: ids are correlation tokens, not secrets.
type SessionIDGenerator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

func NewSessionIDGenerator(seed int64) *SessionIDGenerator {
	return &SessionIDGenerator{rnd: rand.New(rand.NewSource(seed))}
}

// Next returns a fresh identifier. It is safe for concurrent use.
func (g *SessionIDGenerator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	id, err := uuid.NewRandomFromReader(g.rnd)
	if err != nil {
		// math/rand never fails a read; fall back to the package source anyway.
		return uuid.NewString()
	}
	return id.String()
}

var defaultGenerator = NewSessionIDGenerator(time.Now().UnixNano())

// GenerateSessionID returns an identifier from the process-wide generator.
func GenerateSessionID() string {
	return defaultGenerator.Next()
}
