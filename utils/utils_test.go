package utils

import (
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sessionIDPattern = regexp.MustCompile(`^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$`)

func TestSessionIDShape(t *testing.T) {
	g := NewSessionIDGenerator(42)
	seen := make(map[string]bool)
	for i := 0; i < 5000; i++ {
		id := g.Next()
		require.Len(t, id, 36)
		require.Regexp(t, sessionIDPattern, id)
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Regexp(t, sessionIDPattern, GenerateSessionID())
}

func TestSessionIDDeterministicForSeed(t *testing.T) {
	a, b := NewSessionIDGenerator(7), NewSessionIDGenerator(7)
	for i := 0; i < 10; i++ {
		assert.Equal(t, a.Next(), b.Next())
	}
}

func TestSessionIDConcurrent(t *testing.T) {
	g := NewSessionIDGenerator(1)
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		ids = make(map[string]struct{})
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := g.Next()
				mu.Lock()
				ids[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, ids, 1600)
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 3, "hel"},
		{"héllo wörld", 7, "héllo w"},
		{"abc", 0, ""},
		{"", 5, ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Truncate(tt.in, tt.n), tt.in)
	}
}

func TestDefaultIfEmpty(t *testing.T) {
	assert.Equal(t, "unknown", DefaultIfEmpty("", "unknown"))
	assert.Equal(t, "unknown", DefaultIfEmpty("  ", "unknown"))
	assert.Equal(t, "Chrome", DefaultIfEmpty("Chrome", "unknown"))
}

func TestIsValidInterval(t *testing.T) {
	assert.True(t, IsValidInterval("Day"))
	assert.False(t, IsValidInterval("day"))
	assert.False(t, IsValidInterval("Fortnight"))
}
