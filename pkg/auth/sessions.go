package auth

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// Sessions maps bearer tokens to identities. Tokens are opaque and
// gateway-issued; losing the process logs everyone out, which is acceptable
// for this deployment shape.
type Sessions struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	entries map[string]sessionEntry
}

type sessionEntry struct {
	identity  Identity
	expiresAt time.Time
}

// NewSessions creates an empty registry with the given token lifetime.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]sessionEntry),
	}
}

// Issue stores the identity and returns a fresh bearer token.
func (s *Sessions) Issue(id Identity) string {
	token := "fvs_" + randHex(24)
	s.mu.Lock()
	s.entries[token] = sessionEntry{identity: id, expiresAt: s.now().Add(s.ttl)}
	s.mu.Unlock()
	return token
}

// Lookup resolves a token. Expired tokens are removed on access.
func (s *Sessions) Lookup(token string) (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[token]
	if !ok {
		return Identity{}, false
	}
	if s.now().After(entry.expiresAt) {
		delete(s.entries, token)
		return Identity{}, false
	}
	return entry.identity, true
}

// Revoke invalidates a token, for logout.
func (s *Sessions) Revoke(token string) {
	s.mu.Lock()
	delete(s.entries, token)
	s.mu.Unlock()
}

func randHex(nbytes int) string {
	b := make([]byte, nbytes)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand is documented never to fail; a token must not be
		// minted from anything weaker.
		panic("auth: crypto/rand unavailable: " + err.Error())
	}
	return hex.EncodeToString(b)
}
