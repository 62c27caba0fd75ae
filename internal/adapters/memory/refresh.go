package memory

import (
	"context"
	"crypto/subtle"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RefreshTokenStore keeps the single currently-valid refresh token hash per
// principal. Swap is a compare-and-replace under the mutex, so a rotated
// token can only be exchanged once even under concurrent rotation attempts.
type RefreshTokenStore struct {
	mu     sync.Mutex
	tokens map[uuid.UUID]refreshEntry
}

type refreshEntry struct {
	hash      string
	expiresAt time.Time
}

func NewRefreshTokenStore() *RefreshTokenStore {
	return &RefreshTokenStore{tokens: make(map[uuid.UUID]refreshEntry)}
}

func (s *RefreshTokenStore) Replace(_ context.Context, principalID uuid.UUID, tokenHash string, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[principalID] = refreshEntry{hash: tokenHash, expiresAt: expiresAt}
	return nil
}

func (s *RefreshTokenStore) Swap(_ context.Context, principalID uuid.UUID, currentHash, nextHash string, expiresAt time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tokens[principalID]
	if !ok || entry.expiresAt.Before(time.Now().UTC()) {
		return false, nil
	}
	if subtle.ConstantTimeCompare([]byte(entry.hash), []byte(currentHash)) != 1 {
		return false, nil
	}

	s.tokens[principalID] = refreshEntry{hash: nextHash, expiresAt: expiresAt}
	return true, nil
}

func (s *RefreshTokenStore) Revoke(_ context.Context, principalID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, principalID)
	return nil
}
