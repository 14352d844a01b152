// Package session tracks the rotating session token ("client key")
// negotiated with the device during the sync handshake.
//
// The token is an 8-character uppercase hex rendering of a 32-bit
// counter. The device expects each encrypted request to use the next
// counter value, so the token is advanced immediately before every
// outbound encryption. A successful sync replaces the token outright.
package session

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"
)

// TokenLength is the length of a session token in characters.
const TokenLength = 8

// ErrNotSynced indicates a token was requested before any successful
// sync handshake established one.
var ErrNotSynced = errors.New("session not synced")

// KeyManager holds the current session token and advances it
// deterministically. All methods are safe for concurrent use; Advance
// in particular must be atomic so two concurrent control requests can
// never derive the same token.
type KeyManager struct {
	mu     sync.Mutex
	token  string
	synced bool
	log    *zap.Logger
}

// NewKeyManager creates a key manager with no token set. Operations
// other than SetFromSync fail with ErrNotSynced until the first sync.
func NewKeyManager(log *zap.Logger) *KeyManager {
	if log == nil {
		log = zap.NewNop()
	}
	return &KeyManager{log: log}
}

// Current returns the current session token.
func (m *KeyManager) Current() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.synced {
		return "", ErrNotSynced
	}
	return m.token, nil
}

// SetFromSync replaces the current token with one received from a sync
// exchange. The token must be exactly 8 hex characters; the device
// would reject everything derived from a malformed one anyway.
func (m *KeyManager) SetFromSync(token string) error {
	if err := validateToken(token); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.log.Debug("Setting client key", zap.String("token", token))
	m.token = token
	m.synced = true
	return nil
}

// Advance increments the token counter by one (wrapping at 2^32),
// stores the result, and returns it. The returned token is the one to
// encrypt the next outbound message with.
func (m *KeyManager) Advance() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.synced {
		return "", ErrNotSynced
	}

	n, err := strconv.ParseUint(m.token, 16, 32)
	if err != nil {
		return "", fmt.Errorf("corrupt session token %q: %w", m.token, err)
	}

	next := fmt.Sprintf("%08X", uint32(n)+1)
	m.log.Debug("Advanced client key",
		zap.String("from", m.token),
		zap.String("to", next),
	)
	m.token = next
	return next, nil
}

// validateToken checks that a token is exactly TokenLength hex
// characters.
func validateToken(token string) error {
	if len(token) != TokenLength {
		return fmt.Errorf("session token must be %d characters, got %d", TokenLength, len(token))
	}
	if _, err := strconv.ParseUint(token, 16, 32); err != nil {
		return fmt.Errorf("session token %q is not valid hex: %w", token, err)
	}
	return nil
}
