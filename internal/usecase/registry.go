package usecase

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rocketscienceinc/connectfour-backend/internal/apperror"
)

const tokenBytes = 16

// Registry maps join and watch tokens to rooms. The two namespaces never overlap.
// All methods are safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	joins   map[string]*Room
	watches map[string]*Room

	now func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		joins:   make(map[string]*Room),
		watches: make(map[string]*Room),
		now:     time.Now,
	}
}

// CreateRoom registers a new room under two fresh tokens.
func (that *Registry) CreateRoom() (*Room, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	joinKey, err := that.uniqueToken()
	if err != nil {
		return nil, err
	}

	that.joins[joinKey] = nil // reserve so the watch token can't collide with it

	watchKey, err := that.uniqueToken()
	if err != nil {
		delete(that.joins, joinKey)
		return nil, err
	}

	room := newRoom(uuid.NewString(), joinKey, watchKey, that.now())
	that.joins[joinKey] = room
	that.watches[watchKey] = room

	return room, nil
}

func (that *Registry) ResolveJoin(token string) (*Room, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	room, ok := that.joins[token]
	if !ok || room == nil {
		return nil, apperror.ErrUnknownToken
	}

	return room, nil
}

func (that *Registry) ResolveWatch(token string) (*Room, error) {
	that.mu.RLock()
	defer that.mu.RUnlock()

	room, ok := that.watches[token]
	if !ok {
		return nil, apperror.ErrUnknownToken
	}

	return room, nil
}

// ReleaseJoin stops honoring a join token. Unknown tokens are ignored.
func (that *Registry) ReleaseJoin(token string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	delete(that.joins, token)
}

// Sweep drops both tokens of every room nobody has been attached to for ttl and returns how many
// rooms were dropped. Swept rooms refuse late attachments.
func (that *Registry) Sweep(ttl time.Duration) int {
	that.mu.Lock()
	defer that.mu.Unlock()

	now := that.now()
	swept := 0

	for watchKey, room := range that.watches {
		since, idle := room.idleSince()
		if !idle || now.Sub(since) < ttl {
			continue
		}

		room.close()
		delete(that.watches, watchKey)
		delete(that.joins, room.JoinKey)
		swept++
	}

	return swept
}

// Len returns the number of live rooms.
func (that *Registry) Len() int {
	that.mu.RLock()
	defer that.mu.RUnlock()

	return len(that.watches)
}

// uniqueToken expects mu to be held.
func (that *Registry) uniqueToken() (string, error) {
	for {
		token, err := generateToken()
		if err != nil {
			return "", err
		}

		_, isJoin := that.joins[token]
		_, isWatch := that.watches[token]
		if !isJoin && !isWatch {
			return token, nil
		}
	}
}

// generateToken returns a random URL-safe token.
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}
