package usecase

import (
	"sync"
	"time"

	"github.com/rocketscienceinc/connectfour-backend/internal/apperror"
	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
)

// Room binds one game to its competitors and spectators.
// Fields below mu are guarded by it; every mutation of a room runs under mu.
type Room struct {
	ID       string
	JoinKey  string
	WatchKey string

	mu           sync.Mutex
	game         *entity.Game
	players      map[entity.ConnID]entity.PlayerInfo
	spectators   map[entity.ConnID]struct{}
	creator      entity.ConnID
	gameOver     bool
	result       *entity.PlayerInfo
	rematchVotes map[entity.ConnID]struct{}
	emptySince   time.Time
	closed       bool
}

func newRoom(id, joinKey, watchKey string, now time.Time) *Room {
	return &Room{
		ID:           id,
		JoinKey:      joinKey,
		WatchKey:     watchKey,
		game:         entity.NewGame(),
		players:      make(map[entity.ConnID]entity.PlayerInfo, 2),
		spectators:   make(map[entity.ConnID]struct{}),
		rematchVotes: make(map[entity.ConnID]struct{}, 2),
		emptySince:   now,
	}
}

func (that *Room) PlayerCount() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.players)
}

func (that *Room) SpectatorCount() int {
	that.mu.Lock()
	defer that.mu.Unlock()

	return len(that.spectators)
}

// Moves returns a copy of the move log.
func (that *Room) Moves() []entity.Move {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.game.MovesCopy()
}

func (that *Room) GameOver() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.gameOver
}

// idleSince reports when the last connection detached, or false while anyone is attached.
func (that *Room) idleSince() (time.Time, bool) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if len(that.players) > 0 || len(that.spectators) > 0 {
		return time.Time{}, false
	}

	return that.emptySince, true
}

func (that *Room) close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.closed = true
}

// The methods below expect mu to be held.

func (that *Room) addPlayer(id entity.ConnID, name string, creator bool) (entity.PlayerInfo, error) {
	if that.closed {
		return entity.PlayerInfo{}, apperror.ErrUnknownToken
	}

	role := entity.PlayerSecond
	if creator {
		role = entity.PlayerFirst
	}

	if that.roleTaken(role) {
		return entity.PlayerInfo{}, apperror.ErrRoomFull
	}

	if name == "" {
		name = entity.DefaultName(role)
	}

	info := entity.PlayerInfo{Role: role, Name: name}
	that.players[id] = info

	if creator {
		that.creator = id
	}

	return info, nil
}

func (that *Room) addSpectator(id entity.ConnID) error {
	if that.closed {
		return apperror.ErrUnknownToken
	}

	that.spectators[id] = struct{}{}

	return nil
}

// remove detaches a connection and reports whether it created the room.
func (that *Room) remove(id entity.ConnID, now time.Time) bool {
	delete(that.players, id)
	delete(that.spectators, id)
	delete(that.rematchVotes, id)

	if len(that.players) == 0 && len(that.spectators) == 0 {
		that.emptySince = now
	}

	return id != "" && id == that.creator
}

// roleTaken reports whether a bound competitor holds role. Joiners only ever get the second
// seat, so the creator's seat stays empty once the creator leaves.
func (that *Room) roleTaken(role string) bool {
	for _, info := range that.players {
		if info.Role == role {
			return true
		}
	}

	return false
}

// members is a snapshot of every attached connection, competitors first.
func (that *Room) members() []entity.ConnID {
	ids := make([]entity.ConnID, 0, len(that.players)+len(that.spectators))
	for id := range that.players {
		ids = append(ids, id)
	}
	for id := range that.spectators {
		ids = append(ids, id)
	}

	return ids
}

func (that *Room) allPlayersVoted() bool {
	if len(that.players) < 2 {
		return false
	}

	for id := range that.players {
		if _, ok := that.rematchVotes[id]; !ok {
			return false
		}
	}

	return true
}

func (that *Room) reset() {
	that.game = entity.NewGame()
	that.gameOver = false
	that.result = nil
	that.rematchVotes = make(map[entity.ConnID]struct{}, 2)
}
