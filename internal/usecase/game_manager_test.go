package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/rocketscienceinc/connectfour-backend/internal/apperror"
	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
	"github.com/rocketscienceinc/connectfour-backend/internal/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var errGone = errors.New("connection gone")

// recordingPublisher keeps every event per connection.
type recordingPublisher struct {
	mu      sync.Mutex
	events  map[entity.ConnID][]*entity.Event
	failing map[entity.ConnID]bool
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{
		events:  make(map[entity.ConnID][]*entity.Event),
		failing: make(map[entity.ConnID]bool),
	}
}

func (that *recordingPublisher) Publish(id entity.ConnID, event *entity.Event) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.failing[id] {
		return errGone
	}

	that.events[id] = append(that.events[id], event)

	return nil
}

func (that *recordingPublisher) fail(id entity.ConnID) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.failing[id] = true
}

// take returns and forgets the events delivered to id so far.
func (that *recordingPublisher) take(id entity.ConnID) []*entity.Event {
	that.mu.Lock()
	defer that.mu.Unlock()

	events := that.events[id]
	delete(that.events, id)

	return events
}

func types(events []*entity.Event) []string {
	result := make([]string, 0, len(events))
	for _, event := range events {
		result = append(result, event.Type)
	}

	return result
}

type fixture struct {
	ctx       context.Context
	registry  *Registry
	publisher *recordingPublisher
	stats     repository.StatsRepository
	manager   *GameManager
}

func newFixture() *fixture {
	registry := NewRegistry()
	publisher := newRecordingPublisher()
	stats := repository.NewMemoryStatsRepository()

	return &fixture{
		ctx:       context.Background(),
		registry:  registry,
		publisher: publisher,
		stats:     stats,
		manager:   NewGameManager(zap.NewNop(), registry, stats, publisher, 8),
	}
}

// startGame creates a room for "alice" and joins "bob".
func (that *fixture) startGame(t *testing.T) (*Session, *Session) {
	t.Helper()

	alice, err := that.manager.Create(that.ctx, "alice", "Alice")
	require.NoError(t, err)

	bob, err := that.manager.Join(that.ctx, "bob", alice.Room.JoinKey, "Bob")
	require.NoError(t, err)

	that.publisher.take("alice")
	that.publisher.take("bob")

	return alice, bob
}

func TestGameManager_Create(t *testing.T) {
	f := newFixture()

	// When: a connection creates a room
	sess, err := f.manager.Create(f.ctx, "alice", "  Alice  ")
	require.NoError(t, err)

	// Then: it's bound as the first player and receives both tokens
	require.NotNil(t, sess.Player)
	assert.Equal(t, entity.PlayerInfo{Role: entity.PlayerFirst, Name: "Alice"}, *sess.Player)
	assert.False(t, sess.IsSpectator())
	assert.Equal(t, 1, sess.Room.PlayerCount())

	events := f.publisher.take("alice")
	require.Len(t, events, 1)
	assert.Equal(t, entity.NewInitEvent(sess.Room.JoinKey, sess.Room.WatchKey), events[0])

	// And: the room is counted
	stats, err := f.stats.Get(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.RoomsCreated)
}

func TestGameManager_CreateNames(t *testing.T) {
	f := newFixture()

	t.Run("Default name by role", func(t *testing.T) {
		sess, err := f.manager.Create(f.ctx, "c1", "   ")
		require.NoError(t, err)

		assert.Equal(t, "Player 1", sess.Player.Name)
	})

	t.Run("Long name is truncated", func(t *testing.T) {
		sess, err := f.manager.Create(f.ctx, "c2", "Bartholomew")
		require.NoError(t, err)

		assert.Equal(t, "Bartholo", sess.Player.Name)
	})
}

func TestGameManager_Join(t *testing.T) {
	t.Run("Second player receives watch token and catch-up", func(t *testing.T) {
		// Given: a room where the first player already moved once
		f := newFixture()
		alice, err := f.manager.Create(f.ctx, "alice", "Alice")
		require.NoError(t, err)
		require.NoError(t, f.manager.Play(f.ctx, alice, 3))
		f.publisher.take("alice")

		// When: a second connection joins
		bob, err := f.manager.Join(f.ctx, "bob", alice.Room.JoinKey, "Bob")
		require.NoError(t, err)

		// Then: it plays the second role
		assert.Equal(t, entity.PlayerSecond, bob.Player.Role)
		assert.Equal(t, 2, alice.Room.PlayerCount())

		// And: it gets the watch token followed by the move log
		events := f.publisher.take("bob")
		require.Equal(t, []string{entity.EventInit, entity.EventPlay}, types(events))
		assert.Empty(t, events[0].JoinKey)
		assert.Equal(t, alice.Room.WatchKey, events[0].WatchKey)
		assert.Equal(t, entity.NewPlayEvent(entity.Move{Player: entity.PlayerFirst, Column: 3, Row: 0}), events[1])
	})

	t.Run("Join token presented twice fails", func(t *testing.T) {
		f := newFixture()
		alice, _ := f.startGame(t)

		// When: a third connection presents the join token
		_, err := f.manager.Join(f.ctx, "carol", alice.Room.JoinKey, "Carol")

		// Then: it's an unknown-token class failure and the room stays at two players
		require.ErrorIs(t, err, apperror.ErrRoomFull)
		require.ErrorIs(t, err, apperror.ErrUnknownToken)
		assert.Equal(t, 2, alice.Room.PlayerCount())
		assert.Empty(t, f.publisher.take("carol"))
	})

	t.Run("Unknown token fails", func(t *testing.T) {
		f := newFixture()

		_, err := f.manager.Join(f.ctx, "bob", "missing", "Bob")

		assert.ErrorIs(t, err, apperror.ErrUnknownToken)
	})

	t.Run("Watch token is not a join token", func(t *testing.T) {
		f := newFixture()
		alice, err := f.manager.Create(f.ctx, "alice", "")
		require.NoError(t, err)

		_, err = f.manager.Join(f.ctx, "bob", alice.Room.WatchKey, "")

		assert.ErrorIs(t, err, apperror.ErrUnknownToken)
	})
}

func TestGameManager_Watch(t *testing.T) {
	// Given: a game with three moves made
	f := newFixture()
	alice, bob := f.startGame(t)
	require.NoError(t, f.manager.Play(f.ctx, alice, 0))
	require.NoError(t, f.manager.Play(f.ctx, bob, 1))
	require.NoError(t, f.manager.Play(f.ctx, alice, 0))

	// When: a spectator attaches with the watch token
	spectator, err := f.manager.Watch(f.ctx, "sam", alice.Room.WatchKey)
	require.NoError(t, err)

	// Then: it receives exactly three play messages in order
	assert.True(t, spectator.IsSpectator())
	assert.Equal(t, 1, alice.Room.SpectatorCount())

	events := f.publisher.take("sam")
	require.Equal(t, []string{entity.EventPlay, entity.EventPlay, entity.EventPlay}, types(events))
	assert.Equal(t, []int{0, 1, 0}, []int{*events[0].Column, *events[1].Column, *events[2].Column})
	assert.Equal(t, []int{0, 0, 1}, []int{*events[0].Row, *events[1].Row, *events[2].Row})

	// And: later moves arrive by broadcast only
	require.NoError(t, f.manager.Play(f.ctx, bob, 1))
	events = f.publisher.take("sam")
	require.Len(t, events, 1)
	assert.Equal(t, entity.NewPlayEvent(entity.Move{Player: entity.PlayerSecond, Column: 1, Row: 1}), events[0])

	t.Run("Unknown watch token", func(t *testing.T) {
		_, err := f.manager.Watch(f.ctx, "sam2", alice.Room.JoinKey)

		assert.ErrorIs(t, err, apperror.ErrUnknownToken)
	})
}

func TestGameManager_PlayToWin(t *testing.T) {
	// Given: a started game with a spectator
	f := newFixture()
	alice, bob := f.startGame(t)
	_, err := f.manager.Watch(f.ctx, "sam", alice.Room.WatchKey)
	require.NoError(t, err)

	// When: alice stacks column 0 while bob stacks column 1
	for i := 0; i < 3; i++ {
		require.NoError(t, f.manager.Play(f.ctx, alice, 0))
		require.NoError(t, f.manager.Play(f.ctx, bob, 1))
	}
	require.NoError(t, f.manager.Play(f.ctx, alice, 0))

	// Then: everyone sees seven plays and a win for the first player
	for _, id := range []entity.ConnID{"alice", "bob", "sam"} {
		events := f.publisher.take(id)
		require.Len(t, events, 8, "events for %s", id)

		last := events[7]
		assert.Equal(t, entity.EventWin, last.Type)
		assert.Equal(t, entity.PlayerFirst, last.Winner)
		assert.Equal(t, "Alice wins!", last.Message)

		assert.Equal(t, 3, *events[6].Row)
	}
	assert.True(t, alice.Room.GameOver())

	// And: no further move is accepted
	err = f.manager.Play(f.ctx, bob, 0)
	require.ErrorIs(t, err, apperror.ErrGameFinished)
	require.ErrorIs(t, err, apperror.ErrInvalidMove)
	assert.Empty(t, f.publisher.take("alice"))

	// And: the result is counted
	stats, err := f.stats.Get(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.FirstWins)
}

func TestGameManager_PlayRejected(t *testing.T) {
	f := newFixture()
	alice, bob := f.startGame(t)

	t.Run("Out of turn", func(t *testing.T) {
		err := f.manager.Play(f.ctx, bob, 0)

		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
		assert.Empty(t, f.publisher.take("alice"))
		assert.Empty(t, f.publisher.take("bob"))
		assert.Empty(t, alice.Room.Moves())
	})

	t.Run("Out of range", func(t *testing.T) {
		err := f.manager.Play(f.ctx, alice, entity.Columns)

		require.ErrorIs(t, err, apperror.ErrInvalidColumn)
		assert.Empty(t, alice.Room.Moves())
	})

	t.Run("Spectator cannot play", func(t *testing.T) {
		spectator, err := f.manager.Watch(f.ctx, "sam", alice.Room.WatchKey)
		require.NoError(t, err)

		err = f.manager.Play(f.ctx, spectator, 0)

		require.ErrorIs(t, err, apperror.ErrNotCompetitor)
	})
}

func TestGameManager_Draw(t *testing.T) {
	f := newFixture()
	alice, bob := f.startGame(t)

	columns := []int{
		0, 1, 0, 1, 0, 1, 1, 0, 1, 0, 1, 0,
		2, 3, 2, 3, 2, 3, 3, 2, 3, 2, 3, 2,
		4, 5, 4, 5, 4, 5, 6, 4, 6, 4, 6, 4,
		5, 6, 5, 6, 5, 6,
	}

	for i, column := range columns {
		sess := alice
		if i%2 == 1 {
			sess = bob
		}
		require.NoError(t, f.manager.Play(f.ctx, sess, column))
	}

	events := f.publisher.take("bob")
	require.Len(t, events, len(columns)+1)
	assert.Equal(t, entity.EventDraw, events[len(columns)].Type)
	assert.True(t, alice.Room.GameOver())

	stats, err := f.stats.Get(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), stats.Draws)

	t.Run("Latecomer sees the draw", func(t *testing.T) {
		_, err := f.manager.Watch(f.ctx, "sam", alice.Room.WatchKey)
		require.NoError(t, err)

		events := f.publisher.take("sam")
		require.Len(t, events, len(columns)+1)
		assert.Equal(t, entity.EventDraw, events[len(columns)].Type)
	})
}

func TestGameManager_BroadcastSurvivesFailedSend(t *testing.T) {
	// Given: a game with two spectators, one of which is gone
	f := newFixture()
	alice, _ := f.startGame(t)
	_, err := f.manager.Watch(f.ctx, "gone", alice.Room.WatchKey)
	require.NoError(t, err)
	_, err = f.manager.Watch(f.ctx, "sam", alice.Room.WatchKey)
	require.NoError(t, err)
	f.publisher.fail("gone")

	// When: a move is made
	require.NoError(t, f.manager.Play(f.ctx, alice, 2))

	// Then: everyone else still receives it
	assert.Len(t, f.publisher.take("alice"), 1)
	assert.Len(t, f.publisher.take("bob"), 1)
	assert.Len(t, f.publisher.take("sam"), 1)
}

func TestGameManager_Rematch(t *testing.T) {
	f := newFixture()
	alice, bob := f.startGame(t)

	t.Run("Vote before game over is rejected", func(t *testing.T) {
		err := f.manager.Rematch(f.ctx, alice)

		require.ErrorIs(t, err, apperror.ErrGameNotOver)
		assert.Empty(t, f.publisher.take("bob"))
	})

	for i := 0; i < 3; i++ {
		require.NoError(t, f.manager.Play(f.ctx, alice, 0))
		require.NoError(t, f.manager.Play(f.ctx, bob, 1))
	}
	require.NoError(t, f.manager.Play(f.ctx, alice, 0))
	f.publisher.take("alice")
	f.publisher.take("bob")

	t.Run("Single vote is broadcast", func(t *testing.T) {
		require.NoError(t, f.manager.Rematch(f.ctx, bob))

		events := f.publisher.take("alice")
		require.Equal(t, []string{entity.EventRematch}, types(events))
		assert.Equal(t, entity.PlayerSecond, events[0].Player)
		assert.Len(t, f.publisher.take("bob"), 1)
		assert.True(t, alice.Room.GameOver())
	})

	t.Run("Second vote resets the game", func(t *testing.T) {
		require.NoError(t, f.manager.Rematch(f.ctx, alice))

		assert.Equal(t, []string{entity.EventRematch, entity.EventReset}, types(f.publisher.take("bob")))
		assert.False(t, alice.Room.GameOver())
		assert.Empty(t, alice.Room.Moves())

		require.NoError(t, f.manager.Play(f.ctx, alice, 4))
	})

	t.Run("Spectator cannot vote", func(t *testing.T) {
		spectator, err := f.manager.Watch(f.ctx, "sam", alice.Room.WatchKey)
		require.NoError(t, err)

		assert.ErrorIs(t, f.manager.Rematch(f.ctx, spectator), apperror.ErrNotCompetitor)
	})
}

func TestGameManager_Leave(t *testing.T) {
	t.Run("Creator leaving releases the join token only", func(t *testing.T) {
		f := newFixture()
		alice, err := f.manager.Create(f.ctx, "alice", "")
		require.NoError(t, err)

		f.manager.Leave(f.ctx, alice)

		assert.Equal(t, 0, alice.Room.PlayerCount())
		_, err = f.registry.ResolveJoin(alice.Room.JoinKey)
		assert.ErrorIs(t, err, apperror.ErrUnknownToken)
		_, err = f.registry.ResolveWatch(alice.Room.WatchKey)
		assert.NoError(t, err)
	})

	t.Run("Second seat can be rebound while the creator stays", func(t *testing.T) {
		// Given: a game where bob moved once and then left
		f := newFixture()
		alice, bob := f.startGame(t)
		require.NoError(t, f.manager.Play(f.ctx, alice, 0))
		require.NoError(t, f.manager.Play(f.ctx, bob, 6))
		f.manager.Leave(f.ctx, bob)
		assert.Equal(t, 1, alice.Room.PlayerCount())

		// When: a new connection presents the join token
		carol, err := f.manager.Join(f.ctx, "carol", alice.Room.JoinKey, "Carol")
		require.NoError(t, err)

		// Then: it takes the second role and is caught up
		assert.Equal(t, entity.PlayerSecond, carol.Player.Role)
		assert.Equal(t, []string{entity.EventInit, entity.EventPlay, entity.EventPlay}, types(f.publisher.take("carol")))
		require.NoError(t, f.manager.Play(f.ctx, alice, 0))
		require.NoError(t, f.manager.Play(f.ctx, carol, 6))
	})

	t.Run("Creator seat is never handed to a joiner", func(t *testing.T) {
		// Given: the creator is detached but its join token is still registered
		f := newFixture()
		alice, bob := f.startGame(t)
		room := alice.Room

		room.mu.Lock()
		room.remove(alice.ConnID, f.registry.now())
		room.mu.Unlock()

		// When: a new connection presents the join token while bob holds the second seat
		_, err := f.manager.Join(f.ctx, "carol", room.JoinKey, "Carol")

		// Then: it's refused and the first seat stays empty
		assert.ErrorIs(t, err, apperror.ErrRoomFull)
		assert.Equal(t, 1, room.PlayerCount())

		// When: the second seat frees up too
		f.manager.Leave(f.ctx, bob)
		dave, err := f.manager.Join(f.ctx, "dave", room.JoinKey, "Dave")

		// Then: the joiner only ever gets the second role
		require.NoError(t, err)
		assert.Equal(t, entity.PlayerSecond, dave.Player.Role)
	})

	t.Run("Spectator leaving does not touch the game", func(t *testing.T) {
		f := newFixture()
		alice, _ := f.startGame(t)
		spectator, err := f.manager.Watch(f.ctx, "sam", alice.Room.WatchKey)
		require.NoError(t, err)

		f.manager.Leave(f.ctx, spectator)

		assert.Equal(t, 0, alice.Room.SpectatorCount())
		assert.Equal(t, 2, alice.Room.PlayerCount())
		_, err = f.registry.ResolveJoin(alice.Room.JoinKey)
		assert.NoError(t, err)
	})
}

func TestGameManager_ConcurrentPlays(t *testing.T) {
	// Given: a started game
	f := newFixture()
	alice, bob := f.startGame(t)

	// When: both players hammer the room at once
	var wg sync.WaitGroup
	for _, sess := range []*Session{alice, bob} {
		wg.Add(1)
		go func(sess *Session) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_ = f.manager.Play(f.ctx, sess, i%entity.Columns)
			}
		}(sess)
	}
	wg.Wait()

	// Then: the log still replays to a consistent game
	moves := alice.Room.Moves()
	_, err := entity.Replay(moves)
	require.NoError(t, err)

	// And: every accepted move reached both players in log order
	events := f.publisher.take("bob")
	plays := make([]entity.Move, 0, len(events))
	for _, event := range events {
		if event.Type == entity.EventPlay {
			plays = append(plays, entity.Move{Player: event.Player, Column: *event.Column, Row: *event.Row})
		}
	}
	assert.Equal(t, moves, plays)
}
