package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rocketscienceinc/connectfour-backend/internal/apperror"
	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
	"go.uber.org/zap"
)

const defaultMaxNameLength = 32

type publisher interface {
	// Publish enqueues an event for a connection without blocking.
	Publish(id entity.ConnID, event *entity.Event) error
}

type statsRepo interface {
	IncrRoomsCreated(ctx context.Context) error
	RecordResult(ctx context.Context, winner string) error
}

// Session is one connection's binding to a room. Player is nil for spectators.
type Session struct {
	ConnID entity.ConnID
	Room   *Room
	Player *entity.PlayerInfo
}

func (that *Session) IsSpectator() bool {
	return that.Player == nil
}

type GameManager struct {
	logger    *zap.Logger
	registry  *Registry
	stats     statsRepo
	publisher publisher

	maxNameLength int
}

func NewGameManager(logger *zap.Logger, registry *Registry, stats statsRepo, publisher publisher, maxNameLength int) *GameManager {
	if maxNameLength <= 0 {
		maxNameLength = defaultMaxNameLength
	}

	return &GameManager{
		logger:        logger.With(zap.String("component", "game_manager")),
		registry:      registry,
		stats:         stats,
		publisher:     publisher,
		maxNameLength: maxNameLength,
	}
}

// Create opens a room and binds the connection as its first competitor.
func (that *GameManager) Create(ctx context.Context, id entity.ConnID, name string) (*Session, error) {
	room, err := that.registry.CreateRoom()
	if err != nil {
		return nil, fmt.Errorf("failed to create room: %w", err)
	}

	room.mu.Lock()
	info, err := room.addPlayer(id, that.cleanName(name), true)
	if err == nil {
		that.publish(id, entity.NewInitEvent(room.JoinKey, room.WatchKey))
	}
	room.mu.Unlock()

	if err != nil {
		return nil, fmt.Errorf("failed to bind creator: %w", err)
	}

	if err = that.stats.IncrRoomsCreated(ctx); err != nil {
		that.logger.Error("failed to count room", zap.String("room_id", room.ID), zap.Error(err))
	}

	that.logger.Info("room created", zap.String("room_id", room.ID), zap.String("conn_id", string(id)))

	return &Session{ConnID: id, Room: room, Player: &info}, nil
}

// Join binds the connection as the second competitor and replays the game so far.
func (that *GameManager) Join(_ context.Context, id entity.ConnID, token, name string) (*Session, error) {
	room, err := that.registry.ResolveJoin(token)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve join token: %w", err)
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	info, err := room.addPlayer(id, that.cleanName(name), false)
	if err != nil {
		return nil, fmt.Errorf("failed to join room: %w", err)
	}

	that.publish(id, entity.NewInitEvent("", room.WatchKey))
	that.catchUp(room, id)

	that.logger.Info("player joined",
		zap.String("room_id", room.ID),
		zap.String("conn_id", string(id)),
		zap.String("role", info.Role),
	)

	return &Session{ConnID: id, Room: room, Player: &info}, nil
}

// Watch attaches the connection as a spectator and replays the game so far.
func (that *GameManager) Watch(_ context.Context, id entity.ConnID, token string) (*Session, error) {
	room, err := that.registry.ResolveWatch(token)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve watch token: %w", err)
	}

	room.mu.Lock()
	defer room.mu.Unlock()

	if err = room.addSpectator(id); err != nil {
		return nil, fmt.Errorf("failed to watch room: %w", err)
	}

	that.catchUp(room, id)

	that.logger.Info("spectator attached", zap.String("room_id", room.ID), zap.String("conn_id", string(id)))

	return &Session{ConnID: id, Room: room}, nil
}

// Play applies a move for the session's role and fans the outcome out to the whole room.
// Rejected moves return an apperror.ErrInvalidMove and notify nobody.
func (that *GameManager) Play(ctx context.Context, sess *Session, column int) error {
	room := sess.Room

	finished, winner, err := that.play(room, sess.ConnID, column)
	if err != nil {
		return err
	}

	if finished {
		if err = that.stats.RecordResult(ctx, winner); err != nil {
			that.logger.Error("failed to record result", zap.String("room_id", room.ID), zap.Error(err))
		}

		that.logger.Info("game over", zap.String("room_id", room.ID), zap.String("winner", winner))
	}

	return nil
}

func (that *GameManager) play(room *Room, id entity.ConnID, column int) (bool, string, error) {
	room.mu.Lock()
	defer room.mu.Unlock()

	info, ok := room.players[id]
	if !ok {
		return false, "", apperror.ErrNotCompetitor
	}

	if _, err := room.game.Play(info.Role, column); err != nil {
		return false, "", fmt.Errorf("failed to play: %w", err)
	}

	moves := room.game.Moves
	that.broadcast(room, entity.NewPlayEvent(moves[len(moves)-1]))

	if !room.game.IsFinished() {
		return false, "", nil
	}

	room.gameOver = true

	if room.game.Winner == "" {
		that.broadcast(room, entity.NewDrawEvent())
		return true, "", nil
	}

	room.result = &info
	that.broadcast(room, entity.NewWinEvent(info))

	return true, info.Role, nil
}

// Rematch records a competitor's vote and restarts the game once every competitor has voted.
func (that *GameManager) Rematch(_ context.Context, sess *Session) error {
	room := sess.Room

	room.mu.Lock()
	defer room.mu.Unlock()

	info, ok := room.players[sess.ConnID]
	if !ok {
		return apperror.ErrNotCompetitor
	}

	if !room.gameOver {
		return apperror.ErrGameNotOver
	}

	room.rematchVotes[sess.ConnID] = struct{}{}
	that.broadcast(room, entity.NewRematchEvent(info.Role))

	if room.allPlayersVoted() {
		room.reset()
		that.broadcast(room, entity.NewResetEvent())
		that.logger.Info("rematch started", zap.String("room_id", room.ID))
	}

	return nil
}

// Leave detaches the session from its room. It must run for every session, however the
// connection ended.
func (that *GameManager) Leave(_ context.Context, sess *Session) {
	room := sess.Room

	room.mu.Lock()
	wasCreator := room.remove(sess.ConnID, that.registry.now())
	gameOver := room.gameOver
	room.mu.Unlock()

	if wasCreator {
		that.registry.ReleaseJoin(room.JoinKey)
	}

	log := that.logger.With(zap.String("room_id", room.ID), zap.String("conn_id", string(sess.ConnID)))

	if sess.Player != nil && !gameOver {
		log.Info("player left an unfinished game", zap.Stringer("player", sess.Player))
		return
	}

	log.Debug("connection detached")
}

// RunSweeper drops idle rooms every interval until ctx is done.
func (that *GameManager) RunSweeper(ctx context.Context, interval, ttl time.Duration) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if swept := that.registry.Sweep(ttl); swept > 0 {
				that.logger.Info("swept idle rooms", zap.Int("count", swept), zap.Int("remaining", that.registry.Len()))
			}
		}
	}
}

// catchUp replays the move log and the final result to one connection. Expects room.mu held.
func (that *GameManager) catchUp(room *Room, id entity.ConnID) {
	for _, move := range room.game.Moves {
		that.publish(id, entity.NewPlayEvent(move))
	}

	switch {
	case room.result != nil:
		that.publish(id, entity.NewWinEvent(*room.result))
	case room.game.IsDraw():
		that.publish(id, entity.NewDrawEvent())
	}
}

// broadcast sends to a snapshot of the room's members. Expects room.mu held.
func (that *GameManager) broadcast(room *Room, event *entity.Event) {
	for _, id := range room.members() {
		that.publish(id, event)
	}
}

func (that *GameManager) publish(id entity.ConnID, event *entity.Event) {
	if err := that.publisher.Publish(id, event); err != nil {
		that.logger.Debug("failed to publish event",
			zap.String("conn_id", string(id)),
			zap.String("type", event.Type),
			zap.Error(err),
		)
	}
}

func (that *GameManager) cleanName(name string) string {
	name = strings.TrimSpace(name)

	if utf8.RuneCountInString(name) > that.maxNameLength {
		name = string([]rune(name)[:that.maxNameLength])
	}

	return name
}
