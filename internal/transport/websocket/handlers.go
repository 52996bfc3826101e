package websocket

import (
	"context"
	"errors"
	"fmt"

	"github.com/rocketscienceinc/connectfour-backend/internal/apperror"
	"github.com/rocketscienceinc/connectfour-backend/internal/entity"
	"github.com/rocketscienceinc/connectfour-backend/internal/usecase"
	"go.uber.org/zap"
)

// handleConnection runs one connection from its first message to its close.
func (that *Server) handleConnection(ctx context.Context, conn *Conn) {
	log := that.logger.With(zap.String("method", "handleConnection"), zap.String("conn_id", string(conn.ID)))

	that.hub.Register(conn)
	stop := context.AfterFunc(ctx, conn.Close)

	defer func() {
		stop()
		that.hub.Unregister(conn.ID)
		conn.Close()
	}()

	sess, err := that.attach(ctx, conn)
	if err != nil {
		that.reject(conn, err)
		if clientMessage(err) != "" {
			log.Warn("connection rejected", zap.Error(err))
		} else {
			log.Info("connection closed before attaching", zap.Error(err))
		}
		return
	}

	defer that.games.Leave(context.WithoutCancel(ctx), sess)

	log = log.With(zap.String("room_id", sess.Room.ID))
	log.Info("connection attached",
		zap.Bool("spectator", sess.IsSpectator()),
		zap.Int("players", sess.Room.PlayerCount()),
		zap.Int("spectators", sess.Room.SpectatorCount()),
		zap.Int("moves", len(sess.Room.Moves())),
	)

	if sess.IsSpectator() {
		err = that.observe(conn)
	} else {
		err = that.handleMessages(ctx, conn, sess)
	}

	if errors.Is(err, apperror.ErrProtocolViolation) {
		log.Warn("connection terminated", zap.Error(err))
		return
	}

	log.Info("connection closed", zap.Bool("game_over", sess.Room.GameOver()), zap.NamedError("reason", err))
}

// attach reads the first message and binds the connection to a room.
func (that *Server) attach(ctx context.Context, conn *Conn) (*usecase.Session, error) {
	req, err := conn.ReadRequest()
	if err != nil {
		return nil, err
	}

	if req.Type != "" && req.Type != requestInit {
		return nil, fmt.Errorf("%w: first message must be init, got %q", apperror.ErrProtocolViolation, req.Type)
	}

	switch {
	case req.Join != "":
		return that.games.Join(ctx, conn.ID, req.Join, req.Name)
	case req.Watch != "":
		return that.games.Watch(ctx, conn.ID, req.Watch)
	default:
		return that.games.Create(ctx, conn.ID, req.Name)
	}
}

// handleMessages - processes messages from a competitor.
func (that *Server) handleMessages(ctx context.Context, conn *Conn, sess *usecase.Session) error {
	for {
		req, err := conn.ReadRequest()
		if err != nil {
			if errors.Is(err, apperror.ErrProtocolViolation) {
				that.sendError(conn, err)
			}
			return err
		}

		switch req.Type {
		case requestPlay:
			if req.Column == nil {
				err = fmt.Errorf("%w: play without column", apperror.ErrProtocolViolation)
				that.sendError(conn, err)
				return err
			}

			err = that.games.Play(ctx, sess, *req.Column)
		case requestRematch:
			err = that.games.Rematch(ctx, sess)
		default:
			err = fmt.Errorf("%w: unexpected message type %q", apperror.ErrProtocolViolation, req.Type)
			that.sendError(conn, err)
			return err
		}

		if err == nil {
			continue
		}

		if !isRecoverable(err) {
			return err
		}

		that.logger.Debug("request rejected",
			zap.String("conn_id", string(conn.ID)), zap.String("type", req.Type), zap.Error(err))
		that.sendError(conn, err)
	}
}

// observe waits for a spectator to disconnect. Spectators must not send anything.
func (that *Server) observe(conn *Conn) error {
	_, err := conn.ReadRequest()
	if err != nil && !errors.Is(err, apperror.ErrProtocolViolation) {
		return err
	}

	err = fmt.Errorf("%w: spectators cannot send messages", apperror.ErrProtocolViolation)
	that.sendError(conn, err)

	return err
}

func (that *Server) reject(conn *Conn, err error) {
	if clientMessage(err) == "" {
		return
	}

	that.sendError(conn, err)
}

func (that *Server) sendError(conn *Conn, err error) {
	msg := clientMessage(err)
	if msg == "" {
		return
	}

	if pubErr := that.hub.Publish(conn.ID, entity.NewErrorEvent(msg)); pubErr != nil {
		that.logger.Debug("failed to send error", zap.String("conn_id", string(conn.ID)), zap.Error(pubErr))
	}
}

func isRecoverable(err error) bool {
	return errors.Is(err, apperror.ErrInvalidMove) ||
		errors.Is(err, apperror.ErrGameNotOver) ||
		errors.Is(err, apperror.ErrNotCompetitor)
}

// clientMessage is the text sent to a client for err, or empty if the client is not told.
func clientMessage(err error) string {
	switch {
	case errors.Is(err, apperror.ErrRoomFull):
		return apperror.ErrRoomFull.Error()
	case errors.Is(err, apperror.ErrUnknownToken):
		return apperror.ErrUnknownToken.Error()
	case errors.Is(err, apperror.ErrGameFinished):
		return apperror.ErrGameFinished.Error()
	case errors.Is(err, apperror.ErrNotYourTurn):
		return apperror.ErrNotYourTurn.Error()
	case errors.Is(err, apperror.ErrInvalidColumn):
		return apperror.ErrInvalidColumn.Error()
	case errors.Is(err, apperror.ErrColumnFull):
		return apperror.ErrColumnFull.Error()
	case errors.Is(err, apperror.ErrGameNotOver):
		return apperror.ErrGameNotOver.Error()
	case errors.Is(err, apperror.ErrNotCompetitor):
		return apperror.ErrNotCompetitor.Error()
	case errors.Is(err, apperror.ErrProtocolViolation):
		return err.Error()
	default:
		return ""
	}
}
