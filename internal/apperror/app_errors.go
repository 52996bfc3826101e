package apperror

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMove is the class of every rejected move.
	ErrInvalidMove = errors.New("invalid move")

	ErrGameFinished  = fmt.Errorf("%w: game is already finished", ErrInvalidMove)
	ErrNotYourTurn   = fmt.Errorf("%w: it's not your turn", ErrInvalidMove)
	ErrInvalidColumn = fmt.Errorf("%w: invalid column index", ErrInvalidMove)
	ErrColumnFull    = fmt.Errorf("%w: column is full", ErrInvalidMove)

	// ErrUnknownToken is returned for join or watch tokens the registry does not honor.
	ErrUnknownToken = errors.New("unknown token")
	ErrRoomFull     = fmt.Errorf("%w: room already has two players", ErrUnknownToken)

	ErrProtocolViolation = errors.New("protocol violation")
	ErrNotCompetitor     = errors.New("only players can do that")
	ErrGameNotOver       = errors.New("game is not over yet")
)
