package entity

import (
	"errors"
	"fmt"

	"github.com/rocketscienceinc/connectfour-backend/internal/apperror"
)

const (
	Columns = 7
	Rows    = 6

	// WinLength is the run of marks that ends the game.
	WinLength = 4

	EmptyCell = ""
)

var ErrReplayMismatch = errors.New("move log does not match board")

// directions are scanned through the last placed cell as (column, row) steps.
var directions = [4][2]int{
	{1, 0},  // horizontal
	{0, 1},  // vertical
	{1, 1},  // diagonal
	{1, -1}, // anti-diagonal
}

// Move is one accepted placement.
type Move struct {
	Player string `json:"player"`
	Column int    `json:"column"`
	Row    int    `json:"row"`
}

// Game is the state machine of a single match. Board[column][row] with row 0 at the bottom.
type Game struct {
	Board  [Columns][Rows]string `json:"board"`
	Turn   string                `json:"player_turn"`
	Winner string                `json:"winner"`
	Moves  []Move                `json:"moves"`
}

func NewGame() *Game {
	return &Game{
		Turn: PlayerFirst,
	}
}

// Replay rebuilds a game from a move log.
func Replay(moves []Move) (*Game, error) {
	game := NewGame()

	for i, move := range moves {
		row, err := game.Play(move.Player, move.Column)
		if err != nil {
			return nil, fmt.Errorf("move %d: %w", i, err)
		}

		if row != move.Row {
			return nil, fmt.Errorf("%w: move %d landed on row %d, log says %d", ErrReplayMismatch, i, row, move.Row)
		}
	}

	return game, nil
}

// Play drops the player's mark into column and returns the row it landed on.
// The game is left untouched when an error is returned.
func (that *Game) Play(player string, column int) (int, error) {
	if that.Winner != "" {
		return 0, apperror.ErrGameFinished
	}

	if that.Turn != player {
		return 0, apperror.ErrNotYourTurn
	}

	if column < 0 || column >= Columns {
		return 0, fmt.Errorf("%w: column %d", apperror.ErrInvalidColumn, column)
	}

	row := that.height(column)
	if row == Rows {
		return 0, fmt.Errorf("%w: column %d", apperror.ErrColumnFull, column)
	}

	that.Board[column][row] = player
	that.Moves = append(that.Moves, Move{Player: player, Column: column, Row: row})
	that.Turn = Opponent(player)

	if that.isWinningMove(column, row) {
		that.Winner = player
	}

	return row, nil
}

func (that *Game) IsFull() bool {
	for column := range that.Board {
		if that.height(column) < Rows {
			return false
		}
	}

	return true
}

func (that *Game) IsDraw() bool {
	return that.Winner == "" && that.IsFull()
}

func (that *Game) IsFinished() bool {
	return that.Winner != "" || that.IsFull()
}

// MovesCopy returns the move log detached from the game.
func (that *Game) MovesCopy() []Move {
	moves := make([]Move, len(that.Moves))
	copy(moves, that.Moves)

	return moves
}

func (that *Game) height(column int) int {
	for row, cell := range that.Board[column] {
		if cell == EmptyCell {
			return row
		}
	}

	return Rows
}

func (that *Game) isWinningMove(column, row int) bool {
	player := that.Board[column][row]

	for _, dir := range directions {
		count := 1 + that.run(column, row, dir[0], dir[1], player) + that.run(column, row, -dir[0], -dir[1], player)
		if count >= WinLength {
			return true
		}
	}

	return false
}

// run counts consecutive marks of player starting next to (column, row) and stepping by (dc, dr).
func (that *Game) run(column, row, dc, dr int, player string) int {
	count := 0

	for c, r := column+dc, row+dr; c >= 0 && c < Columns && r >= 0 && r < Rows; c, r = c+dc, r+dr {
		if that.Board[c][r] != player {
			break
		}
		count++
	}

	return count
}
