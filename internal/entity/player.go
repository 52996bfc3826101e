package entity

import "fmt"

const (
	PlayerFirst  = "first"
	PlayerSecond = "second"
)

// ConnID identifies one accepted connection. Rooms key their membership by it.
type ConnID string

// PlayerInfo is attached to each competing connection; spectators have none.
type PlayerInfo struct {
	Role string `json:"role"`
	Name string `json:"name"`
}

func Opponent(role string) string {
	if role == PlayerFirst {
		return PlayerSecond
	}
	return PlayerFirst
}

// DefaultName is used when a competitor does not pick a display name.
func DefaultName(role string) string {
	if role == PlayerFirst {
		return "Player 1"
	}
	return "Player 2"
}

func (that PlayerInfo) String() string {
	return fmt.Sprintf("%s (%s)", that.Name, that.Role)
}
