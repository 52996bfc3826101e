package entity

const (
	EventInit    = "init"
	EventPlay    = "play"
	EventWin     = "win"
	EventDraw    = "draw"
	EventError   = "error"
	EventRematch = "rematch"
	EventReset   = "reset"
)

// Event is a message pushed from the server to a connection.
type Event struct {
	Type     string `json:"type"`
	JoinKey  string `json:"join_key,omitempty"`
	WatchKey string `json:"watch_key,omitempty"`
	Player   string `json:"player,omitempty"`
	Column   *int   `json:"column,omitempty"`
	Row      *int   `json:"row,omitempty"`
	Winner   string `json:"winner,omitempty"`
	Message  string `json:"message,omitempty"`
}

func NewInitEvent(joinKey, watchKey string) *Event {
	return &Event{Type: EventInit, JoinKey: joinKey, WatchKey: watchKey}
}

func NewPlayEvent(move Move) *Event {
	column, row := move.Column, move.Row

	return &Event{Type: EventPlay, Player: move.Player, Column: &column, Row: &row}
}

func NewWinEvent(winner PlayerInfo) *Event {
	return &Event{Type: EventWin, Winner: winner.Role, Message: winner.Name + " wins!"}
}

func NewDrawEvent() *Event {
	return &Event{Type: EventDraw, Message: "The board is full, it's a draw."}
}

func NewErrorEvent(message string) *Event {
	return &Event{Type: EventError, Message: message}
}

func NewRematchEvent(role string) *Event {
	return &Event{Type: EventRematch, Player: role}
}

func NewResetEvent() *Event {
	return &Event{Type: EventReset}
}
