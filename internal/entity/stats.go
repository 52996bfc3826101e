package entity

// Stats are session counters kept across rooms.
type Stats struct {
	RoomsCreated int64 `json:"rooms_created"`
	FirstWins    int64 `json:"first_wins"`
	SecondWins   int64 `json:"second_wins"`
	Draws        int64 `json:"draws"`
}

func (that *Stats) GamesFinished() int64 {
	return that.FirstWins + that.SecondWins + that.Draws
}
