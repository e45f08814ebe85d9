package types

// Room is the lobby listing of a game, kept in the shared rooms collection.
type Room struct {
	ID         string     `json:"id,omitempty"`
	Version    int        `json:"version"`
	GameID     string     `json:"gameId"`
	GameName   string     `json:"gameName"`
	GameStatus GameStatus `json:"gameStatus"`
	PlayersNum int        `json:"playersNum"`
	PlayersMax int        `json:"playersMax"`
	CreatedBy  string     `json:"createdBy"`
}

func (r Room) Joinable() bool {
	return r.GameStatus == GameStatusStarting && r.PlayersNum < r.PlayersMax
}
